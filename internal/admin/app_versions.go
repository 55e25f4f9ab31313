package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/appversion"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// defaultMinSupported はmin_supported_versionが省略された場合の値。
// 強制更新の対象となるクライアントはない。
const defaultMinSupported = "v0.0.0"

// appVersionResponse はリリースのJSONレスポンス構造。
type appVersionResponse struct {
	// ID はリリースの一意識別子。
	ID string `json:"id"`
	// Platform はプラットフォーム（ios/android）。
	Platform string `json:"platform"`
	// Version はバージョン。
	Version string `json:"version"`
	// MinSupportedVersion はサポートされる最小バージョン。
	MinSupportedVersion string `json:"min_supported_version"`
	// ForceUpdate は強制更新フラグ。
	ForceUpdate bool `json:"force_update"`
	// ReleaseNotes はリリースノート。
	ReleaseNotes string `json:"release_notes"`
	// CreatedAt は登録日時。
	CreatedAt string `json:"created_at"`
}

func toAppVersionResponse(v admindb.AppVersion) appVersionResponse {
	return appVersionResponse{
		ID:                  v.ID,
		Platform:            v.Platform,
		Version:             appversion.Display(v.Version),
		MinSupportedVersion: appversion.Display(v.MinSupportedVersion),
		ForceUpdate:         v.ForceUpdate,
		ReleaseNotes:        v.ReleaseNotes,
		CreatedAt:           sqltime.RFC3339(v.CreatedAt),
	}
}

// appVersionRequest はリリース登録・更新リクエストのJSON構造。
type appVersionRequest struct {
	// Platform はプラットフォーム。更新時は無視される。
	Platform string `json:"platform"`
	// Version はバージョン（"1.4.2" または "v1.4.2"）。
	Version string `json:"version" binding:"required"`
	// MinSupportedVersion はサポートされる最小バージョン。
	MinSupportedVersion string `json:"min_supported_version"`
	// ForceUpdate は強制更新フラグ。
	ForceUpdate bool `json:"force_update"`
	// ReleaseNotes はリリースノート。
	ReleaseNotes string `json:"release_notes"`
}

// checkResponse はバージョン確認のJSONレスポンス構造。
type checkResponse struct {
	// LatestVersion は最新バージョン。リリースがない場合は空。
	LatestVersion string `json:"latest_version"`
	// MinSupportedVersion は最新リリースのサポート最小バージョン。
	MinSupportedVersion string `json:"min_supported_version"`
	// UpdateAvailable は新しいバージョンがあるかどうか。
	UpdateAvailable bool `json:"update_available"`
	// ForceUpdate は更新が必須かどうか。
	ForceUpdate bool `json:"force_update"`
	// ReleaseNotes は最新リリースのリリースノート。
	ReleaseNotes string `json:"release_notes"`
}

// validPlatform はプラットフォーム名が有効かどうかを返す。
func validPlatform(p string) bool {
	return p == "ios" || p == "android"
}

// normalizeVersions はバージョンを正規化し、最小バージョンがバージョン以下であることを検証する。
func (r appVersionRequest) normalizeVersions() (version, minSupported string, err error) {
	version, err = appversion.Normalize(r.Version)
	if err != nil {
		return "", "", err
	}
	minSupported = defaultMinSupported
	if r.MinSupportedVersion != "" {
		minSupported, err = appversion.Normalize(r.MinSupportedVersion)
		if err != nil {
			return "", "", fmt.Errorf("min_supported_version: %w", err)
		}
	}
	if cmp, _ := appversion.Compare(minSupported, version); cmp > 0 {
		return "", "", errors.New("min_supported_versionはversion以下で指定してください")
	}
	return version, minSupported, nil
}

// handleListAppVersions はリリース一覧取得を処理するハンドラを返す。
func (s *Server) handleListAppVersions() gin.HandlerFunc {
	return func(c *gin.Context) {
		platform := c.Query("platform")
		if platform != "" && !validPlatform(platform) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platformはiosまたはandroidを指定してください"})
			return
		}
		versions, err := s.queries.ListAppVersions(c.Request.Context(), platform)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リリース一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース一覧取得エラー")
			return
		}
		items := make([]appVersionResponse, 0, len(versions))
		for _, v := range versions {
			items = append(items, toAppVersionResponse(v))
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleGetAppVersion はリリース詳細取得を処理するハンドラを返す。
func (s *Server) handleGetAppVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.queries.GetAppVersion(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "リリースが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リリースの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース取得エラー")
			return
		}
		c.JSON(http.StatusOK, toAppVersionResponse(v))
	}
}

// handleCreateAppVersion はリリース登録を処理するハンドラを返す。
// 同じプラットフォームに同じバージョンが存在する場合は409を返す。
func (s *Server) handleCreateAppVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if !validPlatform(req.Platform) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platformはiosまたはandroidを指定してください"})
			return
		}
		version, minSupported, err := req.normalizeVersions()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		p := admindb.AppVersionParams{
			ID:                  uuid.New().String(),
			Platform:            req.Platform,
			Version:             version,
			MinSupportedVersion: minSupported,
			ForceUpdate:         req.ForceUpdate,
			ReleaseNotes:        req.ReleaseNotes,
			CreatedAt:           s.timestamp(),
		}
		err = s.queries.CreateAppVersion(ctx, p)
		if admindb.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "同じバージョンのリリースが既に登録されています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リリースの登録に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース登録エラー")
			return
		}

		s.audit(c, event.ActionAppVersionCreated, event.EntityTypeAppVersion, p.ID, event.AppVersionData{
			Platform:    p.Platform,
			Version:     appversion.Display(p.Version),
			ForceUpdate: p.ForceUpdate,
		})

		created, err := s.queries.GetAppVersion(ctx, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録したリリースの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース取得エラー")
			return
		}
		c.JSON(http.StatusCreated, toAppVersionResponse(created))
	}
}

// handleUpdateAppVersion はリリース更新を処理するハンドラを返す。
func (s *Server) handleUpdateAppVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		version, minSupported, err := req.normalizeVersions()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		id := c.Param("id")
		n, err := s.queries.UpdateAppVersion(ctx, admindb.AppVersionParams{
			ID:                  id,
			Version:             version,
			MinSupportedVersion: minSupported,
			ForceUpdate:         req.ForceUpdate,
			ReleaseNotes:        req.ReleaseNotes,
		})
		if admindb.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "同じバージョンのリリースが既に登録されています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リリースの更新に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース更新エラー")
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "リリースが見つかりません"})
			return
		}

		updated, err := s.queries.GetAppVersion(ctx, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後のリリースの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース取得エラー")
			return
		}

		s.audit(c, event.ActionAppVersionUpdated, event.EntityTypeAppVersion, id, event.AppVersionData{
			Platform:    updated.Platform,
			Version:     appversion.Display(updated.Version),
			ForceUpdate: updated.ForceUpdate,
		})

		c.JSON(http.StatusOK, toAppVersionResponse(updated))
	}
}

// handleDeleteAppVersion はリリース削除を処理するハンドラを返す。
func (s *Server) handleDeleteAppVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		n, err := s.queries.DeleteAppVersion(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リリースの削除に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース削除エラー")
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "リリースが見つかりません"})
			return
		}

		s.audit(c, event.ActionAppVersionDeleted, event.EntityTypeAppVersion, id, nil)

		c.Status(http.StatusNoContent)
	}
}

// handleCheckAppVersion はアプリの現在バージョンに対する更新要否を返すハンドラを返す。
// 最新リリースはsemverの最大値で決める。リリースがない場合は更新不要として返す。
func (s *Server) handleCheckAppVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		platform := c.Query("platform")
		if !validPlatform(platform) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platformはiosまたはandroidを指定してください"})
			return
		}
		current := c.Query("version")
		if _, err := appversion.Normalize(current); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		releases, err := s.queries.ListAppVersions(c.Request.Context(), platform)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リリースの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("リリース一覧取得エラー")
			return
		}

		versions := make([]string, len(releases))
		for i, r := range releases {
			versions[i] = r.Version
		}
		idx := appversion.Latest(versions)
		if idx < 0 {
			c.JSON(http.StatusOK, checkResponse{})
			return
		}

		latest := releases[idx]
		decision, err := appversion.Check(current, appversion.Release{
			Version:      latest.Version,
			MinSupported: latest.MinSupportedVersion,
			ForceUpdate:  latest.ForceUpdate,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "バージョンの比較に失敗しました"})
			s.logger.Error().Err(err).Msg("バージョン比較エラー")
			return
		}

		c.JSON(http.StatusOK, checkResponse{
			LatestVersion:       appversion.Display(latest.Version),
			MinSupportedVersion: appversion.Display(latest.MinSupportedVersion),
			UpdateAvailable:     decision.UpdateAvailable,
			ForceUpdate:         decision.ForceUpdate,
			ReleaseNotes:        latest.ReleaseNotes,
		})
	}
}
