package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// bannerResponse はバナーのJSONレスポンス構造。
type bannerResponse struct {
	// ID はバナーの一意識別子。
	ID string `json:"id"`
	// Title はタイトル。
	Title string `json:"title"`
	// ImageURL は画像のURL。
	ImageURL string `json:"image_url"`
	// LinkURL はタップ時の遷移先URL。
	LinkURL string `json:"link_url"`
	// Priority は表示優先度。大きいほど先に表示する。
	Priority int64 `json:"priority"`
	// Active は有効かどうか。
	Active bool `json:"active"`
	// StartsAt は表示開始日時。nullの場合は制限なし。
	StartsAt *string `json:"starts_at"`
	// EndsAt は表示終了日時。nullの場合は制限なし。
	EndsAt *string `json:"ends_at"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

func toBannerResponse(b admindb.Banner) bannerResponse {
	return bannerResponse{
		ID:        b.ID,
		Title:     b.Title,
		ImageURL:  b.ImageURL,
		LinkURL:   b.LinkURL,
		Priority:  b.Priority,
		Active:    b.Active,
		StartsAt:  sqltime.NullRFC3339(b.StartsAt),
		EndsAt:    sqltime.NullRFC3339(b.EndsAt),
		CreatedAt: sqltime.RFC3339(b.CreatedAt),
		UpdatedAt: sqltime.RFC3339(b.UpdatedAt),
	}
}

func toBannerResponses(banners []admindb.Banner) []bannerResponse {
	out := make([]bannerResponse, 0, len(banners))
	for _, b := range banners {
		out = append(out, toBannerResponse(b))
	}
	return out
}

// bannerRequest はバナー作成・更新リクエストのJSON構造。
type bannerRequest struct {
	// Title はタイトル。
	Title string `json:"title" binding:"required"`
	// ImageURL は画像のURL。http(s)の絶対URL。
	ImageURL string `json:"image_url" binding:"required"`
	// LinkURL は遷移先URL。空または http(s) の絶対URL。
	LinkURL string `json:"link_url"`
	// Priority は表示優先度。
	Priority int64 `json:"priority"`
	// Active は有効かどうか。省略時はtrue。
	Active *bool `json:"active"`
	// StartsAt は表示開始日時（RFC3339形式）。
	StartsAt *time.Time `json:"starts_at"`
	// EndsAt は表示終了日時（RFC3339形式）。
	EndsAt *time.Time `json:"ends_at"`
}

// validate はリクエストの内容を検証する。
func (r bannerRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("タイトルを入力してください")
	}
	if !isHTTPURL(r.ImageURL) {
		return errors.New("image_urlはhttpまたはhttpsの絶対URLで指定してください")
	}
	if r.LinkURL != "" && !isHTTPURL(r.LinkURL) {
		return errors.New("link_urlはhttpまたはhttpsの絶対URLで指定してください")
	}
	if r.StartsAt != nil && r.EndsAt != nil && !r.EndsAt.After(*r.StartsAt) {
		return errors.New("ends_atはstarts_atより後の日時を指定してください")
	}
	return nil
}

// params はリクエストをクエリの引数に変換する。
func (r bannerRequest) params(id, at string) admindb.BannerParams {
	p := admindb.BannerParams{
		ID:       id,
		Title:    strings.TrimSpace(r.Title),
		ImageURL: r.ImageURL,
		LinkURL:  r.LinkURL,
		Priority: r.Priority,
		Active:   r.Active == nil || *r.Active,
		At:       at,
	}
	if r.StartsAt != nil {
		p.StartsAt = sqltime.Null(*r.StartsAt)
	}
	if r.EndsAt != nil {
		p.EndsAt = sqltime.Null(*r.EndsAt)
	}
	return p
}

// isHTTPURL はsがhttpまたはhttpsの絶対URLかどうかを判定する。
func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// handleListBanners はバナー一覧取得を処理するハンドラを返す。
func (s *Server) handleListBanners() gin.HandlerFunc {
	return func(c *gin.Context) {
		banners, err := s.queries.ListBanners(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "バナー一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("バナー一覧取得エラー")
			return
		}
		c.JSON(http.StatusOK, toBannerResponses(banners))
	}
}

// handlePublicBanners はアプリ向けに表示期間中の有効なバナーを返すハンドラを返す。
// 優先度の降順、同じ優先度では作成日時の降順で並べる。
func (s *Server) handlePublicBanners() gin.HandlerFunc {
	return func(c *gin.Context) {
		banners, err := s.queries.ListLiveBanners(c.Request.Context(), s.timestamp())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "バナーの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("公開バナー取得エラー")
			return
		}
		c.JSON(http.StatusOK, toBannerResponses(banners))
	}
}

// handleGetBanner はバナー詳細取得を処理するハンドラを返す。
func (s *Server) handleGetBanner() gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := s.queries.GetBanner(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "バナーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "バナーの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("バナー取得エラー")
			return
		}
		c.JSON(http.StatusOK, toBannerResponse(b))
	}
}

// handleCreateBanner はバナー作成を処理するハンドラを返す。
func (s *Server) handleCreateBanner() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bannerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if err := req.validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		p := req.params(uuid.New().String(), s.timestamp())
		if err := s.queries.CreateBanner(ctx, p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "バナーの作成に失敗しました"})
			s.logger.Error().Err(err).Msg("バナー作成エラー")
			return
		}

		s.audit(c, event.ActionBannerCreated, event.EntityTypeBanner, p.ID, event.BannerData{Title: p.Title, Active: p.Active})

		created, err := s.queries.GetBanner(ctx, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成したバナーの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("バナー取得エラー")
			return
		}
		c.JSON(http.StatusCreated, toBannerResponse(created))
	}
}

// handleUpdateBanner はバナー更新を処理するハンドラを返す。
func (s *Server) handleUpdateBanner() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bannerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if err := req.validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		p := req.params(c.Param("id"), s.timestamp())
		n, err := s.queries.UpdateBanner(ctx, p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "バナーの更新に失敗しました"})
			s.logger.Error().Err(err).Msg("バナー更新エラー")
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "バナーが見つかりません"})
			return
		}

		s.audit(c, event.ActionBannerUpdated, event.EntityTypeBanner, p.ID, event.BannerData{Title: p.Title, Active: p.Active})

		updated, err := s.queries.GetBanner(ctx, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後のバナーの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("バナー取得エラー")
			return
		}
		c.JSON(http.StatusOK, toBannerResponse(updated))
	}
}

// handleDeleteBanner はバナー削除を処理するハンドラを返す。
func (s *Server) handleDeleteBanner() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		n, err := s.queries.DeleteBanner(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "バナーの削除に失敗しました"})
			s.logger.Error().Err(err).Msg("バナー削除エラー")
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "バナーが見つかりません"})
			return
		}

		s.audit(c, event.ActionBannerDeleted, event.EntityTypeBanner, id, nil)

		c.Status(http.StatusNoContent)
	}
}
