package notification

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	notificationdb "github.com/planmoni/backoffice/internal/notification/db"
	"github.com/planmoni/backoffice/pkg/expo"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// 端末のプラットフォーム。
const (
	platformIOS     = "ios"
	platformAndroid = "android"
)

// deviceResponse はプッシュトークンのJSONレスポンス構造。
type deviceResponse struct {
	// ID はトークンの一意識別子。
	ID string `json:"id"`
	// UserID は登録した利用者のID。
	UserID string `json:"user_id"`
	// Token はExpoプッシュトークン。
	Token string `json:"token"`
	// Platform は端末のプラットフォーム（ios/android）。
	Platform string `json:"platform"`
	// Active は配信対象かどうか。
	Active bool `json:"active"`
	// LastError は無効化された理由。
	LastError string `json:"last_error,omitempty"`
	// CreatedAt は登録日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

func toDeviceResponse(d notificationdb.DeviceToken) deviceResponse {
	return deviceResponse{
		ID:        d.ID,
		UserID:    d.UserID,
		Token:     d.Token,
		Platform:  d.Platform,
		Active:    d.Active,
		LastError: d.LastError,
		CreatedAt: sqltime.RFC3339(d.CreatedAt),
		UpdatedAt: sqltime.RFC3339(d.UpdatedAt),
	}
}

// registerDeviceRequest はプッシュトークン登録リクエストのJSON構造。
type registerDeviceRequest struct {
	// UserID はトークンを登録する利用者のID。
	UserID string `json:"user_id" binding:"required"`
	// Token はExpoプッシュトークン。
	Token string `json:"token" binding:"required"`
	// Platform は端末のプラットフォーム（ios/android）。
	Platform string `json:"platform" binding:"required"`
}

// handleRegisterDevice はプッシュトークンを登録するハンドラ。
// 同じトークンが登録済みの場合は利用者を付け替えて再度有効化する。
func (s *Server) handleRegisterDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerDeviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id、token、platformは必須です"})
			return
		}
		token := strings.TrimSpace(req.Token)
		if !expo.IsPushToken(token) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Expoプッシュトークンの形式が不正です"})
			return
		}
		platform := strings.ToLower(strings.TrimSpace(req.Platform))
		if platform != platformIOS && platform != platformAndroid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platformはiosまたはandroidで指定してください"})
			return
		}

		d, err := s.queries.UpsertDeviceToken(c.Request.Context(), notificationdb.UpsertDeviceTokenParams{
			ID:       uuid.NewString(),
			UserID:   strings.TrimSpace(req.UserID),
			Token:    token,
			Platform: platform,
			At:       s.timestamp(),
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("プッシュトークン登録エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プッシュトークンの登録に失敗しました"})
			return
		}

		c.JSON(http.StatusCreated, toDeviceResponse(d))
	}
}

// handleListDevices はプッシュトークン一覧を返すハンドラ。
// user_idとactiveで絞り込める。
func (s *Server) handleListDevices() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}
		arg := notificationdb.ListDeviceTokensParams{
			UserID: c.Query("user_id"),
			Limit:  limit,
			Offset: offset,
		}
		if v := c.Query("active"); v != "" {
			active, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "activeはtrueまたはfalseで指定してください"})
				return
			}
			arg.Active = &active
		}

		ctx := c.Request.Context()
		devices, err := s.queries.ListDeviceTokens(ctx, arg)
		if err != nil {
			s.logger.Error().Err(err).Msg("プッシュトークン一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プッシュトークン一覧の取得に失敗しました"})
			return
		}
		total, err := s.queries.CountDeviceTokens(ctx, arg)
		if err != nil {
			s.logger.Error().Err(err).Msg("プッシュトークン件数取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プッシュトークン一覧の取得に失敗しました"})
			return
		}

		items := make([]deviceResponse, 0, len(devices))
		for _, d := range devices {
			items = append(items, toDeviceResponse(d))
		}
		c.JSON(http.StatusOK, pageResponse[deviceResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// handleDeactivateDevice はプッシュトークンを無効化するハンドラ。
// 行は削除せず、配信対象から外す。
func (s *Server) handleDeactivateDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.queries.DeactivateDeviceToken(c.Request.Context(), notificationdb.DeactivateDeviceTokenParams{
			ID:        c.Param("id"),
			UpdatedAt: s.timestamp(),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("device_id", c.Param("id")).Msg("プッシュトークン無効化エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プッシュトークンの無効化に失敗しました"})
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "プッシュトークンが見つかりません"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
