package notification

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	notificationdb "github.com/planmoni/backoffice/internal/notification/db"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// UserID は通知先の利用者ID。
	UserID string `json:"user_id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Data はアプリに渡す任意のデータ。
	Data map[string]any `json:"data,omitempty"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n notificationdb.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Data:      decodeData(n.Data),
		IsRead:    n.IsRead,
		CreatedAt: sqltime.RFC3339(n.CreatedAt),
	}
}

// handleListNotifications は通知一覧を返すハンドラ。
// user_idとunreadで絞り込める。
func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}
		arg := notificationdb.ListNotificationsParams{
			UserID: c.Query("user_id"),
			Limit:  limit,
			Offset: offset,
		}
		if v := c.Query("unread"); v != "" {
			unread, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadはtrueまたはfalseで指定してください"})
				return
			}
			arg.UnreadOnly = unread
		}

		ctx := c.Request.Context()
		notifications, err := s.queries.ListNotifications(ctx, arg)
		if err != nil {
			s.logger.Error().Err(err).Msg("通知一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			return
		}
		total, err := s.queries.CountNotifications(ctx, arg)
		if err != nil {
			s.logger.Error().Err(err).Msg("通知件数取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			return
		}

		items := make([]notificationResponse, 0, len(notifications))
		for _, n := range notifications {
			items = append(items, toNotificationResponse(n))
		}
		c.JSON(http.StatusOK, pageResponse[notificationResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		n, err := s.queries.MarkNotificationAsRead(c.Request.Context(), id)
		if err != nil {
			s.logger.Error().Err(err).Str("notification_id", id).Msg("通知既読処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// markAllRequest は全通知既読リクエストのJSON構造。
type markAllRequest struct {
	// UserID は対象の利用者ID。
	UserID string `json:"user_id" binding:"required"`
}

// handleMarkAllAsRead は利用者の未読通知をすべて既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markAllRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_idは必須です"})
			return
		}
		n, err := s.queries.MarkAllNotificationsAsRead(c.Request.Context(), req.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("全通知既読処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました", "updated": n})
	}
}

// sendRequest は通知送信リクエストのJSON構造。
type sendRequest struct {
	// UserID は通知先の利用者ID。
	UserID string `json:"user_id" binding:"required"`
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Message は通知メッセージ。
	Message string `json:"message" binding:"required"`
	// Data はアプリに渡す任意のデータ。
	Data map[string]any `json:"data"`
}

// handleInternalSend は通知を受信箱に保存し、利用者の有効な端末へプッシュ通知を送るハンドラ。
// 内部API（管理サービスから呼び出される）。プッシュ通知の失敗は通知の保存を失敗させない。
func (s *Server) handleInternalSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id、title、messageは必須です"})
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		data, err := encodeData(req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dataの形式が不正です"})
			return
		}

		ctx := c.Request.Context()
		id := uuid.NewString()
		if err := s.queries.CreateNotification(ctx, notificationdb.CreateNotificationParams{
			ID:        id,
			UserID:    req.UserID,
			Title:     req.Title,
			Message:   req.Message,
			Data:      data,
			CreatedAt: s.timestamp(),
		}); err != nil {
			s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("通知作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			return
		}

		var sent, failed int
		recipients, err := s.resolveUsers(ctx, []string{req.UserID})
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("通知先端末の取得に失敗")
		} else if len(recipients) > 0 {
			results := s.deliver(ctx, recipients, pushContent{Title: req.Title, Body: req.Message, Data: req.Data})
			sent, failed = countDeliveries(results)
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":      id,
			"message": "通知を送信しました",
			"push":    gin.H{"sent": sent, "failed": failed},
		})
	}
}
