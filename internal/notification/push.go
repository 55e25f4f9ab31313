package notification

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/planmoni/backoffice/pkg/expo"
	"github.com/planmoni/backoffice/pkg/middleware"
)

// pushSendRequest は即時配信リクエストのJSON構造。
// tokensを指定した場合はuser_idsより優先する。
type pushSendRequest struct {
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Body は通知の本文。
	Body string `json:"body" binding:"required"`
	// Data はアプリに渡す任意のデータ。
	Data map[string]any `json:"data"`
	// UserIDs は配信先の利用者ID。
	UserIDs []string `json:"user_ids"`
	// Tokens は配信先のExpoプッシュトークン。
	Tokens []string `json:"tokens"`
}

// ticketResponse は配信先1件分の送信結果のJSON構造。
type ticketResponse struct {
	// Token は配信先のプッシュトークン。
	Token string `json:"token"`
	// UserID は配信先の利用者ID。
	UserID string `json:"user_id,omitempty"`
	// Status は "ok" または "error"。
	Status string `json:"status"`
	// ID はExpoの受付ID。
	ID string `json:"id,omitempty"`
	// Error は失敗理由。
	Error string `json:"error,omitempty"`
}

// pushSendResponse は即時配信のJSONレスポンス構造。
type pushSendResponse struct {
	// Sent は送信に成功した件数。
	Sent int `json:"sent"`
	// Failed は送信に失敗した件数。
	Failed int `json:"failed"`
	// Tickets は配信先ごとの結果。
	Tickets []ticketResponse `json:"tickets"`
}

// validateTokens は指定されたトークンがすべてExpoプッシュトークンの形式かを検証する。
func validateTokens(tokens []string) error {
	for _, t := range tokens {
		if !expo.IsPushToken(t) {
			return fmt.Errorf("Expoプッシュトークンの形式が不正です: %s", t)
		}
	}
	return nil
}

// handlePushSend は指定した利用者またはトークンへ即時にプッシュ通知を送るハンドラ。
func (s *Server) handlePushSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pushSendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "titleとbodyは必須です"})
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		req.Body = strings.TrimSpace(req.Body)
		if req.Title == "" || req.Body == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "titleとbodyは必須です"})
			return
		}
		if len(req.UserIDs) == 0 && len(req.Tokens) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_idsまたはtokensを指定してください"})
			return
		}
		if err := validateTokens(req.Tokens); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		var (
			recipients []recipient
			err        error
		)
		if len(req.Tokens) > 0 {
			recipients, err = s.resolveTokens(ctx, req.Tokens)
		} else {
			recipients, err = s.resolveUsers(ctx, req.UserIDs)
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("配信先の解決エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "配信先の取得に失敗しました"})
			return
		}
		if len(recipients) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "有効な配信先がありません"})
			return
		}

		results := s.deliver(ctx, recipients, pushContent{Title: req.Title, Body: req.Body, Data: req.Data})
		sent, failed := countDeliveries(results)
		s.logger.Info().
			Str("actor_id", middleware.GetUserID(c)).
			Int("recipients", len(recipients)).
			Int("sent", sent).
			Int("failed", failed).
			Msg("プッシュ通知を即時配信")

		tickets := make([]ticketResponse, 0, len(results))
		for _, d := range results {
			tickets = append(tickets, ticketResponse{
				Token:  d.Recipient.Token,
				UserID: d.Recipient.UserID,
				Status: d.Status,
				ID:     d.TicketID,
				Error:  d.Error,
			})
		}
		c.JSON(http.StatusOK, pushSendResponse{Sent: sent, Failed: failed, Tickets: tickets})
	}
}
