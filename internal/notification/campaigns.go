package notification

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	notificationdb "github.com/planmoni/backoffice/internal/notification/db"
	"github.com/planmoni/backoffice/pkg/middleware"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// キャンペーンのステータス。
const (
	campaignDraft      = "draft"
	campaignScheduled  = "scheduled"
	campaignProcessing = "processing"
	campaignSent       = "sent"
	campaignFailed     = "failed"
	campaignCancelled  = "cancelled"
)

// campaignStatuses は絞り込みに指定できるステータス。
var campaignStatuses = []string{
	campaignDraft,
	campaignScheduled,
	campaignProcessing,
	campaignSent,
	campaignFailed,
	campaignCancelled,
}

// キャンペーンの配信対象。
const (
	// audienceAll は有効なすべての端末。
	audienceAll = "all"
	// audienceUsers は指定した利用者の有効な端末。
	audienceUsers = "users"
	// audienceTokens は指定したトークン。
	audienceTokens = "tokens"
)

// campaignResponse はキャンペーンのJSONレスポンス構造。
type campaignResponse struct {
	// ID はキャンペーンの一意識別子。
	ID string `json:"id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// Data はアプリに渡す任意のデータ。
	Data map[string]any `json:"data"`
	// Audience は配信対象（all/users/tokens）。
	Audience string `json:"audience"`
	// TargetUserIDs は配信先の利用者ID（audienceがusersの場合）。
	TargetUserIDs []string `json:"target_user_ids"`
	// TargetTokens は配信先のトークン（audienceがtokensの場合）。
	TargetTokens []string `json:"target_tokens"`
	// Status はキャンペーンのステータス。
	Status string `json:"status"`
	// ScheduledAt は配信予定日時（RFC3339形式）。
	ScheduledAt *string `json:"scheduled_at"`
	// SentAt は配信完了日時（RFC3339形式）。
	SentAt *string `json:"sent_at"`
	// SentCount は送信に成功した件数。
	SentCount int64 `json:"sent_count"`
	// FailedCount は送信に失敗した件数。
	FailedCount int64 `json:"failed_count"`
	// CreatedBy は作成した管理者のID。
	CreatedBy string `json:"created_by"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

func toCampaignResponse(c notificationdb.Campaign) campaignResponse {
	data := decodeData(c.Data)
	if data == nil {
		data = map[string]any{}
	}
	userIDs := decodeList(c.TargetUserIDs)
	if userIDs == nil {
		userIDs = []string{}
	}
	tokens := decodeList(c.TargetTokens)
	if tokens == nil {
		tokens = []string{}
	}
	return campaignResponse{
		ID:            c.ID,
		Title:         c.Title,
		Body:          c.Body,
		Data:          data,
		Audience:      c.Audience,
		TargetUserIDs: userIDs,
		TargetTokens:  tokens,
		Status:        c.Status,
		ScheduledAt:   sqltime.NullRFC3339(c.ScheduledAt),
		SentAt:        sqltime.NullRFC3339(c.SentAt),
		SentCount:     c.SentCount,
		FailedCount:   c.FailedCount,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     sqltime.RFC3339(c.CreatedAt),
		UpdatedAt:     sqltime.RFC3339(c.UpdatedAt),
	}
}

// campaignRequest はキャンペーンの作成・更新リクエストのJSON構造。
type campaignRequest struct {
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Body は通知の本文。
	Body string `json:"body" binding:"required"`
	// Data はアプリに渡す任意のデータ。
	Data map[string]any `json:"data"`
	// Audience は配信対象（all/users/tokens）。
	Audience string `json:"audience" binding:"required"`
	// TargetUserIDs は配信先の利用者ID。
	TargetUserIDs []string `json:"target_user_ids"`
	// TargetTokens は配信先のトークン。
	TargetTokens []string `json:"target_tokens"`
	// ScheduledAt は配信予定日時。指定しない場合は下書きになる。
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// normalize は入力を整形して検証し、不正な場合はエラー文言を返す。
func (r *campaignRequest) normalize(now time.Time) string {
	r.Title = strings.TrimSpace(r.Title)
	r.Body = strings.TrimSpace(r.Body)
	if r.Title == "" || r.Body == "" {
		return "titleとbodyは必須です"
	}
	r.TargetUserIDs = uniqueStrings(r.TargetUserIDs)
	r.TargetTokens = uniqueStrings(r.TargetTokens)

	switch r.Audience {
	case audienceAll:
		r.TargetUserIDs, r.TargetTokens = nil, nil
	case audienceUsers:
		if len(r.TargetUserIDs) == 0 {
			return "audienceがusersの場合はtarget_user_idsを指定してください"
		}
		r.TargetTokens = nil
	case audienceTokens:
		if len(r.TargetTokens) == 0 {
			return "audienceがtokensの場合はtarget_tokensを指定してください"
		}
		if err := validateTokens(r.TargetTokens); err != nil {
			return err.Error()
		}
		r.TargetUserIDs = nil
	default:
		return "audienceはall、users、tokensのいずれかで指定してください"
	}

	if r.ScheduledAt != nil && !r.ScheduledAt.After(now) {
		return "scheduled_atは現在より後の日時を指定してください"
	}
	return ""
}

// status は配信予定日時の有無から保存するステータスを返す。
func (r *campaignRequest) status() string {
	if r.ScheduledAt != nil {
		return campaignScheduled
	}
	return campaignDraft
}

func (r *campaignRequest) scheduledAt() sql.NullString {
	if r.ScheduledAt == nil {
		return sql.NullString{}
	}
	return sqltime.Null(*r.ScheduledAt)
}

// handleListCampaigns はキャンペーン一覧を返すハンドラ。statusで絞り込める。
func (s *Server) handleListCampaigns() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		if status != "" && !slices.Contains(campaignStatuses, status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "statusの値が不正です"})
			return
		}
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		campaigns, err := s.queries.ListCampaigns(ctx, notificationdb.ListCampaignsParams{
			Status: status,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("キャンペーン一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーン一覧の取得に失敗しました"})
			return
		}
		total, err := s.queries.CountCampaigns(ctx, status)
		if err != nil {
			s.logger.Error().Err(err).Msg("キャンペーン件数取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーン一覧の取得に失敗しました"})
			return
		}

		items := make([]campaignResponse, 0, len(campaigns))
		for _, cp := range campaigns {
			items = append(items, toCampaignResponse(cp))
		}
		c.JSON(http.StatusOK, pageResponse[campaignResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// handleGetCampaign はキャンペーンを1件返すハンドラ。
func (s *Server) handleGetCampaign() gin.HandlerFunc {
	return func(c *gin.Context) {
		cp, ok := s.loadCampaign(c, c.Param("id"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toCampaignResponse(cp))
	}
}

// handleCreateCampaign はキャンペーンを作成するハンドラ。
// scheduled_atを指定した場合は予約状態で作成する。
func (s *Server) handleCreateCampaign() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req campaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title、body、audienceは必須です"})
			return
		}
		if msg := req.normalize(s.now()); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		data, err := encodeData(req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dataの形式が不正です"})
			return
		}

		ctx := c.Request.Context()
		id := uuid.NewString()
		if err := s.queries.CreateCampaign(ctx, notificationdb.CreateCampaignParams{
			ID:            id,
			Title:         req.Title,
			Body:          req.Body,
			Data:          data,
			Audience:      req.Audience,
			TargetUserIDs: req.TargetUserIDs,
			TargetTokens:  req.TargetTokens,
			Status:        req.status(),
			ScheduledAt:   req.scheduledAt(),
			CreatedBy:     middleware.GetUserID(c),
			CreatedAt:     s.timestamp(),
		}); err != nil {
			s.logger.Error().Err(err).Msg("キャンペーン作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーンの作成に失敗しました"})
			return
		}

		cp, ok := s.loadCampaign(c, id)
		if !ok {
			return
		}
		c.JSON(http.StatusCreated, toCampaignResponse(cp))
	}
}

// handleUpdateCampaign は下書きまたは予約中のキャンペーンを更新するハンドラ。
func (s *Server) handleUpdateCampaign() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req campaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title、body、audienceは必須です"})
			return
		}
		if msg := req.normalize(s.now()); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		data, err := encodeData(req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dataの形式が不正です"})
			return
		}

		id := c.Param("id")
		n, err := s.queries.UpdateCampaign(c.Request.Context(), notificationdb.UpdateCampaignParams{
			ID:            id,
			Title:         req.Title,
			Body:          req.Body,
			Data:          data,
			Audience:      req.Audience,
			TargetUserIDs: req.TargetUserIDs,
			TargetTokens:  req.TargetTokens,
			Status:        req.status(),
			ScheduledAt:   req.scheduledAt(),
			UpdatedAt:     s.timestamp(),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("campaign_id", id).Msg("キャンペーン更新エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーンの更新に失敗しました"})
			return
		}
		s.respondCampaignChange(c, id, n)
	}
}

// scheduleRequest はキャンペーン予約リクエストのJSON構造。
type scheduleRequest struct {
	// ScheduledAt は配信予定日時。
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// handleScheduleCampaign はキャンペーンの配信日時を予約するハンドラ。
func (s *Server) handleScheduleCampaign() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_atはRFC3339形式で指定してください"})
			return
		}
		if !req.ScheduledAt.After(s.now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_atは現在より後の日時を指定してください"})
			return
		}

		id := c.Param("id")
		n, err := s.queries.ScheduleCampaign(c.Request.Context(), notificationdb.ScheduleCampaignParams{
			ID:          id,
			ScheduledAt: sqltime.Format(req.ScheduledAt),
			UpdatedAt:   s.timestamp(),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("campaign_id", id).Msg("キャンペーン予約エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーンの予約に失敗しました"})
			return
		}
		s.respondCampaignChange(c, id, n)
	}
}

// handleCancelCampaign は下書きまたは予約中のキャンペーンを取り消すハンドラ。
func (s *Server) handleCancelCampaign() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		n, err := s.queries.CancelCampaign(c.Request.Context(), id, s.timestamp())
		if err != nil {
			s.logger.Error().Err(err).Str("campaign_id", id).Msg("キャンペーン取消エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーンの取り消しに失敗しました"})
			return
		}
		s.respondCampaignChange(c, id, n)
	}
}

// handleSendCampaign はキャンペーンを現在時刻で予約し、予約配信処理を1回実行するハンドラ。
// 他の予約配信処理が実行中の場合は予約状態のまま返し、次回の処理で配信される。
func (s *Server) handleSendCampaign() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx := c.Request.Context()
		n, err := s.queries.ScheduleCampaign(ctx, notificationdb.ScheduleCampaignParams{
			ID:          id,
			ScheduledAt: s.timestamp(),
			UpdatedAt:   s.timestamp(),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("campaign_id", id).Msg("キャンペーン即時配信エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーンの配信に失敗しました"})
			return
		}
		if n == 0 {
			s.respondCampaignChange(c, id, n)
			return
		}

		if _, err := s.ProcessScheduled(ctx); err != nil {
			s.logger.Error().Err(err).Str("campaign_id", id).Msg("キャンペーン即時配信エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーンの配信に失敗しました"})
			return
		}

		cp, ok := s.loadCampaign(c, id)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toCampaignResponse(cp))
	}
}

// campaignLogResponse は配信ログのJSONレスポンス構造。
type campaignLogResponse struct {
	// ID は配信ログの一意識別子。
	ID string `json:"id"`
	// UserID は配信先の利用者ID。
	UserID string `json:"user_id"`
	// Token は配信先のプッシュトークン。
	Token string `json:"token"`
	// Status は "ok" または "error"。
	Status string `json:"status"`
	// TicketID はExpoの受付ID。
	TicketID string `json:"ticket_id"`
	// Error は失敗理由。
	Error string `json:"error"`
	// CreatedAt は記録日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// handleListCampaignLogs はキャンペーンの配信ログを返すハンドラ。statusで絞り込める。
func (s *Server) handleListCampaignLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		if status != "" && status != deliveryOK && status != deliveryError {
			c.JSON(http.StatusBadRequest, gin.H{"error": "statusはokまたはerrorで指定してください"})
			return
		}
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}
		cp, ok := s.loadCampaign(c, c.Param("id"))
		if !ok {
			return
		}

		ctx := c.Request.Context()
		arg := notificationdb.ListCampaignLogsParams{
			CampaignID: cp.ID,
			Status:     status,
			Limit:      limit,
			Offset:     offset,
		}
		logs, err := s.queries.ListCampaignLogs(ctx, arg)
		if err != nil {
			s.logger.Error().Err(err).Str("campaign_id", cp.ID).Msg("配信ログ取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "配信ログの取得に失敗しました"})
			return
		}
		total, err := s.queries.CountCampaignLogs(ctx, arg)
		if err != nil {
			s.logger.Error().Err(err).Str("campaign_id", cp.ID).Msg("配信ログ件数取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "配信ログの取得に失敗しました"})
			return
		}

		items := make([]campaignLogResponse, 0, len(logs))
		for _, l := range logs {
			items = append(items, campaignLogResponse{
				ID:        l.ID,
				UserID:    l.UserID,
				Token:     l.Token,
				Status:    l.Status,
				TicketID:  l.TicketID,
				Error:     l.Error,
				CreatedAt: sqltime.RFC3339(l.CreatedAt),
			})
		}
		c.JSON(http.StatusOK, pageResponse[campaignLogResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// loadCampaign はキャンペーンを取得する。見つからない場合や失敗した場合はレスポンスを書いてfalseを返す。
func (s *Server) loadCampaign(c *gin.Context, id string) (notificationdb.Campaign, bool) {
	cp, err := s.queries.GetCampaign(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "キャンペーンが見つかりません"})
			return notificationdb.Campaign{}, false
		}
		s.logger.Error().Err(err).Str("campaign_id", id).Msg("キャンペーン取得エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンペーンの取得に失敗しました"})
		return notificationdb.Campaign{}, false
	}
	return cp, true
}

// respondCampaignChange は状態を条件にした更新の結果を返す。
// 更新件数が0の場合は、キャンペーンが存在しなければ404、変更できない状態なら409を返す。
func (s *Server) respondCampaignChange(c *gin.Context, id string, affected int64) {
	cp, ok := s.loadCampaign(c, id)
	if !ok {
		return
	}
	if affected == 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "下書きまたは予約中のキャンペーンのみ変更できます",
			"status": cp.Status,
		})
		return
	}
	c.JSON(http.StatusOK, toCampaignResponse(cp))
}

// campaignRecipients は配信対象に応じてキャンペーンの配信先を解決する。
func (s *Server) campaignRecipients(ctx context.Context, cp notificationdb.Campaign) ([]recipient, error) {
	switch cp.Audience {
	case audienceUsers:
		return s.resolveUsers(ctx, decodeList(cp.TargetUserIDs))
	case audienceTokens:
		return s.resolveTokens(ctx, decodeList(cp.TargetTokens))
	default:
		return s.resolveAll(ctx)
	}
}
