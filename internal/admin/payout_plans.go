package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/money"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// 払い出しプランのステータス。
const (
	planStatusActive    = "active"
	planStatusPaused    = "paused"
	planStatusCompleted = "completed"
	planStatusCancelled = "cancelled"
)

// ErrInvalidTransition は許可されていないステータス遷移を表す。
var ErrInvalidTransition = errors.New("このステータスには変更できません")

// planTransitions は払い出しプランで許可されるステータス遷移。
// completedとcancelledは終端状態。
var planTransitions = map[string][]string{
	planStatusActive: {planStatusPaused, planStatusCancelled},
	planStatusPaused: {planStatusActive, planStatusCancelled},
}

// checkPlanTransition はfromからtoへの遷移が許可されているかを検証する。
func checkPlanTransition(from, to string) error {
	for _, next := range planTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// payoutPlanResponse は払い出しプランのJSONレスポンス構造。
type payoutPlanResponse struct {
	// ID はプランの一意識別子。
	ID string `json:"id"`
	// UserID はプランを所有する利用者のID。
	UserID string `json:"user_id"`
	// Name はプラン名。
	Name string `json:"name"`
	// Frequency は払い出し頻度。
	Frequency string `json:"frequency"`
	// Status はプランのステータス。
	Status string `json:"status"`
	// TotalAmount は積立総額（ナイラ）。
	TotalAmount string `json:"total_amount"`
	// PayoutAmount は1回あたりの払い出し額（ナイラ）。
	PayoutAmount string `json:"payout_amount"`
	// NextPayoutAt は次回払い出し日時。未定の場合はnull。
	NextPayoutAt *string `json:"next_payout_at"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

func toPayoutPlanResponse(p admindb.PayoutPlan) payoutPlanResponse {
	return payoutPlanResponse{
		ID:           p.ID,
		UserID:       p.UserID,
		Name:         p.Name,
		Frequency:    p.Frequency,
		Status:       p.Status,
		TotalAmount:  money.Format(p.TotalAmountKobo),
		PayoutAmount: money.Format(p.PayoutAmountKobo),
		NextPayoutAt: sqltime.NullRFC3339(p.NextPayoutAt),
		CreatedAt:    sqltime.RFC3339(p.CreatedAt),
		UpdatedAt:    sqltime.RFC3339(p.UpdatedAt),
	}
}

// updatePlanStatusRequest はプランのステータス変更リクエストのJSON構造。
type updatePlanStatusRequest struct {
	// Status は変更後のステータス。
	Status string `json:"status" binding:"required"`
	// Reason は変更理由。
	Reason string `json:"reason"`
}

// handleListPayoutPlans は払い出しプラン一覧取得を処理するハンドラを返す。
func (s *Server) handleListPayoutPlans() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}

		filter := admindb.PayoutPlanFilter{
			Status:    c.Query("status"),
			Frequency: c.Query("frequency"),
			UserID:    c.Query("user_id"),
			Query:     c.Query("q"),
		}

		ctx := c.Request.Context()
		total, err := s.queries.CountPayoutPlans(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "払い出しプラン一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("払い出しプラン数の取得エラー")
			return
		}
		plans, err := s.queries.ListPayoutPlans(ctx, admindb.ListPayoutPlansParams{
			PayoutPlanFilter: filter,
			Limit:            limit,
			Offset:           offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "払い出しプラン一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("払い出しプラン一覧取得エラー")
			return
		}

		items := make([]payoutPlanResponse, 0, len(plans))
		for _, p := range plans {
			items = append(items, toPayoutPlanResponse(p))
		}
		c.JSON(http.StatusOK, pageResponse[payoutPlanResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// handleGetPayoutPlan は払い出しプラン詳細取得を処理するハンドラを返す。
func (s *Server) handleGetPayoutPlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.queries.GetPayoutPlan(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "払い出しプランが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "払い出しプランの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("払い出しプラン取得エラー")
			return
		}
		c.JSON(http.StatusOK, toPayoutPlanResponse(p))
	}
}

// handleUpdatePayoutPlanStatus は払い出しプランのステータス変更を処理するハンドラを返す。
// 許可されていない遷移や、読み取り後に別の操作で変更されていた場合は409を返す。
func (s *Server) handleUpdatePayoutPlanStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updatePlanStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		switch req.Status {
		case planStatusActive, planStatusPaused, planStatusCompleted, planStatusCancelled:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不明なステータスです: %s", req.Status)})
			return
		}

		ctx := c.Request.Context()
		p, err := s.queries.GetPayoutPlan(ctx, c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "払い出しプランが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "払い出しプランの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("払い出しプラン取得エラー")
			return
		}

		if err := checkPlanTransition(p.Status, req.Status); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		n, err := s.queries.UpdatePayoutPlanStatus(ctx, admindb.UpdatePayoutPlanStatusParams{
			Status:     req.Status,
			UpdatedAt:  s.timestamp(),
			ID:         p.ID,
			FromStatus: p.Status,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータスの更新に失敗しました"})
			s.logger.Error().Err(err).Msg("払い出しプランステータス更新エラー")
			return
		}
		if n == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "払い出しプランが他の操作で更新されました。再度取得してください"})
			return
		}

		s.audit(c, event.ActionPayoutPlanStatusChanged, event.EntityTypePayoutPlan, p.ID, event.StatusChangedData{
			From:   p.Status,
			To:     req.Status,
			Reason: req.Reason,
		})

		updated, err := s.queries.GetPayoutPlan(ctx, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の払い出しプランの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("払い出しプラン取得エラー")
			return
		}
		c.JSON(http.StatusOK, toPayoutPlanResponse(updated))
	}
}
