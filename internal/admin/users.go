package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/money"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// 利用者のステータス。
const (
	userStatusActive    = "active"
	userStatusSuspended = "suspended"
)

// userStatuses は利用者に設定できるステータス。
var userStatuses = []string{userStatusActive, userStatusSuspended}

// kycStatuses は利用者の本人確認ステータス。
var kycStatuses = []string{"unverified", "pending", "verified", "rejected"}

// userResponse は利用者のJSONレスポンス構造。
type userResponse struct {
	// ID は利用者の一意識別子。
	ID string `json:"id"`
	// FirstName は名。
	FirstName string `json:"first_name"`
	// LastName は姓。
	LastName string `json:"last_name"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Status は利用者のステータス。
	Status string `json:"status"`
	// KYCStatus は本人確認ステータス。
	KYCStatus string `json:"kyc_status"`
	// CreatedAt は登録日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// userDetailResponse は利用者詳細のJSONレスポンス構造。
type userDetailResponse struct {
	userResponse
	// PayoutPlanCount は払い出しプラン数。
	PayoutPlanCount int64 `json:"payout_plan_count"`
	// TransactionCount は取引数。
	TransactionCount int64 `json:"transaction_count"`
	// TotalDeposits は成功した入金の合計（ナイラ）。
	TotalDeposits string `json:"total_deposits"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u admindb.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Status:    u.Status,
		KYCStatus: u.KYCStatus,
		CreatedAt: sqltime.RFC3339(u.CreatedAt),
		UpdatedAt: sqltime.RFC3339(u.UpdatedAt),
	}
}

// updateUserStatusRequest は利用者ステータス変更リクエストのJSON構造。
type updateUserStatusRequest struct {
	// Status は変更後のステータス（active/suspended）。
	Status string `json:"status" binding:"required"`
	// Reason は変更理由。
	Reason string `json:"reason"`
}

// handleListUsers は利用者一覧取得を処理するハンドラを返す。
// qは名前、メールアドレス、電話番号の部分一致（大文字小文字を区別しない）で検索する。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}

		status := c.Query("status")
		if status != "" && !slices.Contains(userStatuses, status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不明なステータスです: %s", status)})
			return
		}
		kycStatus := c.Query("kyc_status")
		if kycStatus != "" && !slices.Contains(kycStatuses, kycStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不明な本人確認ステータスです: %s", kycStatus)})
			return
		}

		ctx := c.Request.Context()
		filter := admindb.CountUsersParams{Query: c.Query("q"), Status: status, KYCStatus: kycStatus}
		total, err := s.queries.CountUsers(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "利用者一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("利用者数の取得エラー")
			return
		}
		users, err := s.queries.ListUsers(ctx, admindb.ListUsersParams{
			Query:     filter.Query,
			Status:    filter.Status,
			KYCStatus: filter.KYCStatus,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "利用者一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("利用者一覧取得エラー")
			return
		}

		items := make([]userResponse, 0, len(users))
		for _, u := range users {
			items = append(items, toUserResponse(u))
		}
		c.JSON(http.StatusOK, pageResponse[userResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// handleGetUser は利用者詳細取得を処理するハンドラを返す。
// プラン数、取引数、成功した入金の合計を含めて返す。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		u, err := s.queries.GetUser(ctx, c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "利用者が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "利用者の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("利用者取得エラー")
			return
		}

		stats, err := s.queries.GetUserStats(ctx, u.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "利用者の集計に失敗しました"})
			s.logger.Error().Err(err).Msg("利用者集計エラー")
			return
		}

		c.JSON(http.StatusOK, userDetailResponse{
			userResponse:     toUserResponse(u),
			PayoutPlanCount:  stats.PayoutPlanCount,
			TransactionCount: stats.TransactionCount,
			TotalDeposits:    money.Format(stats.DepositTotalKobo),
		})
	}
}

// handleUpdateUserStatus は利用者ステータス変更を処理するハンドラを返す。
func (s *Server) handleUpdateUserStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateUserStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if !slices.Contains(userStatuses, req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不明なステータスです: %s", req.Status)})
			return
		}

		ctx := c.Request.Context()
		u, err := s.queries.GetUser(ctx, c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "利用者が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "利用者の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("利用者取得エラー")
			return
		}

		if _, err := s.queries.UpdateUserStatus(ctx, admindb.UpdateUserStatusParams{
			Status:    req.Status,
			UpdatedAt: s.timestamp(),
			ID:        u.ID,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータスの更新に失敗しました"})
			s.logger.Error().Err(err).Msg("利用者ステータス更新エラー")
			return
		}

		s.audit(c, event.ActionUserStatusChanged, event.EntityTypeUser, u.ID, event.StatusChangedData{
			From:   u.Status,
			To:     req.Status,
			Reason: req.Reason,
		})

		updated, err := s.queries.GetUser(ctx, u.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の利用者の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("利用者取得エラー")
			return
		}
		c.JSON(http.StatusOK, toUserResponse(updated))
	}
}
