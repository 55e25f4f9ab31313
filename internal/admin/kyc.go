package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/httpclient"
	"github.com/planmoni/backoffice/pkg/middleware"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// 本人確認記録のステータス。
const (
	kycPending  = "pending"
	kycApproved = "approved"
	kycRejected = "rejected"
)

// ErrNotPending は審査待ちでない本人確認記録を審査しようとしたことを表す。
var ErrNotPending = errors.New("審査待ちの本人確認のみ審査できます")

// kycResponse は本人確認記録のJSONレスポンス構造。
type kycResponse struct {
	// ID は記録の一意識別子。
	ID string `json:"id"`
	// UserID は提出した利用者のID。
	UserID string `json:"user_id"`
	// DocumentType は書類の種類。
	DocumentType string `json:"document_type"`
	// DocumentNumber は書類番号。
	DocumentNumber string `json:"document_number"`
	// DocumentURL は書類画像のURL。
	DocumentURL string `json:"document_url"`
	// Status は審査ステータス。
	Status string `json:"status"`
	// RejectionReason は却下理由。
	RejectionReason string `json:"rejection_reason,omitempty"`
	// ReviewedBy は審査した管理者のID。
	ReviewedBy *string `json:"reviewed_by"`
	// ReviewedAt は審査日時。
	ReviewedAt *string `json:"reviewed_at"`
	// CreatedAt は提出日時。
	CreatedAt string `json:"created_at"`
}

func toKYCResponse(k admindb.KYCRecord) kycResponse {
	var reviewedBy *string
	if k.ReviewedBy.Valid {
		reviewedBy = &k.ReviewedBy.String
	}
	return kycResponse{
		ID:              k.ID,
		UserID:          k.UserID,
		DocumentType:    k.DocumentType,
		DocumentNumber:  k.DocumentNumber,
		DocumentURL:     k.DocumentURL,
		Status:          k.Status,
		RejectionReason: k.RejectionReason,
		ReviewedBy:      reviewedBy,
		ReviewedAt:      sqltime.NullRFC3339(k.ReviewedAt),
		CreatedAt:       sqltime.RFC3339(k.CreatedAt),
	}
}

// rejectKYCRequest は本人確認却下リクエストのJSON構造。
type rejectKYCRequest struct {
	// Reason は却下理由。
	Reason string `json:"reason" binding:"required"`
}

// handleListKYC は本人確認記録一覧取得を処理するハンドラを返す。
func (s *Server) handleListKYC() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}
		status := c.Query("status")
		switch status {
		case "", kycPending, kycApproved, kycRejected:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不明なステータスです: %s", status)})
			return
		}

		ctx := c.Request.Context()
		total, err := s.queries.CountKYCRecords(ctx, status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "本人確認一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("本人確認数の取得エラー")
			return
		}
		records, err := s.queries.ListKYCRecords(ctx, admindb.ListKYCRecordsParams{Status: status, Limit: limit, Offset: offset})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "本人確認一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("本人確認一覧取得エラー")
			return
		}

		items := make([]kycResponse, 0, len(records))
		for _, k := range records {
			items = append(items, toKYCResponse(k))
		}
		c.JSON(http.StatusOK, pageResponse[kycResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// handleGetKYC は本人確認記録詳細取得を処理するハンドラを返す。
func (s *Server) handleGetKYC() gin.HandlerFunc {
	return func(c *gin.Context) {
		k, err := s.queries.GetKYCRecord(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "本人確認記録が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "本人確認記録の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("本人確認取得エラー")
			return
		}
		c.JSON(http.StatusOK, toKYCResponse(k))
	}
}

// handleApproveKYC は本人確認の承認を処理するハンドラを返す。
func (s *Server) handleApproveKYC() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respondReview(c, kycApproved, "")
	}
}

// handleRejectKYC は本人確認の却下を処理するハンドラを返す。却下理由は必須。
func (s *Server) handleRejectKYC() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rejectKYCRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "却下理由を入力してください"})
			return
		}
		s.respondReview(c, kycRejected, strings.TrimSpace(req.Reason))
	}
}

// respondReview は審査を実行し、結果をレスポンスとして返す。
// 審査の確定後に利用者への通知を依頼する。通知の失敗は審査結果に影響しない。
func (s *Server) respondReview(c *gin.Context, status, reason string) {
	ctx := c.Request.Context()
	reviewed, err := s.reviewKYC(ctx, middleware.GetUserID(c), c.Param("id"), status, reason)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "本人確認記録が見つかりません"})
		return
	case errors.Is(err, ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "審査結果の記録に失敗しました"})
		s.logger.Error().Err(err).Msg("本人確認審査エラー")
		return
	}

	s.notifyKYCResult(httpclient.WithToken(ctx, bearerToken(c)), reviewed)

	c.JSON(http.StatusOK, toKYCResponse(reviewed))
}

// reviewKYC は本人確認記録の審査結果、利用者の本人確認ステータス、監査ログを
// 1つのトランザクションで記録する。
func (s *Server) reviewKYC(ctx context.Context, reviewerID, id, status, reason string) (admindb.KYCRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return admindb.KYCRecord{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	q := s.queries.WithTx(tx)
	record, err := q.GetKYCRecord(ctx, id)
	if err != nil {
		return admindb.KYCRecord{}, err
	}
	if record.Status != kycPending {
		return admindb.KYCRecord{}, ErrNotPending
	}

	now := s.timestamp()
	n, err := q.ReviewKYCRecord(ctx, admindb.ReviewKYCRecordParams{
		Status:          status,
		RejectionReason: reason,
		ReviewedBy:      sql.NullString{String: reviewerID, Valid: reviewerID != ""},
		ReviewedAt:      sql.NullString{String: now, Valid: true},
		ID:              id,
	})
	if err != nil {
		return admindb.KYCRecord{}, fmt.Errorf("審査結果の更新に失敗: %w", err)
	}
	if n == 0 {
		return admindb.KYCRecord{}, ErrNotPending
	}

	userKYCStatus := "verified"
	action := event.ActionKYCApproved
	if status == kycRejected {
		userKYCStatus = "rejected"
		action = event.ActionKYCRejected
	}
	if _, err := q.UpdateUserKYCStatus(ctx, admindb.UpdateUserKYCStatusParams{
		KYCStatus: userKYCStatus,
		UpdatedAt: now,
		ID:        record.UserID,
	}); err != nil {
		return admindb.KYCRecord{}, fmt.Errorf("利用者の本人確認ステータス更新に失敗: %w", err)
	}

	if err := s.writeAudit(ctx, q, reviewerID, action, event.EntityTypeKYC, id, event.KYCReviewedData{
		UserID: record.UserID,
		Status: status,
		Reason: reason,
	}); err != nil {
		return admindb.KYCRecord{}, err
	}

	reviewed, err := q.GetKYCRecord(ctx, id)
	if err != nil {
		return admindb.KYCRecord{}, fmt.Errorf("審査後の記録の取得に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return admindb.KYCRecord{}, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return reviewed, nil
}

// kycNotification は通知サービスへの送信依頼のJSON構造。
type kycNotification struct {
	UserID  string         `json:"user_id"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// notifyKYCResult は審査結果を利用者に通知するよう通知サービスに依頼する。
// 失敗はログに記録するのみ。
func (s *Server) notifyKYCResult(ctx context.Context, k admindb.KYCRecord) {
	n := kycNotification{
		UserID:  k.UserID,
		Title:   "本人確認が完了しました",
		Message: "本人確認が承認されました。すべての機能をご利用いただけます。",
		Data:    map[string]any{"type": "kyc", "kyc_id": k.ID, "status": k.Status},
	}
	if k.Status == kycRejected {
		n.Title = "本人確認が承認されませんでした"
		n.Message = fmt.Sprintf("本人確認が却下されました。理由: %s", k.RejectionReason)
	}

	if err := s.notifyClient.PostJSON(ctx, "/api/v1/internal/send", n, nil); err != nil {
		s.logger.Warn().Err(err).
			Str("kyc_id", k.ID).
			Str("user_id", k.UserID).
			Msg("本人確認結果の通知に失敗")
	}
}

// bearerToken はリクエストのAuthorizationヘッダーからトークンを取り出す。
func bearerToken(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}
