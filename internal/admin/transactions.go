package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/money"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// transactionResponse は取引のJSONレスポンス構造。
type transactionResponse struct {
	// ID は取引の一意識別子。
	ID string `json:"id"`
	// UserID は取引を行った利用者のID。
	UserID string `json:"user_id"`
	// Type は取引の種類。
	Type string `json:"type"`
	// Status は取引のステータス。
	Status string `json:"status"`
	// Amount は金額（ナイラ、小数点以下2桁）。
	Amount string `json:"amount"`
	// Reference は取引の参照番号。
	Reference string `json:"reference"`
	// Description は取引の説明。
	Description string `json:"description"`
	// CreatedAt は取引日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

func toTransactionResponse(t admindb.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Type:        t.Type,
		Status:      t.Status,
		Amount:      money.Format(t.AmountKobo),
		Reference:   t.Reference,
		Description: t.Description,
		CreatedAt:   sqltime.RFC3339(t.CreatedAt),
	}
}

// totalResponse はグループごとの集計のJSONレスポンス構造。
type totalResponse struct {
	// Key はグループのキー（種類またはステータス）。
	Key string `json:"key"`
	// Count は件数。
	Count int64 `json:"count"`
	// Amount は金額の合計（ナイラ）。
	Amount string `json:"amount"`
}

// summaryResponse は取引集計のJSONレスポンス構造。
type summaryResponse struct {
	// ByType は種類ごとの集計。
	ByType []totalResponse `json:"by_type"`
	// ByStatus はステータスごとの集計。
	ByStatus []totalResponse `json:"by_status"`
	// TotalCount は全件数。
	TotalCount int64 `json:"total_count"`
	// TotalAmount は金額の合計（ナイラ）。
	TotalAmount string `json:"total_amount"`
}

// toTotals は集計行をレスポンスに変換し、件数と金額の合計を返す。
func toTotals(rows []admindb.GroupTotal) ([]totalResponse, int64, int64) {
	out := make([]totalResponse, 0, len(rows))
	var count, amount int64
	for _, r := range rows {
		out = append(out, totalResponse{Key: r.Key, Count: r.Count, Amount: money.Format(r.AmountKobo)})
		count += r.Count
		amount += r.AmountKobo
	}
	return out, count, amount
}

// parsePeriod はfromとtoのクエリパラメータを保存形式に変換する。
// 不正な値の場合は400を返してfalseを返す。
func parsePeriod(c *gin.Context) (admindb.PeriodParams, bool) {
	var p admindb.PeriodParams
	if v := c.Query("from"); v != "" {
		t, err := sqltime.ParseQuery(v, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fromの形式が不正です: " + err.Error()})
			return p, false
		}
		p.From = sqltime.Format(t)
	}
	if v := c.Query("to"); v != "" {
		t, err := sqltime.ParseQuery(v, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "toの形式が不正です: " + err.Error()})
			return p, false
		}
		p.To = sqltime.Format(t)
	}
	if p.From != "" && p.To != "" && p.From > p.To {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fromはto以前の日時を指定してください"})
		return p, false
	}
	return p, true
}

// handleListTransactions は取引一覧取得を処理するハンドラを返す。
func (s *Server) handleListTransactions() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}
		period, ok := parsePeriod(c)
		if !ok {
			return
		}

		filter := admindb.TransactionFilter{
			Type:   c.Query("type"),
			Status: c.Query("status"),
			UserID: c.Query("user_id"),
			From:   period.From,
			To:     period.To,
			Query:  c.Query("q"),
		}

		ctx := c.Request.Context()
		total, err := s.queries.CountTransactions(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "取引一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("取引数の取得エラー")
			return
		}
		txns, err := s.queries.ListTransactions(ctx, admindb.ListTransactionsParams{
			TransactionFilter: filter,
			Limit:             limit,
			Offset:            offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "取引一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("取引一覧取得エラー")
			return
		}

		items := make([]transactionResponse, 0, len(txns))
		for _, t := range txns {
			items = append(items, toTransactionResponse(t))
		}
		c.JSON(http.StatusOK, pageResponse[transactionResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}

// handleGetTransaction は取引詳細取得を処理するハンドラを返す。
func (s *Server) handleGetTransaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := s.queries.GetTransaction(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "取引が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "取引の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("取引取得エラー")
			return
		}
		c.JSON(http.StatusOK, toTransactionResponse(t))
	}
}

// handleTransactionSummary は期間内の取引を種類別とステータス別に集計するハンドラを返す。
func (s *Server) handleTransactionSummary() gin.HandlerFunc {
	return func(c *gin.Context) {
		period, ok := parsePeriod(c)
		if !ok {
			return
		}

		summary, err := s.summarizeTransactions(c.Request.Context(), period)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "取引の集計に失敗しました"})
			s.logger.Error().Err(err).Msg("取引集計エラー")
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// summarizeTransactions は期間内の取引を集計する。
func (s *Server) summarizeTransactions(ctx context.Context, period admindb.PeriodParams) (summaryResponse, error) {
	byType, err := s.queries.SummarizeTransactionsByType(ctx, period)
	if err != nil {
		return summaryResponse{}, err
	}
	byStatus, err := s.queries.SummarizeTransactionsByStatus(ctx, period)
	if err != nil {
		return summaryResponse{}, err
	}

	var resp summaryResponse
	var amount int64
	resp.ByType, resp.TotalCount, amount = toTotals(byType)
	resp.ByStatus, _, _ = toTotals(byStatus)
	resp.TotalAmount = money.Format(amount)
	return resp, nil
}
