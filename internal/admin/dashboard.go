package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// dashboardPeriod はダッシュボードの取引集計期間。
const dashboardPeriod = 30 * 24 * time.Hour

// dashboardResponse はダッシュボード統計のJSONレスポンス構造。
type dashboardResponse struct {
	// Users はステータスごとの利用者数。
	Users map[string]int64 `json:"users"`
	// TotalUsers は利用者の総数。
	TotalUsers int64 `json:"total_users"`
	// PendingKYC は審査待ちの本人確認件数。
	PendingKYC int64 `json:"pending_kyc"`
	// ActivePayoutPlans は稼働中の払い出しプラン数。
	ActivePayoutPlans int64 `json:"active_payout_plans"`
	// Transactions は直近30日間の取引集計。
	Transactions summaryResponse `json:"transactions"`
	// PeriodFrom は取引集計の開始日時。
	PeriodFrom string `json:"period_from"`
	// PeriodTo は取引集計の終了日時。
	PeriodTo string `json:"period_to"`
}

// handleDashboardStats はダッシュボード統計の取得を処理するハンドラを返す。
func (s *Server) handleDashboardStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := s.now().UTC()
		period := admindb.PeriodParams{
			From: sqltime.Format(now.Add(-dashboardPeriod)),
			To:   sqltime.Format(now),
		}
		resp := dashboardResponse{
			Users:      make(map[string]int64, len(userStatuses)),
			PeriodFrom: sqltime.RFC3339(period.From),
			PeriodTo:   sqltime.RFC3339(period.To),
		}
		for _, st := range userStatuses {
			resp.Users[st] = 0
		}

		g, ctx := errgroup.WithContext(c.Request.Context())
		g.Go(func() error {
			counts, err := s.queries.CountUsersByStatus(ctx)
			if err != nil {
				return err
			}
			for _, sc := range counts {
				resp.Users[sc.Status] = sc.Count
				resp.TotalUsers += sc.Count
			}
			return nil
		})
		g.Go(func() error {
			n, err := s.queries.CountKYCRecords(ctx, kycPending)
			resp.PendingKYC = n
			return err
		})
		g.Go(func() error {
			n, err := s.queries.CountPayoutPlans(ctx, admindb.PayoutPlanFilter{Status: planStatusActive})
			resp.ActivePayoutPlans = n
			return err
		})
		g.Go(func() error {
			summary, err := s.summarizeTransactions(ctx, period)
			resp.Transactions = summary
			return err
		})
		if err := g.Wait(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ダッシュボード統計の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("ダッシュボード統計取得エラー")
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
