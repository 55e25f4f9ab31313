package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	notificationdb "github.com/planmoni/backoffice/internal/notification/db"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

const (
	// staleProcessingAfter は処理中のまま残ったキャンペーンを予約中に戻すまでの時間。
	staleProcessingAfter = 15 * time.Minute
	// resultWriteTimeout は処理が中断された後に結果を記録する時間の上限。
	resultWriteTimeout = 10 * time.Second
)

// PassResult は予約配信処理1回分の結果。
type PassResult struct {
	// Processed は処理したキャンペーン数。
	Processed int `json:"processed"`
	// Sent は配信済みになったキャンペーン数。
	Sent int `json:"sent"`
	// Failed は配信失敗になったキャンペーン数。
	Failed int `json:"failed"`
}

// ProcessScheduled は配信時刻を過ぎた予約キャンペーンを取得して配信する。
//
// 取得したキャンペーンは処理中に移してから配信先を解決し、バッチサイズごとにExpoへ送信して
// 配信先1件ごとにログを記録する。1件でも成功するか配信先がない場合は配信済み、
// すべて失敗した場合は配信失敗になる。あるキャンペーンの失敗は他のキャンペーンに影響しない。
// 別の処理が実行中の場合は何もせずゼロ件の結果を返す。
//
// ctxがキャンセルされた場合、まだ1件も届いていないキャンペーンは予約中に戻して次回に回す。
// 一部でも届いたキャンペーンはキャンセル後も結果を記録する。
// 前回の処理が異常終了して処理中のまま残ったキャンペーンは、一定時間後に予約中に戻す。
func (s *Server) ProcessScheduled(ctx context.Context) (PassResult, error) {
	if !s.processing.TryLock() {
		s.logger.Debug().Msg("予約配信処理が実行中のためスキップ")
		return PassResult{}, nil
	}
	defer s.processing.Unlock()

	ids, err := s.claimDueCampaigns(ctx)
	if err != nil {
		return PassResult{}, err
	}

	var (
		result           PassResult
		messages, errs int
	)
	for i, id := range ids {
		if ctx.Err() != nil {
			s.releaseCampaigns(ctx, ids[i:])
			break
		}
		status, sent, failed := s.processCampaign(ctx, id)
		if status == campaignScheduled {
			continue
		}
		result.Processed++
		if status == campaignSent {
			result.Sent++
		} else {
			result.Failed++
		}
		messages += sent
		errs += failed
	}

	if result.Processed > 0 {
		s.logger.Info().
			Int("processed", result.Processed).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Int("messages_ok", messages).
			Int("messages_error", errs).
			Msg("予約配信処理が完了")
	}
	return result, nil
}

// claimDueCampaigns は配信時刻を過ぎた予約キャンペーンを1トランザクションで処理中に移し、取得できたIDを返す。
func (s *Server) claimDueCampaigns(ctx context.Context) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	q := s.queries.WithTx(tx)

	now := s.timestamp()
	stale, err := q.ReleaseStaleCampaigns(ctx, notificationdb.ReleaseStaleCampaignsParams{
		StaleBefore: sqltime.Format(s.now().Add(-staleProcessingAfter)),
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("処理中のまま残ったキャンペーンの回収に失敗: %w", err)
	}
	if stale > 0 {
		s.logger.Warn().Int64("count", stale).Msg("処理中のまま残ったキャンペーンを予約中に戻しました")
	}

	due, err := q.ListDueCampaignIDs(ctx, notificationdb.ListDueCampaignIDsParams{
		Now:   now,
		Limit: int64(s.maxCampaignsPerRun),
	})
	if err != nil {
		return nil, fmt.Errorf("予約キャンペーンの取得に失敗: %w", err)
	}

	claimed := make([]string, 0, len(due))
	for _, id := range due {
		n, err := q.ClaimCampaign(ctx, id, now)
		if err != nil {
			return nil, fmt.Errorf("キャンペーンの取得に失敗: %s: %w", id, err)
		}
		if n == 1 {
			claimed = append(claimed, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return claimed, nil
}

// processCampaign は処理中のキャンペーン1件を配信し、最終ステータスと成功・失敗件数を返す。
// 中断されて予約中に戻した場合はcampaignScheduledを返す。
func (s *Server) processCampaign(ctx context.Context, id string) (status string, sent, failed int) {
	logger := s.logger.With().Str("campaign_id", id).Logger()

	cp, err := s.queries.GetCampaign(ctx, id)
	if err != nil {
		return s.abortCampaign(ctx, id, err, "キャンペーンの取得に失敗")
	}
	recipients, err := s.campaignRecipients(ctx, cp)
	if err != nil {
		return s.abortCampaign(ctx, id, err, "配信先の解決に失敗")
	}

	results := s.deliver(ctx, recipients, pushContent{Title: cp.Title, Body: cp.Body, Data: decodeData(cp.Data)})
	sent, failed = countDeliveries(results)
	if sent == 0 && len(recipients) > 0 && ctx.Err() != nil {
		logger.Warn().Err(ctx.Err()).Msg("配信が中断されたため予約中に戻します")
		s.releaseCampaigns(ctx, []string{id})
		return campaignScheduled, 0, 0
	}
	status = campaignFailed
	if sent > 0 || len(recipients) == 0 {
		status = campaignSent
	}

	s.finishCampaign(ctx, id, status, results)
	logger.Info().
		Str("status", status).
		Int("recipients", len(recipients)).
		Int("sent", sent).
		Int("failed", failed).
		Msg("キャンペーンを配信")
	return status, sent, failed
}

// abortCampaign は配信前に失敗したキャンペーンを配信失敗にする。
// ctxのキャンセルが原因の場合は予約中に戻す。
func (s *Server) abortCampaign(ctx context.Context, id string, err error, msg string) (string, int, int) {
	if ctx.Err() != nil {
		s.releaseCampaigns(ctx, []string{id})
		return campaignScheduled, 0, 0
	}
	s.logger.Error().Err(err).Str("campaign_id", id).Msg(msg)
	s.finishCampaign(ctx, id, campaignFailed, nil)
	return campaignFailed, 0, 0
}

// releaseCampaigns は取得済みのキャンペーンを予約中に戻す。ctxがキャンセル済みでも実行する。
func (s *Server) releaseCampaigns(ctx context.Context, ids []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resultWriteTimeout)
	defer cancel()

	now := s.timestamp()
	for _, id := range ids {
		if _, err := s.queries.ReleaseCampaign(ctx, id, now); err != nil {
			s.logger.Error().Err(err).Str("campaign_id", id).Msg("キャンペーンを予約中に戻せませんでした")
		}
	}
}

// finishCampaign は配信ログと最終結果を1トランザクションで記録する。失敗はログに記録するのみ。
// ctxがキャンセル済みでも記録する。
func (s *Server) finishCampaign(ctx context.Context, id, status string, results []delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resultWriteTimeout)
	defer cancel()

	if err := s.writeCampaignResult(ctx, id, status, results); err != nil {
		s.logger.Error().Err(err).Str("campaign_id", id).Msg("配信結果の記録に失敗")
	}
}

func (s *Server) writeCampaignResult(ctx context.Context, id, status string, results []delivery) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	q := s.queries.WithTx(tx)

	now := s.timestamp()
	for _, d := range results {
		if err := q.CreateCampaignLog(ctx, notificationdb.CreateCampaignLogParams{
			ID:         uuid.NewString(),
			CampaignID: id,
			UserID:     d.Recipient.UserID,
			Token:      d.Recipient.Token,
			Status:     d.Status,
			TicketID:   d.TicketID,
			Error:      d.Error,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("配信ログの記録に失敗: %w", err)
		}
	}

	sent, failed := countDeliveries(results)
	if err := q.FinishCampaign(ctx, notificationdb.FinishCampaignParams{
		ID:          id,
		Status:      status,
		SentCount:   int64(sent),
		FailedCount: int64(failed),
		SentAt:      now,
	}); err != nil {
		return fmt.Errorf("キャンペーンの完了に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return nil
}

// handleProcessScheduled は予約配信処理を1回実行するハンドラ。
// 内部API（運用コマンドから呼び出される）。
func (s *Server) handleProcessScheduled() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.ProcessScheduled(c.Request.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("予約配信処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "予約配信処理に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// RunScheduler はspecに従って予約配信処理を定期実行し、ctxがキャンセルされるまで待つ。
// specは標準のcron式（秒は省略可）または@every 1mのような記述子で指定する。
func (s *Server) RunScheduler(ctx context.Context, spec string) error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.ProcessScheduled(ctx); err != nil {
			s.logger.Error().Err(err).Msg("予約配信処理エラー")
		}
	}); err != nil {
		return fmt.Errorf("スケジュールの形式が不正です: %q: %w", spec, err)
	}

	s.logger.Info().Str("spec", spec).Msg("予約配信スケジューラを起動")
	c.Start()
	<-ctx.Done()
	// 実行中の処理の完了を待つ
	<-c.Stop().Done()
	s.logger.Info().Msg("予約配信スケジューラを停止")
	return nil
}
