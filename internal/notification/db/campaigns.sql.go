package db

import (
	"context"
	"database/sql"
)

const campaignColumns = `id, title, body, data, audience, target_user_ids, target_tokens, status, scheduled_at, sent_at, sent_count, failed_count, created_by, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Body,
		&c.Data,
		&c.Audience,
		&c.TargetUserIDs,
		&c.TargetTokens,
		&c.Status,
		&c.ScheduledAt,
		&c.SentAt,
		&c.SentCount,
		&c.FailedCount,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

const createCampaign = `-- name: CreateCampaign :exec
INSERT INTO campaigns (id, title, body, data, audience, target_user_ids, target_tokens, status, scheduled_at, created_by, created_at, updated_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?11)
`

// CreateCampaignParams はキャンペーン作成の引数。
type CreateCampaignParams struct {
	ID            string
	Title         string
	Body          string
	Data          string
	Audience      string
	TargetUserIDs []string
	TargetTokens  []string
	Status        string
	ScheduledAt   sql.NullString
	CreatedBy     string
	CreatedAt     string
}

// CreateCampaign はキャンペーンを作成する。
func (q *Queries) CreateCampaign(ctx context.Context, arg CreateCampaignParams) error {
	_, err := q.db.ExecContext(ctx, createCampaign,
		arg.ID,
		arg.Title,
		arg.Body,
		arg.Data,
		arg.Audience,
		jsonList(arg.TargetUserIDs),
		jsonList(arg.TargetTokens),
		arg.Status,
		arg.ScheduledAt,
		arg.CreatedBy,
		arg.CreatedAt,
	)
	return err
}

const getCampaign = `-- name: GetCampaign :one
SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?
`

// GetCampaign はIDでキャンペーンを取得する。
func (q *Queries) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, getCampaign, id))
}

const listCampaigns = `-- name: ListCampaigns :many
SELECT ` + campaignColumns + ` FROM campaigns
WHERE (?1 = '' OR status = ?1)
ORDER BY created_at DESC, id
LIMIT ?2 OFFSET ?3
`

// ListCampaignsParams はキャンペーン一覧の検索条件。
type ListCampaignsParams struct {
	// Status はステータスで絞り込む。空の場合は絞り込まない。
	Status string
	Limit  int64
	Offset int64
}

// ListCampaigns は条件に一致するキャンペーンを新しい順に返す。
func (q *Queries) ListCampaigns(ctx context.Context, arg ListCampaignsParams) ([]Campaign, error) {
	rows, err := q.db.QueryContext(ctx, listCampaigns, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countCampaigns = `-- name: CountCampaigns :one
SELECT COUNT(*) FROM campaigns WHERE (?1 = '' OR status = ?1)
`

// CountCampaigns は条件に一致するキャンペーンの件数を返す。
func (q *Queries) CountCampaigns(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCampaigns, status).Scan(&n)
	return n, err
}

const updateCampaign = `-- name: UpdateCampaign :execrows
UPDATE campaigns
SET title = ?1, body = ?2, data = ?3, audience = ?4, target_user_ids = ?5, target_tokens = ?6,
    status = ?7, scheduled_at = ?8, updated_at = ?9
WHERE id = ?10 AND status IN ('draft', 'scheduled')
`

// UpdateCampaignParams はキャンペーン更新の引数。
type UpdateCampaignParams struct {
	ID            string
	Title         string
	Body          string
	Data          string
	Audience      string
	TargetUserIDs []string
	TargetTokens  []string
	Status        string
	ScheduledAt   sql.NullString
	UpdatedAt     string
}

// UpdateCampaign は下書きまたは予約中のキャンペーンを更新し、更新件数を返す。
// 配信処理中や配信済みのキャンペーンは更新されない。
func (q *Queries) UpdateCampaign(ctx context.Context, arg UpdateCampaignParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateCampaign,
		arg.Title,
		arg.Body,
		arg.Data,
		arg.Audience,
		jsonList(arg.TargetUserIDs),
		jsonList(arg.TargetTokens),
		arg.Status,
		arg.ScheduledAt,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const scheduleCampaign = `-- name: ScheduleCampaign :execrows
UPDATE campaigns SET status = 'scheduled', scheduled_at = ?, updated_at = ?
WHERE id = ? AND status IN ('draft', 'scheduled')
`

// ScheduleCampaignParams はキャンペーン予約の引数。
type ScheduleCampaignParams struct {
	ID          string
	ScheduledAt string
	UpdatedAt   string
}

// ScheduleCampaign は下書きまたは予約中のキャンペーンを指定日時に予約し、更新件数を返す。
func (q *Queries) ScheduleCampaign(ctx context.Context, arg ScheduleCampaignParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, scheduleCampaign, arg.ScheduledAt, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const cancelCampaign = `-- name: CancelCampaign :execrows
UPDATE campaigns SET status = 'cancelled', updated_at = ?
WHERE id = ? AND status IN ('draft', 'scheduled')
`

// CancelCampaign は下書きまたは予約中のキャンペーンを取り消し、更新件数を返す。
func (q *Queries) CancelCampaign(ctx context.Context, id, updatedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelCampaign, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDueCampaignIDs = `-- name: ListDueCampaignIDs :many
SELECT id FROM campaigns
WHERE status = 'scheduled' AND scheduled_at <= ?
ORDER BY scheduled_at, id
LIMIT ?
`

// ListDueCampaignIDsParams は配信時刻を過ぎたキャンペーン取得の引数。
type ListDueCampaignIDsParams struct {
	Now   string
	Limit int64
}

// ListDueCampaignIDs は配信時刻を過ぎた予約中キャンペーンのIDを予約日時の古い順に返す。
func (q *Queries) ListDueCampaignIDs(ctx context.Context, arg ListDueCampaignIDsParams) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listDueCampaignIDs, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

const claimCampaign = `-- name: ClaimCampaign :execrows
UPDATE campaigns SET status = 'processing', updated_at = ?
WHERE id = ? AND status = 'scheduled'
`

// ClaimCampaign は予約中のキャンペーンを配信処理中に移し、更新件数を返す。
// 0件の場合は他の処理が先に取得したか、取り消されている。
func (q *Queries) ClaimCampaign(ctx context.Context, id, updatedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, claimCampaign, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const releaseCampaign = `-- name: ReleaseCampaign :execrows
UPDATE campaigns SET status = 'scheduled', updated_at = ?
WHERE id = ? AND status = 'processing'
`

// ReleaseCampaign は配信処理中のキャンペーンを予約中に戻し、更新件数を返す。
// 予約日時は変えないため、次回の処理で再び取得される。
func (q *Queries) ReleaseCampaign(ctx context.Context, id, updatedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, releaseCampaign, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const releaseStaleCampaigns = `-- name: ReleaseStaleCampaigns :execrows
UPDATE campaigns SET status = 'scheduled', updated_at = ?1
WHERE status = 'processing' AND updated_at <= ?2
`

// ReleaseStaleCampaignsParams は処理が途絶えたキャンペーンの回収の引数。
type ReleaseStaleCampaignsParams struct {
	// StaleBefore はこの時刻以前から処理中のままのキャンペーンを回収する。
	StaleBefore string
	UpdatedAt   string
}

// ReleaseStaleCampaigns は長時間処理中のままのキャンペーンを予約中に戻し、更新件数を返す。
func (q *Queries) ReleaseStaleCampaigns(ctx context.Context, arg ReleaseStaleCampaignsParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, releaseStaleCampaigns, arg.UpdatedAt, arg.StaleBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const finishCampaign = `-- name: FinishCampaign :exec
UPDATE campaigns
SET status = ?, sent_count = ?, failed_count = ?, sent_at = ?, updated_at = ?
WHERE id = ? AND status = 'processing'
`

// FinishCampaignParams は配信完了の引数。
type FinishCampaignParams struct {
	ID          string
	Status      string
	SentCount   int64
	FailedCount int64
	SentAt      string
}

// FinishCampaign は配信処理中のキャンペーンに結果を記録する。
func (q *Queries) FinishCampaign(ctx context.Context, arg FinishCampaignParams) error {
	_, err := q.db.ExecContext(ctx, finishCampaign,
		arg.Status,
		arg.SentCount,
		arg.FailedCount,
		arg.SentAt,
		arg.SentAt,
		arg.ID,
	)
	return err
}
