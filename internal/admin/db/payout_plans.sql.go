package db

import (
	"context"
	"database/sql"
)

const payoutPlanColumns = `id, user_id, name, frequency, status, total_amount_kobo, payout_amount_kobo, next_payout_at, created_at, updated_at`

func scanPayoutPlan(row interface{ Scan(...any) error }) (PayoutPlan, error) {
	var p PayoutPlan
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Frequency,
		&p.Status,
		&p.TotalAmountKobo,
		&p.PayoutAmountKobo,
		&p.NextPayoutAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

const createPayoutPlan = `-- name: CreatePayoutPlan :exec
INSERT INTO payout_plans (id, user_id, name, frequency, status, total_amount_kobo, payout_amount_kobo, next_payout_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreatePayoutPlanParams はCreatePayoutPlanの引数。
type CreatePayoutPlanParams struct {
	ID               string
	UserID           string
	Name             string
	Frequency        string
	Status           string
	TotalAmountKobo  int64
	PayoutAmountKobo int64
	NextPayoutAt     sql.NullString
	CreatedAt        string
}

// CreatePayoutPlan は払い出しプランを登録する。
func (q *Queries) CreatePayoutPlan(ctx context.Context, arg CreatePayoutPlanParams) error {
	_, err := q.db.ExecContext(ctx, createPayoutPlan,
		arg.ID,
		arg.UserID,
		arg.Name,
		arg.Frequency,
		arg.Status,
		arg.TotalAmountKobo,
		arg.PayoutAmountKobo,
		arg.NextPayoutAt,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getPayoutPlan = `-- name: GetPayoutPlan :one
SELECT ` + payoutPlanColumns + ` FROM payout_plans WHERE id = ?
`

// GetPayoutPlan はIDで払い出しプランを取得する。
func (q *Queries) GetPayoutPlan(ctx context.Context, id string) (PayoutPlan, error) {
	return scanPayoutPlan(q.db.QueryRowContext(ctx, getPayoutPlan, id))
}

const payoutPlanFilter = `
WHERE (?1 = '' OR status = ?1)
  AND (?2 = '' OR frequency = ?2)
  AND (?3 = '' OR user_id = ?3)
  AND (?4 = '' OR instr(lower(name), lower(?4)) > 0)
`

const listPayoutPlans = `-- name: ListPayoutPlans :many
SELECT ` + payoutPlanColumns + ` FROM payout_plans` + payoutPlanFilter + `
ORDER BY created_at DESC, id
LIMIT ?5 OFFSET ?6
`

// PayoutPlanFilter は払い出しプランの絞り込み条件。
type PayoutPlanFilter struct {
	Status    string
	Frequency string
	UserID    string
	Query     string
}

func (f PayoutPlanFilter) args() []any {
	return []any{f.Status, f.Frequency, f.UserID, f.Query}
}

// ListPayoutPlansParams はListPayoutPlansの引数。
type ListPayoutPlansParams struct {
	PayoutPlanFilter
	Limit  int64
	Offset int64
}

// ListPayoutPlans は条件に一致する払い出しプランを新しい順に取得する。
func (q *Queries) ListPayoutPlans(ctx context.Context, arg ListPayoutPlansParams) ([]PayoutPlan, error) {
	args := append(arg.args(), arg.Limit, arg.Offset)
	rows, err := q.db.QueryContext(ctx, listPayoutPlans, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PayoutPlan
	for rows.Next() {
		p, err := scanPayoutPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPayoutPlans = `-- name: CountPayoutPlans :one
SELECT COUNT(*) FROM payout_plans` + payoutPlanFilter

// CountPayoutPlans は条件に一致する払い出しプラン数を返す。
func (q *Queries) CountPayoutPlans(ctx context.Context, arg PayoutPlanFilter) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countPayoutPlans, arg.args()...).Scan(&n)
	return n, err
}

const updatePayoutPlanStatus = `-- name: UpdatePayoutPlanStatus :execrows
UPDATE payout_plans SET status = ?, updated_at = ? WHERE id = ? AND status = ?
`

// UpdatePayoutPlanStatusParams はUpdatePayoutPlanStatusの引数。
type UpdatePayoutPlanStatusParams struct {
	Status     string
	UpdatedAt  string
	ID         string
	FromStatus string
}

// UpdatePayoutPlanStatus は現在のステータスがFromStatusの場合のみステータスを更新し、更新件数を返す。
func (q *Queries) UpdatePayoutPlanStatus(ctx context.Context, arg UpdatePayoutPlanStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePayoutPlanStatus, arg.Status, arg.UpdatedAt, arg.ID, arg.FromStatus)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
