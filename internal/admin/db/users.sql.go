package db

import (
	"context"
)

const userColumns = `id, first_name, last_name, email, phone, status, kyc_status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Phone,
		&u.Status,
		&u.KYCStatus,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const createUser = `-- name: CreateUser :exec
INSERT INTO users (id, first_name, last_name, email, phone, status, kyc_status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateUserParams はCreateUserの引数。
type CreateUserParams struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    string
	KYCStatus string
	CreatedAt string
}

// CreateUser は利用者を登録する。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.FirstName,
		arg.LastName,
		arg.Email,
		arg.Phone,
		arg.Status,
		arg.KYCStatus,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getUser = `-- name: GetUser :one
SELECT ` + userColumns + ` FROM users WHERE id = ?
`

// GetUser はIDで利用者を取得する。
func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

// userFilter は利用者一覧の絞り込み条件。空文字の条件は無視される。
const userFilter = `
WHERE (?1 = '' OR instr(lower(first_name), lower(?1)) > 0 OR instr(lower(last_name), lower(?1)) > 0
       OR instr(lower(email), lower(?1)) > 0 OR instr(phone, ?1) > 0)
  AND (?2 = '' OR status = ?2)
  AND (?3 = '' OR kyc_status = ?3)
`

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + ` FROM users` + userFilter + `
ORDER BY created_at DESC, id
LIMIT ?4 OFFSET ?5
`

// ListUsersParams はListUsersの引数。
type ListUsersParams struct {
	Query     string
	Status    string
	KYCStatus string
	Limit     int64
	Offset    int64
}

// ListUsers は条件に一致する利用者を新しい順に取得する。
func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers, arg.Query, arg.Status, arg.KYCStatus, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUsers = `-- name: CountUsers :one
SELECT COUNT(*) FROM users` + userFilter

// CountUsersParams はCountUsersの引数。
type CountUsersParams struct {
	Query     string
	Status    string
	KYCStatus string
}

// CountUsers は条件に一致する利用者数を返す。
func (q *Queries) CountUsers(ctx context.Context, arg CountUsersParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsers, arg.Query, arg.Status, arg.KYCStatus).Scan(&n)
	return n, err
}

const updateUserStatus = `-- name: UpdateUserStatus :execrows
UPDATE users SET status = ?, updated_at = ? WHERE id = ?
`

// UpdateUserStatusParams はUpdateUserStatusの引数。
type UpdateUserStatusParams struct {
	Status    string
	UpdatedAt string
	ID        string
}

// UpdateUserStatus は利用者のステータスを更新し、更新件数を返す。
func (q *Queries) UpdateUserStatus(ctx context.Context, arg UpdateUserStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUserStatus, arg.Status, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateUserKYCStatus = `-- name: UpdateUserKYCStatus :execrows
UPDATE users SET kyc_status = ?, updated_at = ? WHERE id = ?
`

// UpdateUserKYCStatusParams はUpdateUserKYCStatusの引数。
type UpdateUserKYCStatusParams struct {
	KYCStatus string
	UpdatedAt string
	ID        string
}

// UpdateUserKYCStatus は利用者の本人確認ステータスを更新し、更新件数を返す。
func (q *Queries) UpdateUserKYCStatus(ctx context.Context, arg UpdateUserKYCStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUserKYCStatus, arg.KYCStatus, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getUserStats = `-- name: GetUserStats :one
SELECT
    (SELECT COUNT(*) FROM payout_plans WHERE user_id = ?1),
    (SELECT COUNT(*) FROM transactions WHERE user_id = ?1),
    (SELECT COALESCE(SUM(amount_kobo), 0) FROM transactions
        WHERE user_id = ?1 AND type = 'deposit' AND status = 'successful')
`

// UserStats は利用者詳細に表示する集計値。
type UserStats struct {
	PayoutPlanCount  int64
	TransactionCount int64
	DepositTotalKobo int64
}

// GetUserStats は利用者のプラン数、取引数、成功した入金の合計を返す。
func (q *Queries) GetUserStats(ctx context.Context, userID string) (UserStats, error) {
	var s UserStats
	err := q.db.QueryRowContext(ctx, getUserStats, userID).Scan(
		&s.PayoutPlanCount,
		&s.TransactionCount,
		&s.DepositTotalKobo,
	)
	return s, err
}

const countUsersByStatus = `-- name: CountUsersByStatus :many
SELECT status, COUNT(*) FROM users GROUP BY status ORDER BY status
`

// CountUsersByStatus はステータスごとの利用者数を返す。
func (q *Queries) CountUsersByStatus(ctx context.Context) ([]StatusCount, error) {
	return q.statusCounts(ctx, countUsersByStatus)
}

// statusCounts はステータスと件数の2列を返すクエリを実行する。
func (q *Queries) statusCounts(ctx context.Context, query string, args ...any) ([]StatusCount, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		items = append(items, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
