package db

import "context"

const deviceTokenColumns = `id, user_id, token, platform, active, last_error, created_at, updated_at`

func scanDeviceToken(row interface{ Scan(...any) error }) (DeviceToken, error) {
	var d DeviceToken
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Token,
		&d.Platform,
		&d.Active,
		&d.LastError,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}

func (q *Queries) listDeviceTokens(ctx context.Context, query string, args ...any) ([]DeviceToken, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DeviceToken
	for rows.Next() {
		d, err := scanDeviceToken(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertDeviceToken = `-- name: UpsertDeviceToken :one
INSERT INTO device_tokens (id, user_id, token, platform, active, last_error, created_at, updated_at)
VALUES (?1, ?2, ?3, ?4, 1, '', ?5, ?5)
ON CONFLICT(token) DO UPDATE SET
    user_id = excluded.user_id,
    platform = excluded.platform,
    active = 1,
    last_error = '',
    updated_at = excluded.updated_at
RETURNING ` + deviceTokenColumns + `
`

// UpsertDeviceTokenParams はプッシュトークン登録の引数。
type UpsertDeviceTokenParams struct {
	// ID は新規登録時に使用するID。既存トークンの場合は元のIDが維持される。
	ID       string
	UserID   string
	Token    string
	Platform string
	At       string
}

// UpsertDeviceToken はトークン単位でプッシュトークンを登録する。
// 登録済みの場合は利用者を付け替えて再度有効化する。
func (q *Queries) UpsertDeviceToken(ctx context.Context, arg UpsertDeviceTokenParams) (DeviceToken, error) {
	return scanDeviceToken(q.db.QueryRowContext(ctx, upsertDeviceToken,
		arg.ID,
		arg.UserID,
		arg.Token,
		arg.Platform,
		arg.At,
	))
}

const getDeviceToken = `-- name: GetDeviceToken :one
SELECT ` + deviceTokenColumns + ` FROM device_tokens WHERE id = ?
`

// GetDeviceToken はIDでプッシュトークンを取得する。
func (q *Queries) GetDeviceToken(ctx context.Context, id string) (DeviceToken, error) {
	return scanDeviceToken(q.db.QueryRowContext(ctx, getDeviceToken, id))
}

const listDeviceTokens = `-- name: ListDeviceTokens :many
SELECT ` + deviceTokenColumns + ` FROM device_tokens
WHERE (?1 = '' OR user_id = ?1)
  AND (?2 < 0 OR active = ?2)
ORDER BY created_at DESC, id
LIMIT ?3 OFFSET ?4
`

// ListDeviceTokensParams はプッシュトークン一覧の検索条件。
type ListDeviceTokensParams struct {
	// UserID は利用者IDで絞り込む。空の場合は絞り込まない。
	UserID string
	// Active は有効状態で絞り込む。nilの場合は絞り込まない。
	Active *bool
	Limit  int64
	Offset int64
}

func (p ListDeviceTokensParams) activeArg() int64 {
	if p.Active == nil {
		return -1
	}
	return boolToInt(*p.Active)
}

// ListDeviceTokens は条件に一致するプッシュトークンを新しい順に返す。
func (q *Queries) ListDeviceTokens(ctx context.Context, arg ListDeviceTokensParams) ([]DeviceToken, error) {
	return q.listDeviceTokens(ctx, listDeviceTokens, arg.UserID, arg.activeArg(), arg.Limit, arg.Offset)
}

const countDeviceTokens = `-- name: CountDeviceTokens :one
SELECT COUNT(*) FROM device_tokens
WHERE (?1 = '' OR user_id = ?1)
  AND (?2 < 0 OR active = ?2)
`

// CountDeviceTokens は条件に一致するプッシュトークンの件数を返す。
// LimitとOffsetは無視する。
func (q *Queries) CountDeviceTokens(ctx context.Context, arg ListDeviceTokensParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countDeviceTokens, arg.UserID, arg.activeArg()).Scan(&n)
	return n, err
}

const listActiveDeviceTokens = `-- name: ListActiveDeviceTokens :many
SELECT ` + deviceTokenColumns + ` FROM device_tokens
WHERE active = 1
ORDER BY created_at, id
`

// ListActiveDeviceTokens は有効なすべてのプッシュトークンを返す。
func (q *Queries) ListActiveDeviceTokens(ctx context.Context) ([]DeviceToken, error) {
	return q.listDeviceTokens(ctx, listActiveDeviceTokens)
}

const listActiveDeviceTokensByUsers = `-- name: ListActiveDeviceTokensByUsers :many
SELECT ` + deviceTokenColumns + ` FROM device_tokens
WHERE active = 1
  AND user_id IN (SELECT value FROM json_each(?))
ORDER BY created_at, id
`

// ListActiveDeviceTokensByUsers は指定した利用者の有効なプッシュトークンを返す。
func (q *Queries) ListActiveDeviceTokensByUsers(ctx context.Context, userIDs []string) ([]DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return q.listDeviceTokens(ctx, listActiveDeviceTokensByUsers, jsonList(userIDs))
}

const listDeviceTokensByTokens = `-- name: ListDeviceTokensByTokens :many
SELECT ` + deviceTokenColumns + ` FROM device_tokens
WHERE token IN (SELECT value FROM json_each(?))
`

// ListDeviceTokensByTokens はトークン文字列に一致する登録済みのプッシュトークンを返す。
// 配信ログに利用者IDを記録するために使用する。
func (q *Queries) ListDeviceTokensByTokens(ctx context.Context, tokens []string) ([]DeviceToken, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	return q.listDeviceTokens(ctx, listDeviceTokensByTokens, jsonList(tokens))
}

const deactivateDeviceToken = `-- name: DeactivateDeviceToken :execrows
UPDATE device_tokens SET active = 0, last_error = ?, updated_at = ? WHERE id = ?
`

// DeactivateDeviceTokenParams はプッシュトークン無効化の引数。
type DeactivateDeviceTokenParams struct {
	ID        string
	LastError string
	UpdatedAt string
}

// DeactivateDeviceToken はIDでプッシュトークンを無効化し、更新件数を返す。
func (q *Queries) DeactivateDeviceToken(ctx context.Context, arg DeactivateDeviceTokenParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deactivateDeviceToken, arg.LastError, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deactivateDeviceTokenByToken = `-- name: DeactivateDeviceTokenByToken :execrows
UPDATE device_tokens SET active = 0, last_error = ?, updated_at = ? WHERE token = ? AND active = 1
`

// DeactivateDeviceTokenByTokenParams はトークン文字列による無効化の引数。
type DeactivateDeviceTokenByTokenParams struct {
	Token     string
	LastError string
	UpdatedAt string
}

// DeactivateDeviceTokenByToken はトークン文字列でプッシュトークンを無効化し、更新件数を返す。
func (q *Queries) DeactivateDeviceTokenByToken(ctx context.Context, arg DeactivateDeviceTokenByTokenParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deactivateDeviceTokenByToken, arg.LastError, arg.UpdatedAt, arg.Token)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
