package db

import (
	"context"
	"database/sql"
)

const bannerColumns = `id, title, image_url, link_url, priority, active, starts_at, ends_at, created_at, updated_at`

func scanBanner(row interface{ Scan(...any) error }) (Banner, error) {
	var b Banner
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.ImageURL,
		&b.LinkURL,
		&b.Priority,
		&b.Active,
		&b.StartsAt,
		&b.EndsAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (q *Queries) listBanners(ctx context.Context, query string, args ...any) ([]Banner, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Banner
	for rows.Next() {
		b, err := scanBanner(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createBanner = `-- name: CreateBanner :exec
INSERT INTO banners (id, title, image_url, link_url, priority, active, starts_at, ends_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// BannerParams はバナーの登録・更新の引数。
type BannerParams struct {
	ID       string
	Title    string
	ImageURL string
	LinkURL  string
	Priority int64
	Active   bool
	StartsAt sql.NullString
	EndsAt   sql.NullString
	// At は作成日時または更新日時。
	At string
}

// CreateBanner はバナーを登録する。
func (q *Queries) CreateBanner(ctx context.Context, arg BannerParams) error {
	_, err := q.db.ExecContext(ctx, createBanner,
		arg.ID,
		arg.Title,
		arg.ImageURL,
		arg.LinkURL,
		arg.Priority,
		boolToInt(arg.Active),
		arg.StartsAt,
		arg.EndsAt,
		arg.At,
		arg.At,
	)
	return err
}

const updateBanner = `-- name: UpdateBanner :execrows
UPDATE banners
SET title = ?, image_url = ?, link_url = ?, priority = ?, active = ?, starts_at = ?, ends_at = ?, updated_at = ?
WHERE id = ?
`

// UpdateBanner はバナーを更新し、更新件数を返す。
func (q *Queries) UpdateBanner(ctx context.Context, arg BannerParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateBanner,
		arg.Title,
		arg.ImageURL,
		arg.LinkURL,
		arg.Priority,
		boolToInt(arg.Active),
		arg.StartsAt,
		arg.EndsAt,
		arg.At,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getBanner = `-- name: GetBanner :one
SELECT ` + bannerColumns + ` FROM banners WHERE id = ?
`

// GetBanner はIDでバナーを取得する。
func (q *Queries) GetBanner(ctx context.Context, id string) (Banner, error) {
	return scanBanner(q.db.QueryRowContext(ctx, getBanner, id))
}

const listBanners = `-- name: ListBanners :many
SELECT ` + bannerColumns + ` FROM banners ORDER BY priority DESC, created_at DESC, id
`

// ListBanners はすべてのバナーを表示順に取得する。
func (q *Queries) ListBanners(ctx context.Context) ([]Banner, error) {
	return q.listBanners(ctx, listBanners)
}

const listLiveBanners = `-- name: ListLiveBanners :many
SELECT ` + bannerColumns + ` FROM banners
WHERE active = 1
  AND (starts_at IS NULL OR starts_at <= ?1)
  AND (ends_at IS NULL OR ends_at > ?1)
ORDER BY priority DESC, created_at DESC, id
`

// ListLiveBanners は指定日時に表示期間中の有効なバナーを表示順に取得する。
func (q *Queries) ListLiveBanners(ctx context.Context, now string) ([]Banner, error) {
	return q.listBanners(ctx, listLiveBanners, now)
}

const deleteBanner = `-- name: DeleteBanner :execrows
DELETE FROM banners WHERE id = ?
`

// DeleteBanner はバナーを削除し、削除件数を返す。
func (q *Queries) DeleteBanner(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteBanner, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
