package db

import (
	"context"
)

const appVersionColumns = `id, platform, version, min_supported_version, force_update, release_notes, created_at`

func scanAppVersion(row interface{ Scan(...any) error }) (AppVersion, error) {
	var v AppVersion
	err := row.Scan(
		&v.ID,
		&v.Platform,
		&v.Version,
		&v.MinSupportedVersion,
		&v.ForceUpdate,
		&v.ReleaseNotes,
		&v.CreatedAt,
	)
	return v, err
}

const createAppVersion = `-- name: CreateAppVersion :exec
INSERT INTO app_versions (id, platform, version, min_supported_version, force_update, release_notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// AppVersionParams はリリースの登録・更新の引数。
type AppVersionParams struct {
	ID                  string
	Platform            string
	Version             string
	MinSupportedVersion string
	ForceUpdate         bool
	ReleaseNotes        string
	CreatedAt           string
}

// CreateAppVersion はリリースを登録する。
func (q *Queries) CreateAppVersion(ctx context.Context, arg AppVersionParams) error {
	_, err := q.db.ExecContext(ctx, createAppVersion,
		arg.ID,
		arg.Platform,
		arg.Version,
		arg.MinSupportedVersion,
		boolToInt(arg.ForceUpdate),
		arg.ReleaseNotes,
		arg.CreatedAt,
	)
	return err
}

const updateAppVersion = `-- name: UpdateAppVersion :execrows
UPDATE app_versions
SET version = ?, min_supported_version = ?, force_update = ?, release_notes = ?
WHERE id = ?
`

// UpdateAppVersion はリリースを更新し、更新件数を返す。プラットフォームは変更しない。
func (q *Queries) UpdateAppVersion(ctx context.Context, arg AppVersionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateAppVersion,
		arg.Version,
		arg.MinSupportedVersion,
		boolToInt(arg.ForceUpdate),
		arg.ReleaseNotes,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getAppVersion = `-- name: GetAppVersion :one
SELECT ` + appVersionColumns + ` FROM app_versions WHERE id = ?
`

// GetAppVersion はIDでリリースを取得する。
func (q *Queries) GetAppVersion(ctx context.Context, id string) (AppVersion, error) {
	return scanAppVersion(q.db.QueryRowContext(ctx, getAppVersion, id))
}

const listAppVersions = `-- name: ListAppVersions :many
SELECT ` + appVersionColumns + ` FROM app_versions
WHERE (?1 = '' OR platform = ?1)
ORDER BY platform, created_at DESC, id
`

// ListAppVersions はリリースを取得する。platformが空の場合は全プラットフォームを対象とする。
// バージョン順の並び替えは呼び出し側でsemverに従って行う。
func (q *Queries) ListAppVersions(ctx context.Context, platform string) ([]AppVersion, error) {
	rows, err := q.db.QueryContext(ctx, listAppVersions, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AppVersion
	for rows.Next() {
		v, err := scanAppVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAppVersion = `-- name: DeleteAppVersion :execrows
DELETE FROM app_versions WHERE id = ?
`

// DeleteAppVersion はリリースを削除し、削除件数を返す。
func (q *Queries) DeleteAppVersion(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAppVersion, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
