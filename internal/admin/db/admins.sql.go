package db

import (
	"context"
)

const adminColumns = `a.id, a.email, a.name, a.password_hash, a.role_id, r.name, a.active, a.last_login_at, a.created_at, a.updated_at`

func scanAdmin(row interface{ Scan(...any) error }) (Admin, error) {
	var a Admin
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Name,
		&a.PasswordHash,
		&a.RoleID,
		&a.RoleName,
		&a.Active,
		&a.LastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

const createAdmin = `-- name: CreateAdmin :exec
INSERT INTO admins (id, email, name, password_hash, role_id, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?)
`

// CreateAdminParams はCreateAdminの引数。
type CreateAdminParams struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	RoleID       string
	CreatedAt    string
}

// CreateAdmin は有効な管理者アカウントを登録する。
func (q *Queries) CreateAdmin(ctx context.Context, arg CreateAdminParams) error {
	_, err := q.db.ExecContext(ctx, createAdmin,
		arg.ID,
		arg.Email,
		arg.Name,
		arg.PasswordHash,
		arg.RoleID,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getAdmin = `-- name: GetAdmin :one
SELECT ` + adminColumns + ` FROM admins a JOIN roles r ON r.id = a.role_id WHERE a.id = ?
`

// GetAdmin はIDで管理者を取得する。
func (q *Queries) GetAdmin(ctx context.Context, id string) (Admin, error) {
	return scanAdmin(q.db.QueryRowContext(ctx, getAdmin, id))
}

const getAdminByEmail = `-- name: GetAdminByEmail :one
SELECT ` + adminColumns + ` FROM admins a JOIN roles r ON r.id = a.role_id WHERE a.email = ?
`

// GetAdminByEmail はメールアドレスで管理者を取得する。
func (q *Queries) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	return scanAdmin(q.db.QueryRowContext(ctx, getAdminByEmail, email))
}

const listAdmins = `-- name: ListAdmins :many
SELECT ` + adminColumns + ` FROM admins a JOIN roles r ON r.id = a.role_id ORDER BY a.created_at, a.id
`

// ListAdmins は管理者を登録順に取得する。
func (q *Queries) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := q.db.QueryContext(ctx, listAdmins)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateAdminRole = `-- name: UpdateAdminRole :execrows
UPDATE admins SET role_id = ?, updated_at = ? WHERE id = ?
`

// UpdateAdminRole は管理者のロールを変更し、更新件数を返す。
func (q *Queries) UpdateAdminRole(ctx context.Context, id, roleID, updatedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateAdminRole, roleID, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setAdminActive = `-- name: SetAdminActive :execrows
UPDATE admins SET active = ?, updated_at = ? WHERE id = ?
`

// SetAdminActive は管理者の有効状態を変更し、更新件数を返す。
func (q *Queries) SetAdminActive(ctx context.Context, id string, active bool, updatedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, setAdminActive, boolToInt(active), updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const touchAdminLogin = `-- name: TouchAdminLogin :exec
UPDATE admins SET last_login_at = ? WHERE id = ?
`

// TouchAdminLogin は最終ログイン日時を更新する。
func (q *Queries) TouchAdminLogin(ctx context.Context, id, at string) error {
	_, err := q.db.ExecContext(ctx, touchAdminLogin, at, id)
	return err
}
