package db

import (
	"context"
)

const listPermissions = `-- name: ListPermissions :many
SELECT code, description FROM permissions ORDER BY code
`

// ListPermissions は権限カタログを取得する。
func (q *Queries) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := q.db.QueryContext(ctx, listPermissions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Code, &p.Description); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const roleColumns = `id, name, description, built_in, created_at`

func scanRole(row interface{ Scan(...any) error }) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.BuiltIn, &r.CreatedAt)
	return r, err
}

const createRole = `-- name: CreateRole :exec
INSERT INTO roles (id, name, description, built_in, created_at) VALUES (?, ?, ?, 0, ?)
`

// CreateRoleParams はCreateRoleの引数。
type CreateRoleParams struct {
	ID          string
	Name        string
	Description string
	CreatedAt   string
}

// CreateRole はロールを登録する。
func (q *Queries) CreateRole(ctx context.Context, arg CreateRoleParams) error {
	_, err := q.db.ExecContext(ctx, createRole, arg.ID, arg.Name, arg.Description, arg.CreatedAt)
	return err
}

const getRole = `-- name: GetRole :one
SELECT ` + roleColumns + ` FROM roles WHERE id = ?
`

// GetRole はIDでロールを取得する。
func (q *Queries) GetRole(ctx context.Context, id string) (Role, error) {
	return scanRole(q.db.QueryRowContext(ctx, getRole, id))
}

const getRoleByName = `-- name: GetRoleByName :one
SELECT ` + roleColumns + ` FROM roles WHERE name = ?
`

// GetRoleByName は名前でロールを取得する。
func (q *Queries) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return scanRole(q.db.QueryRowContext(ctx, getRoleByName, name))
}

const listRoles = `-- name: ListRoles :many
SELECT ` + roleColumns + ` FROM roles ORDER BY built_in DESC, name
`

// ListRoles はロールを組み込みロール、名前の順で取得する。
func (q *Queries) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := q.db.QueryContext(ctx, listRoles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateRoleDescription = `-- name: UpdateRoleDescription :exec
UPDATE roles SET description = ? WHERE id = ?
`

// UpdateRoleDescription はロールの説明を更新する。
func (q *Queries) UpdateRoleDescription(ctx context.Context, id, description string) error {
	_, err := q.db.ExecContext(ctx, updateRoleDescription, description, id)
	return err
}

const deleteRole = `-- name: DeleteRole :execrows
DELETE FROM roles WHERE id = ? AND built_in = 0
`

// DeleteRole は組み込みでないロールを削除し、削除件数を返す。
func (q *Queries) DeleteRole(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRole, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listRolePermissions = `-- name: ListRolePermissions :many
SELECT permission_code FROM role_permissions WHERE role_id = ? ORDER BY permission_code
`

// ListRolePermissions はロールに付与された権限コードを取得する。
func (q *Queries) ListRolePermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listRolePermissions, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		items = append(items, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const addRolePermission = `-- name: AddRolePermission :exec
INSERT INTO role_permissions (role_id, permission_code) VALUES (?, ?)
`

// AddRolePermission はロールに権限を付与する。
func (q *Queries) AddRolePermission(ctx context.Context, roleID, code string) error {
	_, err := q.db.ExecContext(ctx, addRolePermission, roleID, code)
	return err
}

const clearRolePermissions = `-- name: ClearRolePermissions :exec
DELETE FROM role_permissions WHERE role_id = ?
`

// ClearRolePermissions はロールの権限をすべて取り除く。
func (q *Queries) ClearRolePermissions(ctx context.Context, roleID string) error {
	_, err := q.db.ExecContext(ctx, clearRolePermissions, roleID)
	return err
}

const countAdminsByRole = `-- name: CountAdminsByRole :one
SELECT COUNT(*) FROM admins WHERE role_id = ?
`

// CountAdminsByRole はロールが割り当てられた管理者の数を返す。
func (q *Queries) CountAdminsByRole(ctx context.Context, roleID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAdminsByRole, roleID).Scan(&n)
	return n, err
}
