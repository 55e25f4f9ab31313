package db

import (
	"context"
)

const createAuditLog = `-- name: CreateAuditLog :exec
INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, data, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// CreateAuditLogParams はCreateAuditLogの引数。
type CreateAuditLogParams struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Data       string
	CreatedAt  string
}

// CreateAuditLog は監査ログを追記する。
func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) error {
	_, err := q.db.ExecContext(ctx, createAuditLog,
		arg.ID,
		arg.ActorID,
		arg.Action,
		arg.EntityType,
		arg.EntityID,
		arg.Data,
		arg.CreatedAt,
	)
	return err
}

const auditFilter = `
WHERE (?1 = '' OR entity_type = ?1)
  AND (?2 = '' OR entity_id = ?2)
  AND (?3 = '' OR actor_id = ?3)
`

const listAuditLogs = `-- name: ListAuditLogs :many
SELECT id, actor_id, action, entity_type, entity_id, data, created_at FROM audit_logs` + auditFilter + `
ORDER BY created_at DESC, id
LIMIT ?4 OFFSET ?5
`

// AuditLogFilter は監査ログの絞り込み条件。
type AuditLogFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
}

// ListAuditLogsParams はListAuditLogsの引数。
type ListAuditLogsParams struct {
	AuditLogFilter
	Limit  int64
	Offset int64
}

// ListAuditLogs は条件に一致する監査ログを新しい順に取得する。
func (q *Queries) ListAuditLogs(ctx context.Context, arg ListAuditLogsParams) ([]AuditLog, error) {
	rows, err := q.db.QueryContext(ctx, listAuditLogs,
		arg.EntityType,
		arg.EntityID,
		arg.ActorID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLog
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.EntityType, &l.EntityID, &l.Data, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countAuditLogs = `-- name: CountAuditLogs :one
SELECT COUNT(*) FROM audit_logs` + auditFilter

// CountAuditLogs は条件に一致する監査ログ数を返す。
func (q *Queries) CountAuditLogs(ctx context.Context, arg AuditLogFilter) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAuditLogs, arg.EntityType, arg.EntityID, arg.ActorID).Scan(&n)
	return n, err
}
