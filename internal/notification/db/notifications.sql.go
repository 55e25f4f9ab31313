package db

import "context"

const notificationColumns = `id, user_id, title, message, data, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Message,
		&n.Data,
		&n.IsRead,
		&n.CreatedAt,
	)
	return n, err
}

const createNotification = `-- name: CreateNotification :exec
INSERT INTO notifications (id, user_id, title, message, data, is_read, created_at)
VALUES (?, ?, ?, ?, ?, 0, ?)
`

// CreateNotificationParams は通知作成の引数。
type CreateNotificationParams struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Data      string
	CreatedAt string
}

// CreateNotification は未読の通知を作成する。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) error {
	_, err := q.db.ExecContext(ctx, createNotification,
		arg.ID,
		arg.UserID,
		arg.Title,
		arg.Message,
		arg.Data,
		arg.CreatedAt,
	)
	return err
}

const getNotification = `-- name: GetNotification :one
SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?
`

// GetNotification はIDで通知を取得する。
func (q *Queries) GetNotification(ctx context.Context, id string) (Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, getNotification, id))
}

const listNotifications = `-- name: ListNotifications :many
SELECT ` + notificationColumns + ` FROM notifications
WHERE (?1 = '' OR user_id = ?1)
  AND (?2 = 0 OR is_read = 0)
ORDER BY created_at DESC, rowid DESC
LIMIT ?3 OFFSET ?4
`

// ListNotificationsParams は通知一覧の検索条件。
type ListNotificationsParams struct {
	// UserID は利用者IDで絞り込む。空の場合は絞り込まない。
	UserID string
	// UnreadOnly がtrueの場合は未読のみ返す。
	UnreadOnly bool
	Limit      int64
	Offset     int64
}

// ListNotifications は条件に一致する通知を新しい順に返す。
func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, arg.UserID, boolToInt(arg.UnreadOnly), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countNotifications = `-- name: CountNotifications :one
SELECT COUNT(*) FROM notifications
WHERE (?1 = '' OR user_id = ?1)
  AND (?2 = 0 OR is_read = 0)
`

// CountNotifications は条件に一致する通知の件数を返す。
func (q *Queries) CountNotifications(ctx context.Context, arg ListNotificationsParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countNotifications, arg.UserID, boolToInt(arg.UnreadOnly)).Scan(&n)
	return n, err
}

const markNotificationAsRead = `-- name: MarkNotificationAsRead :execrows
UPDATE notifications SET is_read = 1 WHERE id = ?
`

// MarkNotificationAsRead は通知を既読にし、更新件数を返す。
func (q *Queries) MarkNotificationAsRead(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markNotificationAsRead, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markAllNotificationsAsRead = `-- name: MarkAllNotificationsAsRead :execrows
UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0
`

// MarkAllNotificationsAsRead は利用者の未読通知をすべて既読にし、更新件数を返す。
func (q *Queries) MarkAllNotificationsAsRead(ctx context.Context, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markAllNotificationsAsRead, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
