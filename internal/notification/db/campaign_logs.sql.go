package db

import "context"

const createCampaignLog = `-- name: CreateCampaignLog :exec
INSERT INTO campaign_logs (id, campaign_id, user_id, token, status, ticket_id, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateCampaignLogParams は配信ログ記録の引数。
type CreateCampaignLogParams struct {
	ID         string
	CampaignID string
	UserID     string
	Token      string
	Status     string
	TicketID   string
	Error      string
	CreatedAt  string
}

// CreateCampaignLog は配信先1件分の送信結果を記録する。
func (q *Queries) CreateCampaignLog(ctx context.Context, arg CreateCampaignLogParams) error {
	_, err := q.db.ExecContext(ctx, createCampaignLog,
		arg.ID,
		arg.CampaignID,
		arg.UserID,
		arg.Token,
		arg.Status,
		arg.TicketID,
		arg.Error,
		arg.CreatedAt,
	)
	return err
}

const listCampaignLogs = `-- name: ListCampaignLogs :many
SELECT id, campaign_id, user_id, token, status, ticket_id, error, created_at
FROM campaign_logs
WHERE campaign_id = ?1 AND (?2 = '' OR status = ?2)
ORDER BY created_at, rowid
LIMIT ?3 OFFSET ?4
`

// ListCampaignLogsParams は配信ログ一覧の検索条件。
type ListCampaignLogsParams struct {
	CampaignID string
	// Status は送信結果で絞り込む。空の場合は絞り込まない。
	Status string
	Limit  int64
	Offset int64
}

// ListCampaignLogs はキャンペーンの配信ログを記録順に返す。
func (q *Queries) ListCampaignLogs(ctx context.Context, arg ListCampaignLogsParams) ([]CampaignLog, error) {
	rows, err := q.db.QueryContext(ctx, listCampaignLogs, arg.CampaignID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CampaignLog
	for rows.Next() {
		var l CampaignLog
		if err := rows.Scan(
			&l.ID,
			&l.CampaignID,
			&l.UserID,
			&l.Token,
			&l.Status,
			&l.TicketID,
			&l.Error,
			&l.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countCampaignLogs = `-- name: CountCampaignLogs :one
SELECT COUNT(*) FROM campaign_logs WHERE campaign_id = ?1 AND (?2 = '' OR status = ?2)
`

// CountCampaignLogs は条件に一致する配信ログの件数を返す。
func (q *Queries) CountCampaignLogs(ctx context.Context, arg ListCampaignLogsParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCampaignLogs, arg.CampaignID, arg.Status).Scan(&n)
	return n, err
}
