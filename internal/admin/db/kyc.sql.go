package db

import (
	"context"
	"database/sql"
)

const kycColumns = `id, user_id, document_type, document_number, document_url, status, rejection_reason, reviewed_by, reviewed_at, created_at`

func scanKYCRecord(row interface{ Scan(...any) error }) (KYCRecord, error) {
	var k KYCRecord
	err := row.Scan(
		&k.ID,
		&k.UserID,
		&k.DocumentType,
		&k.DocumentNumber,
		&k.DocumentURL,
		&k.Status,
		&k.RejectionReason,
		&k.ReviewedBy,
		&k.ReviewedAt,
		&k.CreatedAt,
	)
	return k, err
}

const createKYCRecord = `-- name: CreateKYCRecord :exec
INSERT INTO kyc_records (id, user_id, document_type, document_number, document_url, status, created_at)
VALUES (?, ?, ?, ?, ?, 'pending', ?)
`

// CreateKYCRecordParams はCreateKYCRecordの引数。
type CreateKYCRecordParams struct {
	ID             string
	UserID         string
	DocumentType   string
	DocumentNumber string
	DocumentURL    string
	CreatedAt      string
}

// CreateKYCRecord は審査待ちの本人確認記録を登録する。
func (q *Queries) CreateKYCRecord(ctx context.Context, arg CreateKYCRecordParams) error {
	_, err := q.db.ExecContext(ctx, createKYCRecord,
		arg.ID,
		arg.UserID,
		arg.DocumentType,
		arg.DocumentNumber,
		arg.DocumentURL,
		arg.CreatedAt,
	)
	return err
}

const getKYCRecord = `-- name: GetKYCRecord :one
SELECT ` + kycColumns + ` FROM kyc_records WHERE id = ?
`

// GetKYCRecord はIDで本人確認記録を取得する。
func (q *Queries) GetKYCRecord(ctx context.Context, id string) (KYCRecord, error) {
	return scanKYCRecord(q.db.QueryRowContext(ctx, getKYCRecord, id))
}

const listKYCRecords = `-- name: ListKYCRecords :many
SELECT ` + kycColumns + ` FROM kyc_records
WHERE (?1 = '' OR status = ?1)
ORDER BY created_at DESC, id
LIMIT ?2 OFFSET ?3
`

// ListKYCRecordsParams はListKYCRecordsの引数。
type ListKYCRecordsParams struct {
	Status string
	Limit  int64
	Offset int64
}

// ListKYCRecords は本人確認記録を新しい順に取得する。
func (q *Queries) ListKYCRecords(ctx context.Context, arg ListKYCRecordsParams) ([]KYCRecord, error) {
	rows, err := q.db.QueryContext(ctx, listKYCRecords, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []KYCRecord
	for rows.Next() {
		k, err := scanKYCRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countKYCRecords = `-- name: CountKYCRecords :one
SELECT COUNT(*) FROM kyc_records WHERE (?1 = '' OR status = ?1)
`

// CountKYCRecords はステータスに一致する本人確認記録の数を返す。
func (q *Queries) CountKYCRecords(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countKYCRecords, status).Scan(&n)
	return n, err
}

const reviewKYCRecord = `-- name: ReviewKYCRecord :execrows
UPDATE kyc_records
SET status = ?, rejection_reason = ?, reviewed_by = ?, reviewed_at = ?
WHERE id = ? AND status = 'pending'
`

// ReviewKYCRecordParams はReviewKYCRecordの引数。
type ReviewKYCRecordParams struct {
	Status          string
	RejectionReason string
	ReviewedBy      sql.NullString
	ReviewedAt      sql.NullString
	ID              string
}

// ReviewKYCRecord は審査待ちの記録に審査結果を記録し、更新件数を返す。
// 審査待ちでない記録は更新されない。
func (q *Queries) ReviewKYCRecord(ctx context.Context, arg ReviewKYCRecordParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, reviewKYCRecord,
		arg.Status,
		arg.RejectionReason,
		arg.ReviewedBy,
		arg.ReviewedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
