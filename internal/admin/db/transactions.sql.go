package db

import (
	"context"
)

const transactionColumns = `id, user_id, type, status, amount_kobo, reference, description, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Type,
		&t.Status,
		&t.AmountKobo,
		&t.Reference,
		&t.Description,
		&t.CreatedAt,
	)
	return t, err
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (id, user_id, type, status, amount_kobo, reference, description, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateTransactionParams はCreateTransactionの引数。
type CreateTransactionParams struct {
	ID          string
	UserID      string
	Type        string
	Status      string
	AmountKobo  int64
	Reference   string
	Description string
	CreatedAt   string
}

// CreateTransaction は取引を登録する。
func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.UserID,
		arg.Type,
		arg.Status,
		arg.AmountKobo,
		arg.Reference,
		arg.Description,
		arg.CreatedAt,
	)
	return err
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?
`

// GetTransaction はIDで取引を取得する。
func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

// transactionFilter は取引一覧の絞り込み条件。空文字の条件は無視される。
// 期間は created_at の文字列比較で判定する。
const transactionFilter = `
WHERE (?1 = '' OR type = ?1)
  AND (?2 = '' OR status = ?2)
  AND (?3 = '' OR user_id = ?3)
  AND (?4 = '' OR created_at >= ?4)
  AND (?5 = '' OR created_at <= ?5)
  AND (?6 = '' OR instr(lower(reference), lower(?6)) > 0 OR instr(lower(description), lower(?6)) > 0)
`

const listTransactions = `-- name: ListTransactions :many
SELECT ` + transactionColumns + ` FROM transactions` + transactionFilter + `
ORDER BY created_at DESC, id
LIMIT ?7 OFFSET ?8
`

// TransactionFilter は取引の絞り込み条件。
type TransactionFilter struct {
	Type   string
	Status string
	UserID string
	From   string
	To     string
	Query  string
}

func (f TransactionFilter) args() []any {
	return []any{f.Type, f.Status, f.UserID, f.From, f.To, f.Query}
}

// ListTransactionsParams はListTransactionsの引数。
type ListTransactionsParams struct {
	TransactionFilter
	Limit  int64
	Offset int64
}

// ListTransactions は条件に一致する取引を新しい順に取得する。
func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	args := append(arg.args(), arg.Limit, arg.Offset)
	rows, err := q.db.QueryContext(ctx, listTransactions, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactions = `-- name: CountTransactions :one
SELECT COUNT(*) FROM transactions` + transactionFilter

// CountTransactions は条件に一致する取引数を返す。
func (q *Queries) CountTransactions(ctx context.Context, arg TransactionFilter) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions, arg.args()...).Scan(&n)
	return n, err
}

const periodFilter = `
WHERE (?1 = '' OR created_at >= ?1)
  AND (?2 = '' OR created_at <= ?2)
`

const summarizeTransactionsByType = `-- name: SummarizeTransactionsByType :many
SELECT type, COUNT(*), COALESCE(SUM(amount_kobo), 0) FROM transactions` + periodFilter + `
GROUP BY type ORDER BY type
`

const summarizeTransactionsByStatus = `-- name: SummarizeTransactionsByStatus :many
SELECT status, COUNT(*), COALESCE(SUM(amount_kobo), 0) FROM transactions` + periodFilter + `
GROUP BY status ORDER BY status
`

// PeriodParams は期間の指定。空文字は無制限を表す。
type PeriodParams struct {
	From string
	To   string
}

// SummarizeTransactionsByType は期間内の取引を種類ごとに集計する。
func (q *Queries) SummarizeTransactionsByType(ctx context.Context, arg PeriodParams) ([]GroupTotal, error) {
	return q.groupTotals(ctx, summarizeTransactionsByType, arg.From, arg.To)
}

// SummarizeTransactionsByStatus は期間内の取引をステータスごとに集計する。
func (q *Queries) SummarizeTransactionsByStatus(ctx context.Context, arg PeriodParams) ([]GroupTotal, error) {
	return q.groupTotals(ctx, summarizeTransactionsByStatus, arg.From, arg.To)
}

func (q *Queries) groupTotals(ctx context.Context, query string, args ...any) ([]GroupTotal, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GroupTotal
	for rows.Next() {
		var g GroupTotal
		if err := rows.Scan(&g.Key, &g.Count, &g.AmountKobo); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
