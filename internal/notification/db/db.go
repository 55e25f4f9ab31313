// Package db は通知サービスのクエリ層を提供する。
package db

import (
	"context"
	"database/sql"
	"encoding/json"
)

// DBTX は*sql.DBと*sql.Txの共通インターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New は新しいQueriesを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries は通知サービスのクエリを実行する。
type Queries struct {
	db DBTX
}

// WithTx はトランザクション内でクエリを実行するQueriesを返す。
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// boolToInt はbool値をSQLiteのINTEGERに変換する。
func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// jsonList は文字列の一覧をjson_eachで展開できるJSON配列に変換する。
func jsonList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}
