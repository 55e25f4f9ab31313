// Package sqltime はSQLiteのTEXT列に保存する日時の形式を定義する。
//
// 日時はすべてUTCの固定幅文字列として保存するため、
// 文字列比較の順序と時刻の順序が一致する。
package sqltime

import (
	"database/sql"
	"fmt"
	"time"
)

// Layout はDBに保存する日時の形式。
const Layout = "2006-01-02T15:04:05.000000Z"

// Format は日時をUTCの保存形式に変換する。
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Now は現在時刻を保存形式で返す。
func Now() string {
	return Format(time.Now())
}

// Parse は保存形式の文字列を日時に変換する。
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("日時の形式が不正です: %q: %w", s, err)
	}
	return t, nil
}

// Null はゼロ値をNULLとして扱うsql.NullStringを返す。
func Null(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: Format(t), Valid: true}
}

// RFC3339 は保存形式の文字列をAPIレスポンス用のRFC3339形式に変換する。
// 解析できない場合は入力をそのまま返す。
func RFC3339(s string) string {
	t, err := Parse(s)
	if err != nil {
		return s
	}
	return t.Format(time.RFC3339)
}

// NullRFC3339 はNULL許容の保存値をAPIレスポンス用のポインタに変換する。
func NullRFC3339(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := RFC3339(ns.String)
	return &s
}

// ParseQuery はクエリパラメータの日時を解析する。
// RFC3339と "2006-01-02" 形式を受け付ける。endOfDayがtrueの場合、
// 日付のみの指定はその日の終わりとして扱う。
func ParseQuery(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("日時はRFC3339またはYYYY-MM-DD形式で指定してください: %q", s)
	}
	if endOfDay {
		return d.Add(24*time.Hour - time.Microsecond), nil
	}
	return d, nil
}
