// Package migrations は管理サービスのスキーマ定義を埋め込む。
package migrations

import "embed"

// FS は管理サービスのマイグレーションファイル。
//
//go:embed *.up.sql
var FS embed.FS
