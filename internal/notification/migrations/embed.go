// Package migrations は通知サービスのスキーマ定義を埋め込む。
package migrations

import "embed"

// FS は通知サービスのマイグレーションファイル。
//
//go:embed *.up.sql
var FS embed.FS
