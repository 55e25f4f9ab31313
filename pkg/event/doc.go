// Package event は管理操作の監査イベントを定義する。
//
// 管理サービスでの書き込み操作（ステータス変更、KYC審査、ロールや管理者の変更など）は
// Event として生成され、監査ログテーブルに追記される。
// Event は作成後に変更されない。
package event
