// Package expo はExpoプッシュ通知APIのクライアントを提供する。
//
// 1リクエストあたり最大100件のメッセージを送信でき、
// 送信前にレートリミッタで流量を制御する。429や5xxは指数バックオフで再試行する。
package expo
