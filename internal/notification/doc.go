// Package notification は通知サービスの内部実装を提供する。
//
// アプリ端末のExpoプッシュトークンを管理し、即時配信とキャンペーン配信を行う。
// 予約されたキャンペーンはcronで定期的に取得して一定件数ずつExpoへ送信し、
// 配信先1件ごとの結果を配信ログに記録する。アプリ内通知（受信箱）も保持する。
package notification
