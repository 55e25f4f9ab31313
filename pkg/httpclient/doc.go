// Package httpclient はサービス間および外部APIとのHTTP通信を行うクライアントを提供する。
//
// gatewayから管理サービスへの認証問い合わせ、管理サービスから通知サービスへの
// 通知依頼、Expoプッシュ通知APIの呼び出しなど、JSONベースの通信パターンを統一する。
// 一時的な失敗（5xx、429、通信エラー）は指数バックオフでリトライする。
package httpclient
