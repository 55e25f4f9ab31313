// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 管理者のログインとJWT発行、リクエストルーティングを担当する。
// 管理ダッシュボードとモバイルアプリからアクセス可能な唯一のサービスであり、
// セキュリティの境界線として機能する。認証済みリクエストを管理サービスと
// 通知サービスに転送する。
package gateway
