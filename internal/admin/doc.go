// Package admin は管理サービスを提供する。
//
// 利用者、取引、払い出しプラン、本人確認、ロールと管理者アカウント、
// バナー、アプリバージョンの管理APIと監査ログを担当する。
// 書き込み操作はすべて監査ログに記録され、
// 各ルートはJWTクレームの権限コードで保護される。
package admin
