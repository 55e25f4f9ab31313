package event

import (
	"encoding/json"
	"time"
)

// EntityType は監査対象となるエンティティの種類を表す。
type EntityType string

const (
	// EntityTypeUser はアプリ利用者を表す。
	EntityTypeUser EntityType = "user"
	// EntityTypePayoutPlan は払い出しプランを表す。
	EntityTypePayoutPlan EntityType = "payout_plan"
	// EntityTypeKYC は本人確認レコードを表す。
	EntityTypeKYC EntityType = "kyc"
	// EntityTypeRole は管理ロールを表す。
	EntityTypeRole EntityType = "role"
	// EntityTypeAdmin は管理者アカウントを表す。
	EntityTypeAdmin EntityType = "admin"
	// EntityTypeBanner はアプリ内バナーを表す。
	EntityTypeBanner EntityType = "banner"
	// EntityTypeAppVersion はアプリのリリースを表す。
	EntityTypeAppVersion EntityType = "app_version"
)

// Action は監査ログに記録される操作の種類を表す。
type Action string

const (
	// ActionUserStatusChanged は利用者のステータスが変更されたことを表す。
	ActionUserStatusChanged Action = "user.status_changed"
	// ActionPayoutPlanStatusChanged は払い出しプランのステータスが変更されたことを表す。
	ActionPayoutPlanStatusChanged Action = "payout_plan.status_changed"
	// ActionKYCApproved は本人確認が承認されたことを表す。
	ActionKYCApproved Action = "kyc.approved"
	// ActionKYCRejected は本人確認が却下されたことを表す。
	ActionKYCRejected Action = "kyc.rejected"

	// ActionRoleCreated はロールが作成されたことを表す。
	ActionRoleCreated Action = "role.created"
	// ActionRoleUpdated はロールの権限が更新されたことを表す。
	ActionRoleUpdated Action = "role.updated"
	// ActionRoleDeleted はロールが削除されたことを表す。
	ActionRoleDeleted Action = "role.deleted"

	// ActionAdminCreated は管理者アカウントが作成されたことを表す。
	ActionAdminCreated Action = "admin.created"
	// ActionAdminRoleChanged は管理者のロールが変更されたことを表す。
	ActionAdminRoleChanged Action = "admin.role_changed"
	// ActionAdminActivated は管理者アカウントが有効化されたことを表す。
	ActionAdminActivated Action = "admin.activated"
	// ActionAdminDeactivated は管理者アカウントが無効化されたことを表す。
	ActionAdminDeactivated Action = "admin.deactivated"

	// ActionBannerCreated はバナーが作成されたことを表す。
	ActionBannerCreated Action = "banner.created"
	// ActionBannerUpdated はバナーが更新されたことを表す。
	ActionBannerUpdated Action = "banner.updated"
	// ActionBannerDeleted はバナーが削除されたことを表す。
	ActionBannerDeleted Action = "banner.deleted"

	// ActionAppVersionCreated はリリースが登録されたことを表す。
	ActionAppVersionCreated Action = "app_version.created"
	// ActionAppVersionUpdated はリリースが更新されたことを表す。
	ActionAppVersionUpdated Action = "app_version.updated"
	// ActionAppVersionDeleted はリリースが削除されたことを表す。
	ActionAppVersionDeleted Action = "app_version.deleted"
)

// Event は管理操作1件分の不変な監査レコードを表す。
// 書き込み系の操作はすべてこの構造体として監査ログに追記される。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// ActorID は操作を行った管理者のID。
	ActorID string `json:"actor_id"`
	// Action は操作の種類。
	Action Action `json:"action"`
	// EntityType は対象エンティティの種類。
	EntityType EntityType `json:"entity_type"`
	// EntityID は対象エンティティの識別子。
	EntityID string `json:"entity_id"`
	// Data は操作固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt は操作が行われた日時。
	CreatedAt time.Time `json:"created_at"`
}

// StatusChangedData はステータス変更系イベントのデータ。
type StatusChangedData struct {
	// From は変更前のステータス。
	From string `json:"from"`
	// To は変更後のステータス。
	To string `json:"to"`
	// Reason は変更理由。
	Reason string `json:"reason,omitempty"`
}

// KYCReviewedData はKYC審査イベントのデータ。
type KYCReviewedData struct {
	// UserID は審査対象の利用者ID。
	UserID string `json:"user_id"`
	// Status は審査結果。
	Status string `json:"status"`
	// Reason は却下理由。承認時は空。
	Reason string `json:"reason,omitempty"`
}

// RoleData はロール関連イベントのデータ。
type RoleData struct {
	// Name はロール名。
	Name string `json:"name"`
	// Permissions はロールに付与された権限コード。
	Permissions []string `json:"permissions,omitempty"`
}

// AdminData は管理者アカウント関連イベントのデータ。
type AdminData struct {
	// Email は管理者のメールアドレス。
	Email string `json:"email"`
	// RoleID は割り当てられたロールのID。
	RoleID string `json:"role_id,omitempty"`
}

// BannerData はバナー関連イベントのデータ。
type BannerData struct {
	// Title はバナーのタイトル。
	Title string `json:"title"`
	// Active はバナーが有効かどうか。
	Active bool `json:"active"`
}

// AppVersionData はリリース関連イベントのデータ。
type AppVersionData struct {
	// Platform は対象プラットフォーム（ios/android）。
	Platform string `json:"platform"`
	// Version はリリースのバージョン。
	Version string `json:"version"`
	// ForceUpdate は強制更新フラグ。
	ForceUpdate bool `json:"force_update"`
}
