package db

import "database/sql"

// User はアプリ利用者。
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    string
	KYCStatus string
	CreatedAt string
	UpdatedAt string
}

// Transaction は利用者の取引。
type Transaction struct {
	ID          string
	UserID      string
	Type        string
	Status      string
	AmountKobo  int64
	Reference   string
	Description string
	CreatedAt   string
}

// PayoutPlan は利用者の払い出しプラン。
type PayoutPlan struct {
	ID               string
	UserID           string
	Name             string
	Frequency        string
	Status           string
	TotalAmountKobo  int64
	PayoutAmountKobo int64
	NextPayoutAt     sql.NullString
	CreatedAt        string
	UpdatedAt        string
}

// KYCRecord は本人確認の提出記録。
type KYCRecord struct {
	ID              string
	UserID          string
	DocumentType    string
	DocumentNumber  string
	DocumentURL     string
	Status          string
	RejectionReason string
	ReviewedBy      sql.NullString
	ReviewedAt      sql.NullString
	CreatedAt       string
}

// Permission は権限カタログの1項目。
type Permission struct {
	Code        string
	Description string
}

// Role は管理者のロール。
type Role struct {
	ID          string
	Name        string
	Description string
	BuiltIn     bool
	CreatedAt   string
}

// Admin は管理者アカウント。
type Admin struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	RoleID       string
	RoleName     string
	Active       bool
	LastLoginAt  sql.NullString
	CreatedAt    string
	UpdatedAt    string
}

// Banner はアプリ内バナー。
type Banner struct {
	ID        string
	Title     string
	ImageURL  string
	LinkURL   string
	Priority  int64
	Active    bool
	StartsAt  sql.NullString
	EndsAt    sql.NullString
	CreatedAt string
	UpdatedAt string
}

// AppVersion はアプリのリリース。
type AppVersion struct {
	ID                  string
	Platform            string
	Version             string
	MinSupportedVersion string
	ForceUpdate         bool
	ReleaseNotes        string
	CreatedAt           string
}

// AuditLog は監査ログの1件。
type AuditLog struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Data       string
	CreatedAt  string
}

// GroupTotal はグループごとの件数と金額。
type GroupTotal struct {
	Key        string
	Count      int64
	AmountKobo int64
}

// StatusCount はステータスごとの件数。
type StatusCount struct {
	Status string
	Count  int64
}
