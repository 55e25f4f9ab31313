package db

import "database/sql"

// DeviceToken はアプリ端末のプッシュトークン。
type DeviceToken struct {
	ID        string
	UserID    string
	Token     string
	Platform  string
	Active    bool
	LastError string
	CreatedAt string
	UpdatedAt string
}

// Campaign は一斉配信・予約配信のキャンペーン。
// Data、TargetUserIDs、TargetTokensはJSON文字列のまま保持する。
type Campaign struct {
	ID            string
	Title         string
	Body          string
	Data          string
	Audience      string
	TargetUserIDs string
	TargetTokens  string
	Status        string
	ScheduledAt   sql.NullString
	SentAt        sql.NullString
	SentCount     int64
	FailedCount   int64
	CreatedBy     string
	CreatedAt     string
	UpdatedAt     string
}

// CampaignLog は配信先1件ごとの送信結果。
type CampaignLog struct {
	ID         string
	CampaignID string
	UserID     string
	Token      string
	Status     string
	TicketID   string
	Error      string
	CreatedAt  string
}

// Notification はアプリ内通知（受信箱）の1件。
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Data      string
	IsRead    bool
	CreatedAt string
}
