package expo

import "encoding/json"

// チケットのステータス。
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrorDeviceNotRegistered は端末がプッシュ通知を受け付けなくなったことを示すエラーコード。
// このエラーを受け取ったトークンは無効化する。
const ErrorDeviceNotRegistered = "DeviceNotRegistered"

// Message はExpoへ送信する1件のプッシュメッセージ。
type Message struct {
	// To は宛先のプッシュトークン。
	To string `json:"to"`
	// Title は通知のタイトル。
	Title string `json:"title,omitempty"`
	// Body は通知の本文。
	Body string `json:"body,omitempty"`
	// Data はアプリに渡す任意のデータ。
	Data map[string]any `json:"data,omitempty"`
	// Sound は通知音。"default" を指定すると既定の音が鳴る。
	Sound string `json:"sound,omitempty"`
	// Priority は配信優先度（default/normal/high）。
	Priority string `json:"priority,omitempty"`
	// ChannelID はAndroidの通知チャネル。
	ChannelID string `json:"channelId,omitempty"`
}

// TicketDetails はエラーチケットの詳細。
type TicketDetails struct {
	// Error はエラーコード（例: DeviceNotRegistered）。
	Error string `json:"error,omitempty"`
}

// Ticket はメッセージ1件に対する送信結果。
// 送信したメッセージと同じ順序で返される。
type Ticket struct {
	// ID は受付ID。成功時のみ設定される。
	ID string `json:"id,omitempty"`
	// Status は "ok" または "error"。
	Status string `json:"status"`
	// Message はエラー時の説明。
	Message string `json:"message,omitempty"`
	// Details はエラー時の詳細。
	Details *TicketDetails `json:"details,omitempty"`
}

// OK はチケットが成功かどうかを返す。
func (t Ticket) OK() bool {
	return t.Status == StatusOK
}

// DeviceNotRegistered は宛先端末が登録解除済みかどうかを返す。
func (t Ticket) DeviceNotRegistered() bool {
	return t.Details != nil && t.Details.Error == ErrorDeviceNotRegistered
}

// ErrorText はエラーの説明を返す。詳細コードがあればそれを優先する。
func (t Ticket) ErrorText() string {
	if t.Details != nil && t.Details.Error != "" {
		if t.Message != "" {
			return t.Details.Error + ": " + t.Message
		}
		return t.Details.Error
	}
	return t.Message
}

// sendResponse はpush/sendエンドポイントのレスポンス。
type sendResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}
