package notification

import (
	"context"
	"encoding/json"
	"fmt"

	notificationdb "github.com/planmoni/backoffice/internal/notification/db"
	"github.com/planmoni/backoffice/pkg/expo"
)

// 配信結果のステータス。
const (
	deliveryOK    = "ok"
	deliveryError = "error"
)

// errMissingTicket はExpoが送信件数分のチケットを返さなかった場合のエラー文言。
const errMissingTicket = "チケットが返されませんでした"

// recipient はプッシュ通知の配信先。
type recipient struct {
	// UserID は配信先の利用者ID。未登録のトークンの場合は空。
	UserID string
	// Token はExpoプッシュトークン。
	Token string
}

// pushContent はプッシュ通知の内容。
type pushContent struct {
	Title string
	Body  string
	Data  map[string]any
}

// delivery は配信先1件分の送信結果。
type delivery struct {
	Recipient recipient
	// Status は "ok" または "error"。
	Status string
	// TicketID はExpoの受付ID。
	TicketID string
	// Error は失敗理由。
	Error string
}

// countDeliveries は成功件数と失敗件数を数える。
func countDeliveries(ds []delivery) (sent, failed int) {
	for _, d := range ds {
		if d.Status == deliveryOK {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

// deliver は配信先をバッチサイズごとに分割してExpoへ送信し、配信先ごとの結果を返す。
// バッチの送信に失敗した場合はそのバッチの全配信先を失敗として記録し、次のバッチへ進む。
// DeviceNotRegisteredのチケットを受け取ったトークンは無効化する。
func (s *Server) deliver(ctx context.Context, recipients []recipient, content pushContent) []delivery {
	results := make([]delivery, 0, len(recipients))
	for i, batch := range expo.Chunk(recipients, s.batchSize) {
		messages := make([]expo.Message, 0, len(batch))
		for _, r := range batch {
			messages = append(messages, expo.Message{
				To:    r.Token,
				Title: content.Title,
				Body:  content.Body,
				Data:  content.Data,
				Sound: "default",
			})
		}

		tickets, err := s.sender.Send(ctx, messages)
		if err != nil {
			s.logger.Warn().Err(err).
				Int("batch", i).
				Int("size", len(batch)).
				Msg("プッシュ通知のバッチ送信に失敗")
			for _, r := range batch {
				results = append(results, delivery{Recipient: r, Status: deliveryError, Error: err.Error()})
			}
			continue
		}

		for j, r := range batch {
			if j >= len(tickets) {
				results = append(results, delivery{Recipient: r, Status: deliveryError, Error: errMissingTicket})
				continue
			}
			t := tickets[j]
			if t.OK() {
				results = append(results, delivery{Recipient: r, Status: deliveryOK, TicketID: t.ID})
				continue
			}
			results = append(results, delivery{Recipient: r, Status: deliveryError, TicketID: t.ID, Error: t.ErrorText()})
			if t.DeviceNotRegistered() {
				s.deactivateToken(ctx, r.Token, t.ErrorText())
			}
		}
	}
	return results
}

// deactivateToken は登録解除された端末のトークンを無効化する。失敗はログに記録するのみ。
func (s *Server) deactivateToken(ctx context.Context, token, reason string) {
	n, err := s.queries.DeactivateDeviceTokenByToken(ctx, notificationdb.DeactivateDeviceTokenByTokenParams{
		Token:     token,
		LastError: reason,
		UpdatedAt: s.timestamp(),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("token", token).Msg("プッシュトークンの無効化に失敗")
		return
	}
	if n > 0 {
		s.logger.Info().Str("token", token).Msg("登録解除された端末のプッシュトークンを無効化")
	}
}

// recipientsFromDevices は登録済みトークンを配信先に変換する。
func recipientsFromDevices(devices []notificationdb.DeviceToken) []recipient {
	rs := make([]recipient, 0, len(devices))
	for _, d := range devices {
		rs = append(rs, recipient{UserID: d.UserID, Token: d.Token})
	}
	return rs
}

// resolveUsers は利用者の有効なトークンを配信先として返す。
func (s *Server) resolveUsers(ctx context.Context, userIDs []string) ([]recipient, error) {
	devices, err := s.queries.ListActiveDeviceTokensByUsers(ctx, uniqueStrings(userIDs))
	if err != nil {
		return nil, fmt.Errorf("利用者のプッシュトークン取得に失敗: %w", err)
	}
	return recipientsFromDevices(devices), nil
}

// resolveTokens は指定されたトークンをそのまま配信先として返す。
// 登録済みのトークンには利用者IDを付与する。
func (s *Server) resolveTokens(ctx context.Context, tokens []string) ([]recipient, error) {
	tokens = uniqueStrings(tokens)
	devices, err := s.queries.ListDeviceTokensByTokens(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("プッシュトークンの取得に失敗: %w", err)
	}
	owners := make(map[string]string, len(devices))
	for _, d := range devices {
		owners[d.Token] = d.UserID
	}
	rs := make([]recipient, 0, len(tokens))
	for _, t := range tokens {
		rs = append(rs, recipient{UserID: owners[t], Token: t})
	}
	return rs, nil
}

// resolveAll は有効なすべてのトークンを配信先として返す。
func (s *Server) resolveAll(ctx context.Context) ([]recipient, error) {
	devices, err := s.queries.ListActiveDeviceTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("プッシュトークン一覧の取得に失敗: %w", err)
	}
	return recipientsFromDevices(devices), nil
}

// uniqueStrings は空文字列と重複を取り除く。順序は最初の出現順を維持する。
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// encodeData はアプリに渡すデータをJSONオブジェクトの文字列に変換する。
func encodeData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("データのシリアライズに失敗: %w", err)
	}
	return string(b), nil
}

// decodeData は保存されたJSONオブジェクトを復元する。空または不正な場合はnilを返す。
func decodeData(s string) map[string]any {
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil || len(data) == 0 {
		return nil
	}
	return data
}

// decodeList は保存されたJSON配列を復元する。
func decodeList(s string) []string {
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil
	}
	return values
}
