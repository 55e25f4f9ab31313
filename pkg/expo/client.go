package expo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/planmoni/backoffice/pkg/httpclient"
)

const (
	// DefaultBaseURL はExpoプッシュAPIのベースURL。
	DefaultBaseURL = "https://exp.host"
	// SendPath はプッシュ送信エンドポイントのパス。
	SendPath = "/--/api/v2/push/send"
	// MaxMessagesPerRequest は1リクエストで送信できる最大メッセージ数。
	MaxMessagesPerRequest = 100
)

// ErrTooManyMessages は1リクエストの上限を超えるメッセージが渡されたことを表す。
var ErrTooManyMessages = errors.New("1リクエストで送信できるメッセージは100件までです")

// pushTokenPattern はExpoプッシュトークンの形式。
var pushTokenPattern = regexp.MustCompile(`^Expo(nent)?PushToken\[[^\[\]\s]+\]$`)

// IsPushToken は文字列がExpoプッシュトークンの形式かどうかを返す。
func IsPushToken(s string) bool {
	return pushTokenPattern.MatchString(s)
}

// Chunk はitemsをsize件ごとに分割する。
// sizeが0以下またはMaxMessagesPerRequestを超える場合はMaxMessagesPerRequestを使用する。
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || size > MaxMessagesPerRequest {
		size = MaxMessagesPerRequest
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// Sender はプッシュメッセージの送信を抽象化するインターフェース。
// 通知サービスはこのインターフェースに依存し、テストでは差し替える。
type Sender interface {
	Send(ctx context.Context, messages []Message) ([]Ticket, error)
}

// Options はClientの設定。
type Options struct {
	// BaseURL はAPIのベースURL。空の場合はDefaultBaseURL。
	BaseURL string
	// AccessToken はExpoのアクセストークン。空の場合は送信しない。
	AccessToken string
	// RatePerSec は1秒あたりの最大リクエスト数。0以下の場合は制限しない。
	RatePerSec int
	// MaxRetries は一時的な失敗に対する最大リトライ回数。
	MaxRetries int
	// RetryInterval はリトライ間隔の初期値。0の場合は500ms。
	RetryInterval time.Duration
	// Timeout はリクエストのタイムアウト。0の場合は30秒。
	Timeout time.Duration
}

// Client はExpoプッシュAPIのクライアント。
type Client struct {
	// http はリトライ付きのJSONクライアント。
	http *httpclient.Client
	// limiter はリクエストの流量を制御する。nilの場合は制限しない。
	limiter *rate.Limiter
}

var _ Sender = (*Client)(nil)

// NewClient は新しいExpoクライアントを生成する。
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	interval := opts.RetryInterval
	if interval == 0 {
		interval = 500 * time.Millisecond
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		http: httpclient.New(baseURL,
			httpclient.WithTimeout(timeout),
			httpclient.WithHeader("Accept", "application/json"),
			httpclient.WithBearerToken(opts.AccessToken),
			httpclient.WithRetry(opts.MaxRetries, interval),
		),
	}
	if opts.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return c
}

// Send はメッセージを1リクエストで送信し、メッセージと同じ順序のチケットを返す。
// 101件以上の場合はErrTooManyMessagesを返す。呼び出し側でChunkを使用して分割すること。
func (c *Client) Send(ctx context.Context, messages []Message) ([]Ticket, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(messages) > MaxMessagesPerRequest {
		return nil, fmt.Errorf("%w: %d件", ErrTooManyMessages, len(messages))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("送信待機中にキャンセルされました: %w", err)
		}
	}

	var resp sendResponse
	if err := c.http.PostJSON(ctx, SendPath, messages, &resp); err != nil {
		return nil, fmt.Errorf("Expoへの送信に失敗: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("Expoがリクエストを拒否しました: %s: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}

	tickets, err := decodeTickets(resp.Data)
	if err != nil {
		return nil, err
	}
	if len(tickets) != len(messages) {
		return nil, fmt.Errorf("チケット数がメッセージ数と一致しません: tickets=%d, messages=%d", len(tickets), len(messages))
	}
	return tickets, nil
}

// decodeTickets はレスポンスのdataをチケット一覧に変換する。
// 1件だけ送信した場合、dataは配列ではなくオブジェクトで返ることがある。
func decodeTickets(raw json.RawMessage) ([]Ticket, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("レスポンスにdataが含まれていません")
	}
	if raw[0] == '{' {
		var t Ticket
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("チケットのデシリアライズに失敗: %w", err)
		}
		return []Ticket{t}, nil
	}
	var tickets []Ticket
	if err := json.Unmarshal(raw, &tickets); err != nil {
		return nil, fmt.Errorf("チケットのデシリアライズに失敗: %w", err)
	}
	return tickets, nil
}
