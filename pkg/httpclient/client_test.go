package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// recordingServer はリクエストを記録して固定レスポンスを返すテストサーバーを生成する。
func recordingServer(t *testing.T, received *testRequest, status int, resp any) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.Path
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("デフォルト設定でクライアントが生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8081")
		if client.BaseURL() != "http://localhost:8081" {
			t.Errorf("baseURL = %q, want %q", client.BaseURL(), "http://localhost:8081")
		}
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
		if client.maxRetries != 0 {
			t.Errorf("maxRetries = %d, want 0", client.maxRetries)
		}
	})

	t.Run("オプションが適用されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8081",
			WithTimeout(5*time.Second),
			WithRetry(3, 10*time.Millisecond),
			WithBearerToken("expo-token"),
			WithHeader("Accept", "application/json"),
		)
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
		if client.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want 3", client.maxRetries)
		}
		if got := client.headers.Get("Authorization"); got != "Bearer expo-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer expo-token")
		}
		if got := client.headers.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want %q", got, "application/json")
		}
	})

	t.Run("空のBearerトークンは無視されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8081", WithBearerToken(""))
		if got := client.headers.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want empty", got)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にPOSTリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, http.StatusOK, testPayload{Name: "response", Value: 200})

		client := New(ts.URL)
		var result testPayload
		if err := client.PostJSON(context.Background(), "/api/v1/internal/send", testPayload{Name: "request", Value: 100}, &result); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/api/v1/internal/send" {
			t.Errorf("Path = %q, want %q", received.Path, "/api/v1/internal/send")
		}
		var sentBody testPayload
		if err := json.Unmarshal(received.Body, &sentBody); err != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", err)
		}
		if sentBody.Name != "request" || sentBody.Value != 100 {
			t.Errorf("sent body = %+v, want {request 100}", sentBody)
		}
		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
		if result.Name != "response" || result.Value != 200 {
			t.Errorf("result = %+v, want {response 200}", result)
		}
	})

	t.Run("サーバーが400エラーを返した場合にStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, http.StatusBadRequest, map[string]string{"error": "bad request"})

		err := New(ts.URL).PostJSON(context.Background(), "/api/v1/internal/send", testPayload{}, nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
		if got := StatusCode(err); got != http.StatusBadRequest {
			t.Errorf("StatusCode(err) = %d, want %d", got, http.StatusBadRequest)
		}
	})

	t.Run("resultがnilの場合でもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, http.StatusCreated, map[string]string{"status": "created"})

		if err := New(ts.URL).PostJSON(context.Background(), "/api/v1/internal/send", testPayload{Name: "no-result"}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, http.StatusOK, testPayload{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := New(ts.URL, WithRetry(3, time.Millisecond)).PostJSON(ctx, "/api/v1/internal/send", testPayload{}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("シリアライズ不可能なボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		err := New("http://127.0.0.1:1").PostJSON(context.Background(), "/api/v1/internal/send", make(chan int), nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にGETリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, http.StatusOK, testPayload{Name: "get-response", Value: 42})

		var result testPayload
		if err := New(ts.URL).GetJSON(context.Background(), "/api/v1/users/123", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if received.Method != http.MethodGet {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodGet)
		}
		if len(received.Body) != 0 {
			t.Errorf("GETリクエストにボディが含まれている: %q", string(received.Body))
		}
		if result.Name != "get-response" || result.Value != 42 {
			t.Errorf("result = %+v, want {get-response 42}", result)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		var result testPayload
		if err := New(ts.URL).GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var result testPayload
		if err := New("http://127.0.0.1:1").GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestRetry は一時的な失敗のリトライを検証する。
func TestRetry(t *testing.T) {
	t.Parallel()

	t.Run("503の後に成功した場合は結果を返すこと", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "ok", Value: 1})
		}))
		defer ts.Close()

		var result testPayload
		err := New(ts.URL, WithRetry(3, time.Millisecond)).PostJSON(context.Background(), "/push", testPayload{Name: "x"}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("呼び出し回数 = %d, want 3", calls.Load())
		}
		if result.Name != "ok" {
			t.Errorf("result.Name = %q, want %q", result.Name, "ok")
		}
	})

	t.Run("リトライ回数を超えた場合は最後のエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ts.Close()

		err := New(ts.URL, WithRetry(2, time.Millisecond)).PostJSON(context.Background(), "/push", testPayload{}, nil)
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("err = %v, want StatusError 429", err)
		}
		if calls.Load() != 3 {
			t.Errorf("呼び出し回数 = %d, want 3", calls.Load())
		}
	})

	t.Run("4xxはリトライしないこと", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer ts.Close()

		err := New(ts.URL, WithRetry(3, time.Millisecond)).GetJSON(context.Background(), "/me", nil)
		if StatusCode(err) != http.StatusUnauthorized {
			t.Fatalf("StatusCode(err) = %d, want %d", StatusCode(err), http.StatusUnauthorized)
		}
		if calls.Load() != 1 {
			t.Errorf("呼び出し回数 = %d, want 1", calls.Load())
		}
	})
}

// TestContextPropagation はコンテキスト経由のヘッダー伝播を検証する。
func TestContextPropagation(t *testing.T) {
	t.Parallel()

	t.Run("ユーザーIDとトークンがヘッダーに伝播されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, http.StatusOK, testPayload{})

		ctx := WithToken(WithUserID(context.Background(), "admin-1"), "jwt-token")
		if err := New(ts.URL).GetJSON(ctx, "/api/test", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("X-User-ID"); got != "admin-1" {
			t.Errorf("X-User-ID = %q, want %q", got, "admin-1")
		}
		if got := received.Headers.Get("Authorization"); got != "Bearer jwt-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer jwt-token")
		}
	})

	t.Run("空のユーザーIDではヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := recordingServer(t, &received, http.StatusOK, testPayload{})

		if err := New(ts.URL).GetJSON(WithUserID(context.Background(), ""), "/api/test", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if _, ok := received.Headers["X-User-Id"]; ok {
			t.Error("空のユーザーIDでX-User-IDヘッダーが設定された")
		}
	})
}
