package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestServeListener(t *testing.T) {
	t.Parallel()

	t.Run("キャンセルで正常終了すること", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("リッスンに失敗: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- ServeListener(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "ok")
			}), zerolog.Nop())
		}()

		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			t.Fatalf("リクエストに失敗: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != "ok" {
			t.Errorf("body = %q, want %q", body, "ok")
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("ServeListener() = %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("サーバーが停止しなかった")
		}
	})

	t.Run("使用中のアドレスではエラーになること", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("リッスンに失敗: %v", err)
		}
		t.Cleanup(func() { ln.Close() })

		if err := Serve(context.Background(), ln.Addr().String(), http.NotFoundHandler(), zerolog.Nop()); err == nil {
			t.Fatal("エラーが返されなかった")
		}
	})
}
