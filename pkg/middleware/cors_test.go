package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
)

// dashboardOrigins はテスト用の管理ダッシュボードのオリジン。
var dashboardOrigins = []string{"http://localhost:3000", "https://admin.planmoni.com"}

// corsHeaders はCORSミドルウェアが設定するヘッダーを取り出す。
func corsHeaders(h http.Header) map[string]string {
	out := map[string]string{}
	for _, key := range []string{
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Methods",
		"Access-Control-Allow-Headers",
		"Access-Control-Allow-Credentials",
		"Vary",
	} {
		if v := h.Get(key); v != "" {
			out[key] = v
		}
	}
	return out
}

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	allowed := func(origin string) map[string]string {
		return map[string]string{
			"Access-Control-Allow-Origin":      origin,
			"Access-Control-Allow-Methods":     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
			"Access-Control-Allow-Headers":     "Authorization, Content-Type",
			"Access-Control-Allow-Credentials": "true",
			"Vary":                             "Origin",
		}
	}

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantHeaders map[string]string
		wantHandler bool
	}{
		{
			name:        "許可されたオリジンにCORSヘッダーが設定されること",
			origins:     dashboardOrigins,
			method:      http.MethodGet,
			origin:      "http://localhost:3000",
			wantStatus:  http.StatusOK,
			wantHeaders: allowed("http://localhost:3000"),
			wantHandler: true,
		},
		{
			name:        "本番ダッシュボードのオリジンも許可されること",
			origins:     dashboardOrigins,
			method:      http.MethodPost,
			origin:      "https://admin.planmoni.com",
			wantStatus:  http.StatusOK,
			wantHeaders: allowed("https://admin.planmoni.com"),
			wantHandler: true,
		},
		{
			name:        "許可されていないオリジンにはヘッダーを付けずに処理を続けること",
			origins:     dashboardOrigins,
			method:      http.MethodGet,
			origin:      "https://evil.example.com",
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{},
			wantHandler: true,
		},
		{
			name:        "Originヘッダーが無い場合はヘッダーを付けないこと",
			origins:     dashboardOrigins,
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{},
			wantHandler: true,
		},
		{
			name:        "空の許可リストではヘッダーを付けないこと",
			origins:     nil,
			method:      http.MethodGet,
			origin:      "http://localhost:3000",
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{},
			wantHandler: true,
		},
		{
			name:        "末尾にスラッシュ付きで設定したオリジンも許可されること",
			origins:     []string{" https://admin.planmoni.com/ "},
			method:      http.MethodGet,
			origin:      "https://admin.planmoni.com",
			wantStatus:  http.StatusOK,
			wantHeaders: allowed("https://admin.planmoni.com"),
			wantHandler: true,
		},
		{
			name:        "*を指定した場合はリクエストのオリジンをそのまま許可すること",
			origins:     []string{AnyOrigin},
			method:      http.MethodGet,
			origin:      "http://192.168.0.10:19006",
			wantStatus:  http.StatusOK,
			wantHeaders: allowed("http://192.168.0.10:19006"),
			wantHandler: true,
		},
		{
			name:        "*を指定してもOriginヘッダーが無い場合はヘッダーを付けないこと",
			origins:     []string{AnyOrigin},
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{},
			wantHandler: true,
		},
		{
			name:        "プリフライトは204で中断されハンドラが呼ばれないこと",
			origins:     dashboardOrigins,
			method:      http.MethodOptions,
			origin:      "http://localhost:3000",
			wantStatus:  http.StatusNoContent,
			wantHeaders: allowed("http://localhost:3000"),
		},
		{
			name:        "許可されていないオリジンのプリフライトもヘッダー無しの204になること",
			origins:     dashboardOrigins,
			method:      http.MethodOptions,
			origin:      "https://evil.example.com",
			wantStatus:  http.StatusNoContent,
			wantHeaders: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			router := gin.New()
			router.Use(CORS(tt.origins))
			router.Handle(tt.method, "/api/v1/users", func(c *gin.Context) {
				called = true
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			req := httptest.NewRequest(tt.method, "/api/v1/users", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.wantHeaders, corsHeaders(w.Header())); diff != "" {
				t.Errorf("CORSヘッダーが一致しない (-want +got):\n%s", diff)
			}
			if called != tt.wantHandler {
				t.Errorf("ハンドラ呼び出し = %v, want %v", called, tt.wantHandler)
			}
		})
	}
}
