package admin

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/middleware"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

const testSecret = "test-secret"

// testNow はテストで固定する現在時刻。
var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

// notifyCall は通知サービスが受け取ったリクエスト。
type notifyCall struct {
	Authorization string
	Body          map[string]any
}

// fakeNotification は通知サービスのモック。受け取ったリクエストを記録する。
type fakeNotification struct {
	mu     sync.Mutex
	calls  []notifyCall
	status int
}

func (f *fakeNotification) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)

	f.mu.Lock()
	f.calls = append(f.calls, notifyCall{Authorization: r.Header.Get("Authorization"), Body: decoded})
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status < 300 {
		_, _ = w.Write([]byte(`{"id":"notif-1"}`))
		return
	}
	_, _ = w.Write([]byte(`{"error":"unavailable"}`))
}

func (f *fakeNotification) Calls() []notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifyCall(nil), f.calls...)
}

// testEnv はテスト用の管理サーバーと依存のモック。
type testEnv struct {
	s      *Server
	router http.Handler
	notify *fakeNotification
}

// setupTestServer はインメモリSQLiteにマイグレーションを適用した管理サーバーを構築する。
// 通知サービスのモックも生成し、テスト終了時にクリーンアップする。
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerWithNotifyStatus(t, http.StatusCreated)
}

func setupTestServerWithNotifyStatus(t *testing.T, status int) *testEnv {
	t.Helper()

	sqlDB, err := OpenDB(t.Context(), ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	notify := &fakeNotification{status: status}
	ns := httptest.NewServer(notify)
	t.Cleanup(ns.Close)

	s := New(sqlDB, Options{
		Port:            "0",
		JWTSecret:       testSecret,
		NotificationURL: ns.URL,
		Logger:          zerolog.Nop(),
	})
	s.now = func() time.Time { return testNow }

	return &testEnv{s: s, router: s.Handler(), notify: notify}
}

// superToken はsuper_adminロールのトークンを発行する。
func superToken(t *testing.T) string {
	t.Helper()
	return issueToken(t, middleware.Identity{UserID: "admin-root", Email: "root@planmoni.test", Role: middleware.RoleSuperAdmin})
}

// tokenWith は指定した権限だけを持つトークンを発行する。
func tokenWith(t *testing.T, userID string, perms ...string) string {
	t.Helper()
	return issueToken(t, middleware.Identity{UserID: userID, Email: userID + "@planmoni.test", Role: "operator", Permissions: perms})
}

func issueToken(t *testing.T, id middleware.Identity) string {
	t.Helper()
	token, err := middleware.GenerateJWT(testSecret, id)
	if err != nil {
		t.Fatalf("トークンの発行に失敗: %v", err)
	}
	return token
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// parseJSONArray はレスポンスボディをスライスにデコードするヘルパー関数。
func parseJSONArray(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var result []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON配列のデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// parsePageBody は一覧レスポンスの項目と全件数を返すヘルパー関数。
func parsePageBody(t *testing.T, w *httptest.ResponseRecorder) ([]map[string]any, float64) {
	t.Helper()
	var result struct {
		Items []map[string]any `json:"items"`
		Total float64          `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result.Items, result.Total
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

// createTestUser はテスト用に利用者をDBに直接挿入するヘルパー関数。
func createTestUser(t *testing.T, s *Server, id, firstName, email, status, kycStatus string, createdAt time.Time) {
	t.Helper()
	err := s.queries.CreateUser(t.Context(), admindb.CreateUserParams{
		ID:        id,
		FirstName: firstName,
		LastName:  "Okafor",
		Email:     email,
		Phone:     "+23480" + id,
		Status:    status,
		KYCStatus: kycStatus,
		CreatedAt: sqltime.Format(createdAt),
	})
	if err != nil {
		t.Fatalf("テスト用利用者の作成に失敗: %v", err)
	}
}

// createTestTransaction はテスト用に取引をDBに直接挿入するヘルパー関数。
func createTestTransaction(t *testing.T, s *Server, id, userID, typ, status string, kobo int64, createdAt time.Time) {
	t.Helper()
	err := s.queries.CreateTransaction(t.Context(), admindb.CreateTransactionParams{
		ID:          id,
		UserID:      userID,
		Type:        typ,
		Status:      status,
		AmountKobo:  kobo,
		Reference:   "REF-" + id,
		Description: typ + " " + id,
		CreatedAt:   sqltime.Format(createdAt),
	})
	if err != nil {
		t.Fatalf("テスト用取引の作成に失敗: %v", err)
	}
}

// createTestPlan はテスト用に払い出しプランをDBに直接挿入するヘルパー関数。
func createTestPlan(t *testing.T, s *Server, id, userID, status string) {
	t.Helper()
	err := s.queries.CreatePayoutPlan(t.Context(), admindb.CreatePayoutPlanParams{
		ID:               id,
		UserID:           userID,
		Name:             "Salary " + id,
		Frequency:        "monthly",
		Status:           status,
		TotalAmountKobo:  120000000,
		PayoutAmountKobo: 10000000,
		NextPayoutAt:     sqltime.Null(testNow.Add(24 * time.Hour)),
		CreatedAt:        sqltime.Format(testNow.Add(-time.Hour)),
	})
	if err != nil {
		t.Fatalf("テスト用プランの作成に失敗: %v", err)
	}
}

// createTestKYC はテスト用に審査待ちの本人確認記録をDBに直接挿入するヘルパー関数。
func createTestKYC(t *testing.T, s *Server, id, userID string) {
	t.Helper()
	err := s.queries.CreateKYCRecord(t.Context(), admindb.CreateKYCRecordParams{
		ID:             id,
		UserID:         userID,
		DocumentType:   "bvn",
		DocumentNumber: "22211133344",
		DocumentURL:    "https://files.planmoni.test/" + id + ".jpg",
		CreatedAt:      sqltime.Format(testNow.Add(-time.Hour)),
	})
	if err != nil {
		t.Fatalf("テスト用本人確認記録の作成に失敗: %v", err)
	}
}

// auditActions は監査ログに記録された操作を新しい順に返す。
func auditActions(t *testing.T, s *Server, entityID string) []string {
	t.Helper()
	logs, err := s.queries.ListAuditLogs(t.Context(), admindb.ListAuditLogsParams{
		AuditLogFilter: admindb.AuditLogFilter{EntityID: entityID},
		Limit:          100,
	})
	if err != nil {
		t.Fatalf("監査ログの取得に失敗: %v", err)
	}
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}

// TestHealthCheck はヘルスチェックエンドポイントの正常動作を検証する。
func TestHealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	w := doRequest(env.router, http.MethodGet, "/health", "", nil)
	assertStatus(t, w, http.StatusOK)

	result := parseJSON(t, w)
	if result["service"] != "admin" {
		t.Errorf("service: got %v, want admin", result["service"])
	}
}

// TestAuthorization は認証と権限チェックを検証する。
func TestAuthorization(t *testing.T) {
	t.Parallel()

	t.Run("トークンがない場合は401", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/api/v1/users", "", nil)
		assertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("権限がない場合は403", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/api/v1/users", tokenWith(t, "ops-1", middleware.PermKYCRead), nil)
		assertStatus(t, w, http.StatusForbidden)
	})

	t.Run("必要な権限があれば許可される", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/api/v1/users", tokenWith(t, "ops-1", middleware.PermUsersRead), nil)
		assertStatus(t, w, http.StatusOK)
	})

	t.Run("読み取り権限だけでは更新できない", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		createTestUser(t, env.s, "u1", "Ada", "ada@example.com", "active", "unverified", testNow)

		w := doRequest(env.router, http.MethodPut, "/api/v1/users/u1/status",
			tokenWith(t, "ops-1", middleware.PermUsersRead), map[string]string{"status": "suspended"})
		assertStatus(t, w, http.StatusForbidden)
	})

	t.Run("公開APIはトークンなしで呼び出せる", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/public/banners", "", nil)
		assertStatus(t, w, http.StatusOK)
	})
}

// TestParsePage は一覧取得のページング指定を検証する。
func TestParsePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit float64
	}{
		{name: "省略時は既定値", query: "", wantCode: http.StatusOK, wantLimit: defaultPageSize},
		{name: "上限を超える指定は上限に丸める", query: "?limit=1000", wantCode: http.StatusOK, wantLimit: maxPageSize},
		{name: "0以下のlimitは400", query: "?limit=0", wantCode: http.StatusBadRequest},
		{name: "数値でないlimitは400", query: "?limit=abc", wantCode: http.StatusBadRequest},
		{name: "負のoffsetは400", query: "?offset=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestServer(t)

			w := doRequest(env.router, http.MethodGet, "/api/v1/users"+tt.query, superToken(t), nil)
			assertStatus(t, w, tt.wantCode)
			if tt.wantCode != http.StatusOK {
				return
			}
			if got := parseJSON(t, w)["limit"]; got != tt.wantLimit {
				t.Errorf("limit: got %v, want %v", got, tt.wantLimit)
			}
		})
	}
}

// TestSeededPermissionCatalog は初期データの権限カタログがアプリケーションの権限定義と一致することを検証する。
func TestSeededPermissionCatalog(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	perms, err := env.s.queries.ListPermissions(t.Context())
	if err != nil {
		t.Fatalf("権限一覧の取得に失敗: %v", err)
	}
	got := make(map[string]bool, len(perms))
	for _, p := range perms {
		got[p.Code] = true
	}
	want := make(map[string]bool, len(middleware.AllPermissions))
	for _, code := range middleware.AllPermissions {
		want[code] = true
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("権限カタログが一致しません (-want +got):\n%s", diff)
	}

	granted, err := env.s.queries.ListRolePermissions(t.Context(), SuperAdminRoleID)
	if err != nil {
		t.Fatalf("super_adminの権限取得に失敗: %v", err)
	}
	if len(granted) != len(middleware.AllPermissions) {
		t.Errorf("super_adminの権限数: got %d, want %d", len(granted), len(middleware.AllPermissions))
	}
}

// cmpEmptyAsNil は空スライスとnilを同一視する比較オプション。
var cmpEmptyAsNil = cmpopts.EquateEmpty()

// cmpSorted は順序を無視して文字列スライスを比較する比較オプション。
var cmpSorted = cmpopts.SortSlices(func(a, b string) bool { return a < b })
