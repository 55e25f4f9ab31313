package admin

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"github.com/planmoni/backoffice/pkg/middleware"
)

// createTestAdmin はsuper_adminロールの管理者を作成し、IDを返すヘルパー関数。
func createTestAdmin(t *testing.T, env *testEnv, email, password string) string {
	t.Helper()
	a, err := CreateAdmin(t.Context(), env.s.queries, CreateAdminInput{
		Email:    email,
		Name:     "Test Admin",
		Password: password,
		RoleID:   SuperAdminRoleID,
	}, env.s.timestamp())
	if err != nil {
		t.Fatalf("管理者の作成に失敗: %v", err)
	}
	return a.ID
}

// TestCreateAdmin は管理者作成処理のテスト。
func TestCreateAdmin(t *testing.T) {
	t.Parallel()

	t.Run("メールアドレスを正規化しパスワードをハッシュ化して保存する", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		a, err := CreateAdmin(t.Context(), env.s.queries, CreateAdminInput{
			Email:    "  Ops@Planmoni.TEST ",
			Name:     " Ops ",
			Password: "password123",
			RoleID:   SuperAdminRoleID,
		}, env.s.timestamp())
		if err != nil {
			t.Fatalf("CreateAdmin() error = %v", err)
		}
		if a.Email != "ops@planmoni.test" {
			t.Errorf("Email: got %s, want ops@planmoni.test", a.Email)
		}
		if a.Name != "Ops" {
			t.Errorf("Name: got %q, want Ops", a.Name)
		}
		if !a.Active {
			t.Error("作成直後の管理者が無効になっています")
		}
		if a.PasswordHash == "password123" {
			t.Fatal("パスワードが平文で保存されています")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("password123")); err != nil {
			t.Errorf("ハッシュがパスワードと一致しません: %v", err)
		}
	})

	t.Run("不正な入力はエラーになる", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		tests := []struct {
			name  string
			input CreateAdminInput
			want  error
		}{
			{name: "短いパスワード", input: CreateAdminInput{Email: "a@planmoni.test", Password: "short"}, want: errWeakPassword},
			{name: "不正なメールアドレス", input: CreateAdminInput{Email: "not-an-email", Password: "password123"}, want: errInvalidEmail},
			{name: "表示名付きのメールアドレス", input: CreateAdminInput{Email: "Ops <ops@planmoni.test>", Password: "password123"}, want: errInvalidEmail},
		}
		for _, tt := range tests {
			tt.input.RoleID = SuperAdminRoleID
			if _, err := CreateAdmin(t.Context(), env.s.queries, tt.input, env.s.timestamp()); !errors.Is(err, tt.want) {
				t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
			}
		}
	})
}

// TestHandleCreateAdmin は管理者作成ハンドラのテスト。
func TestHandleCreateAdmin(t *testing.T) {
	t.Parallel()

	t.Run("作成した管理者を返しパスワードハッシュは含めない", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodPost, "/api/v1/admins", superToken(t), map[string]string{
			"email":    "ops@planmoni.test",
			"name":     "Ops",
			"password": "password123",
			"role_id":  SuperAdminRoleID,
		})
		assertStatus(t, w, http.StatusCreated)

		result := parseJSON(t, w)
		if result["role"] != "super_admin" {
			t.Errorf("role: got %v, want super_admin", result["role"])
		}
		if _, ok := result["password_hash"]; ok {
			t.Error("レスポンスにパスワードハッシュが含まれています")
		}
		if diff := cmp.Diff([]string{"admin.created"}, auditActions(t, env.s, result["id"].(string))); diff != "" {
			t.Errorf("監査ログが一致しません (-want +got):\n%s", diff)
		}
	})

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{
			name:     "同じメールアドレスは大文字小文字を問わず409",
			body:     map[string]string{"email": "EXISTING@planmoni.test", "name": "Dup", "password": "password123", "role_id": SuperAdminRoleID},
			wantCode: http.StatusConflict,
		},
		{
			name:     "短いパスワードは400",
			body:     map[string]string{"email": "new@planmoni.test", "name": "New", "password": "short", "role_id": SuperAdminRoleID},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "存在しないロールは400",
			body:     map[string]string{"email": "new@planmoni.test", "name": "New", "password": "password123", "role_id": "missing"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "必須項目がない場合は400",
			body:     map[string]string{"email": "new@planmoni.test"},
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestServer(t)
			createTestAdmin(t, env, "existing@planmoni.test", "password123")

			w := doRequest(env.router, http.MethodPost, "/api/v1/admins", superToken(t), tt.body)
			assertStatus(t, w, tt.wantCode)
		})
	}
}

// TestHandleSetAdminStatus は管理者の有効化・無効化ハンドラのテスト。
func TestHandleSetAdminStatus(t *testing.T) {
	t.Parallel()

	t.Run("無効化した管理者は認証できない", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		id := createTestAdmin(t, env, "ops@planmoni.test", "password123")

		w := doRequest(env.router, http.MethodPut, "/api/v1/admins/"+id+"/status", superToken(t), map[string]bool{"active": false})
		assertStatus(t, w, http.StatusOK)
		if parseJSON(t, w)["active"] != false {
			t.Error("管理者が無効化されていません")
		}

		w = doRequest(env.router, http.MethodPost, "/api/v1/internal/authenticate", superToken(t),
			map[string]string{"email": "ops@planmoni.test", "password": "password123"})
		assertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("自分自身は無効化できない", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		id := createTestAdmin(t, env, "ops@planmoni.test", "password123")

		w := doRequest(env.router, http.MethodPut, "/api/v1/admins/"+id+"/status",
			tokenWith(t, id, "admins.manage"), map[string]bool{"active": false})
		assertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("activeの指定がない場合は400", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		id := createTestAdmin(t, env, "ops@planmoni.test", "password123")

		w := doRequest(env.router, http.MethodPut, "/api/v1/admins/"+id+"/status", superToken(t), map[string]any{})
		assertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("存在しない管理者は404", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodPut, "/api/v1/admins/missing/status", superToken(t), map[string]bool{"active": true})
		assertStatus(t, w, http.StatusNotFound)
	})
}

// TestHandleChangeAdminRole は管理者のロール変更ハンドラのテスト。
func TestHandleChangeAdminRole(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	id := createTestAdmin(t, env, "ops@planmoni.test", "password123")
	roleID := createTestRole(t, env, "support", "users.read")

	w := doRequest(env.router, http.MethodPut, "/api/v1/admins/"+id+"/role", superToken(t), map[string]string{"role_id": roleID})
	assertStatus(t, w, http.StatusOK)

	result := parseJSON(t, w)
	if result["role"] != "support" {
		t.Errorf("role: got %v, want support", result["role"])
	}

	w = doRequest(env.router, http.MethodPut, "/api/v1/admins/missing/role", superToken(t), map[string]string{"role_id": roleID})
	assertStatus(t, w, http.StatusNotFound)
}

// TestHandleAuthenticate は管理者認証ハンドラのテスト。
func TestHandleAuthenticate(t *testing.T) {
	t.Parallel()

	t.Run("正しい資格情報ではロールと権限を返す", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		id := createTestAdmin(t, env, "ops@planmoni.test", "password123")
		service := issueToken(t, middleware.ServiceIdentity("gateway"))

		w := doRequest(env.router, http.MethodPost, "/api/v1/internal/authenticate", service,
			map[string]string{"email": "OPS@planmoni.test", "password": "password123"})
		assertStatus(t, w, http.StatusOK)

		result := parseJSON(t, w)
		if result["id"] != id {
			t.Errorf("id: got %v, want %s", result["id"], id)
		}
		if result["role"] != "super_admin" {
			t.Errorf("role: got %v, want super_admin", result["role"])
		}
		if perms, ok := result["permissions"].([]any); !ok || len(perms) == 0 {
			t.Errorf("permissions: got %v, want non-empty", result["permissions"])
		}

		a, err := env.s.queries.GetAdmin(t.Context(), id)
		if err != nil {
			t.Fatalf("管理者の取得に失敗: %v", err)
		}
		if !a.LastLoginAt.Valid {
			t.Error("最終ログイン日時が更新されていません")
		}
	})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "パスワードが違う", email: "ops@planmoni.test", password: "wrong-password"},
		{name: "存在しないメールアドレス", email: "nobody@planmoni.test", password: "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"場合は401", func(t *testing.T) {
			t.Parallel()
			env := setupTestServer(t)
			createTestAdmin(t, env, "ops@planmoni.test", "password123")

			w := doRequest(env.router, http.MethodPost, "/api/v1/internal/authenticate", issueToken(t, middleware.ServiceIdentity("gateway")),
				map[string]string{"email": tt.email, "password": tt.password})
			assertStatus(t, w, http.StatusUnauthorized)
		})
	}

	t.Run("トークンがない場合は401", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodPost, "/api/v1/internal/authenticate", "",
			map[string]string{"email": "ops@planmoni.test", "password": "password123"})
		assertStatus(t, w, http.StatusUnauthorized)
	})
}
