package notification

import (
	"net/http"
	"testing"
)

func TestRegisterDevice(t *testing.T) {
	t.Parallel()

	t.Run("モバイルアプリからトークンなしで登録できる", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodPost, "/public/devices", "", map[string]any{
			"user_id":  "user-1",
			"token":    pushToken(1),
			"platform": "iOS",
		})
		assertStatus(t, w, http.StatusCreated)

		body := parseJSON(t, w)
		if body["platform"] != platformIOS {
			t.Errorf("platform: got %v, want ios", body["platform"])
		}
		if body["active"] != true {
			t.Errorf("active: got %v, want true", body["active"])
		}
		if body["created_at"] != "2025-06-01T12:00:00Z" {
			t.Errorf("created_at: got %v", body["created_at"])
		}
	})

	t.Run("同じトークンの再登録は利用者を付け替えて再度有効化する", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		id := createTestDevice(t, env.s, "user-1", pushToken(1))
		env.s.deactivateToken(t.Context(), pushToken(1), "DeviceNotRegistered")

		w := doRequest(env.router, http.MethodPost, "/api/v1/devices", superToken(t), map[string]any{
			"user_id":  "user-2",
			"token":    pushToken(1),
			"platform": "android",
		})
		assertStatus(t, w, http.StatusCreated)

		body := parseJSON(t, w)
		if body["id"] != id {
			t.Errorf("id: got %v, want %s", body["id"], id)
		}
		if body["user_id"] != "user-2" {
			t.Errorf("user_id: got %v, want user-2", body["user_id"])
		}
		if body["active"] != true {
			t.Errorf("active: got %v, want true", body["active"])
		}
		if _, ok := body["last_error"]; ok {
			t.Errorf("last_error should be cleared: %v", body["last_error"])
		}
	})

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "トークンの形式が不正", body: map[string]any{"user_id": "user-1", "token": "fcm-token", "platform": "ios"}},
		{name: "プラットフォームが不正", body: map[string]any{"user_id": "user-1", "token": pushToken(1), "platform": "web"}},
		{name: "user_idがない", body: map[string]any{"token": pushToken(1), "platform": "ios"}},
	}
	for _, tt := range tests {
		t.Run(tt.name+"場合は400", func(t *testing.T) {
			t.Parallel()
			env := setupTestServer(t)
			w := doRequest(env.router, http.MethodPost, "/public/devices", "", tt.body)
			assertStatus(t, w, http.StatusBadRequest)
		})
	}
}

func TestListDevices(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	createTestDevice(t, env.s, "user-1", pushToken(1))
	createTestDevice(t, env.s, "user-1", pushToken(2))
	createTestDevice(t, env.s, "user-2", pushToken(3))
	env.s.deactivateToken(t.Context(), pushToken(2), "DeviceNotRegistered")

	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{name: "絞り込みなし", query: "", want: 3},
		{name: "利用者で絞り込む", query: "?user_id=user-1", want: 2},
		{name: "有効なトークンのみ", query: "?active=true", want: 2},
		{name: "利用者と無効で絞り込む", query: "?user_id=user-1&active=false", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := doRequest(env.router, http.MethodGet, "/api/v1/devices"+tt.query, superToken(t), nil)
			assertStatus(t, w, http.StatusOK)
			items, total := parsePageBody(t, w)
			if total != tt.want || float64(len(items)) != tt.want {
				t.Errorf("got %d items (total %v), want %v", len(items), total, tt.want)
			}
		})
	}

	t.Run("activeが不正な場合は400", func(t *testing.T) {
		t.Parallel()
		w := doRequest(env.router, http.MethodGet, "/api/v1/devices?active=yes-please", superToken(t), nil)
		assertStatus(t, w, http.StatusBadRequest)
	})
}

func TestDeactivateDevice(t *testing.T) {
	t.Parallel()

	t.Run("無効化したトークンは配信対象から外れる", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		id := createTestDevice(t, env.s, "user-1", pushToken(1))

		w := doRequest(env.router, http.MethodDelete, "/api/v1/devices/"+id, superToken(t), nil)
		assertStatus(t, w, http.StatusNoContent)

		recipients, err := env.s.resolveUsers(t.Context(), []string{"user-1"})
		if err != nil {
			t.Fatalf("配信先の解決に失敗: %v", err)
		}
		if len(recipients) != 0 {
			t.Errorf("recipients: got %v, want none", recipients)
		}
	})

	t.Run("存在しないトークンは404", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		w := doRequest(env.router, http.MethodDelete, "/api/v1/devices/missing", superToken(t), nil)
		assertStatus(t, w, http.StatusNotFound)
	})
}
