package notification

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	notificationdb "github.com/planmoni/backoffice/internal/notification/db"
	"github.com/planmoni/backoffice/pkg/middleware"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// createTestNotification はテスト用に通知をDBに直接挿入するヘルパー関数。
func createTestNotification(t *testing.T, s *Server, id, userID, title string) {
	t.Helper()
	err := s.queries.CreateNotification(t.Context(), notificationdb.CreateNotificationParams{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Message:   "message for " + userID,
		Data:      "{}",
		CreatedAt: sqltime.Format(testNow),
	})
	if err != nil {
		t.Fatalf("テスト用通知の作成に失敗: %v", err)
	}
}

func TestInternalSend(t *testing.T) {
	t.Parallel()

	t.Run("受信箱に保存して利用者の端末へ送信する", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		createTestDevice(t, env.s, "user-1", pushToken(1))

		w := doRequest(env.router, http.MethodPost, "/api/v1/internal/send", superToken(t), map[string]any{
			"user_id": "user-1",
			"title":   "本人確認が完了しました",
			"message": "すべての機能をご利用いただけます。",
			"data":    map[string]any{"type": "kyc", "kyc_id": "kyc-1"},
		})
		assertStatus(t, w, http.StatusCreated)

		body := parseJSON(t, w)
		if diff := cmp.Diff(map[string]any{"sent": float64(1), "failed": float64(0)}, body["push"]); diff != "" {
			t.Errorf("push mismatch (-want +got):\n%s", diff)
		}

		batches := env.sender.Batches()
		if len(batches) != 1 || batches[0][0].Body != "すべての機能をご利用いただけます。" {
			t.Fatalf("batches: got %+v", batches)
		}

		n, err := env.s.queries.GetNotification(t.Context(), body["id"].(string))
		if err != nil {
			t.Fatalf("通知の取得に失敗: %v", err)
		}
		if n.IsRead || n.Data != `{"kyc_id":"kyc-1","type":"kyc"}` {
			t.Errorf("notification: got %+v", n)
		}
	})

	t.Run("端末がなくても受信箱には保存する", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodPost, "/api/v1/internal/send", superToken(t), map[string]any{
			"user_id": "user-1",
			"title":   "Hello",
			"message": "World",
		})
		assertStatus(t, w, http.StatusCreated)
		if len(env.sender.Batches()) != 0 {
			t.Error("Expo should not be called")
		}
	})

	t.Run("必須項目がない場合は400", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		w := doRequest(env.router, http.MethodPost, "/api/v1/internal/send", superToken(t), map[string]any{"user_id": "user-1"})
		assertStatus(t, w, http.StatusBadRequest)
	})
}

func TestInbox(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	createTestNotification(t, env.s, "n-1", "user-1", "first")
	createTestNotification(t, env.s, "n-2", "user-1", "second")
	createTestNotification(t, env.s, "n-3", "user-2", "third")
	token := tokenWith(t, "ops-1", middleware.PermNotificationsSend)

	w := doRequest(env.router, http.MethodGet, "/api/v1/notifications?user_id=user-1", token, nil)
	assertStatus(t, w, http.StatusOK)
	items, total := parsePageBody(t, w)
	if total != 2 {
		t.Fatalf("total: got %v, want 2", total)
	}
	if items[0]["id"] != "n-2" {
		t.Errorf("新しい順に並ぶ必要があります: got %v", items[0]["id"])
	}

	w = doRequest(env.router, http.MethodPut, "/api/v1/notifications/n-1/read", token, nil)
	assertStatus(t, w, http.StatusOK)

	w = doRequest(env.router, http.MethodGet, "/api/v1/notifications?user_id=user-1&unread=true", token, nil)
	assertStatus(t, w, http.StatusOK)
	if _, total := parsePageBody(t, w); total != 1 {
		t.Errorf("unread total: got %v, want 1", total)
	}

	w = doRequest(env.router, http.MethodPut, "/api/v1/notifications/read-all", token, map[string]any{"user_id": "user-1"})
	assertStatus(t, w, http.StatusOK)
	if got := parseJSON(t, w)["updated"]; got != float64(1) {
		t.Errorf("updated: got %v, want 1", got)
	}

	w = doRequest(env.router, http.MethodGet, "/api/v1/notifications?unread=true", token, nil)
	assertStatus(t, w, http.StatusOK)
	if _, total := parsePageBody(t, w); total != 1 {
		t.Errorf("他の利用者の未読は残る: got %v, want 1", total)
	}

	w = doRequest(env.router, http.MethodPut, "/api/v1/notifications/missing/read", token, nil)
	assertStatus(t, w, http.StatusNotFound)

	w = doRequest(env.router, http.MethodGet, "/api/v1/notifications?unread=maybe", token, nil)
	assertStatus(t, w, http.StatusBadRequest)
}
