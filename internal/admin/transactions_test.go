package admin

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// seedTransactions は集計と絞り込みのテスト用に取引を登録する。
func seedTransactions(t *testing.T, env *testEnv) {
	t.Helper()
	createTestUser(t, env.s, "u1", "Ada", "ada@example.com", "active", "verified", testNow)
	createTestUser(t, env.s, "u2", "Bola", "bola@example.com", "active", "verified", testNow)
	day := 24 * time.Hour
	createTestTransaction(t, env.s, "t1", "u1", "deposit", "successful", 1000000, testNow.Add(-10*day))
	createTestTransaction(t, env.s, "t2", "u1", "deposit", "failed", 250050, testNow.Add(-5*day))
	createTestTransaction(t, env.s, "t3", "u2", "payout", "successful", 300000, testNow.Add(-2*day))
	createTestTransaction(t, env.s, "t4", "u2", "withdrawal", "pending", 150000, testNow.Add(-40*day))
}

// TestHandleListTransactions は取引一覧取得ハンドラのテスト。
func TestHandleListTransactions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "条件なしは新しい順に全件", query: "", wantIDs: []string{"t3", "t2", "t1", "t4"}},
		{name: "種類で絞り込む", query: "?type=deposit", wantIDs: []string{"t2", "t1"}},
		{name: "ステータスで絞り込む", query: "?status=successful", wantIDs: []string{"t3", "t1"}},
		{name: "利用者で絞り込む", query: "?user_id=u2", wantIDs: []string{"t3", "t4"}},
		{name: "日付のみの期間指定はtoの日の終わりまで含む", query: "?from=2025-05-22&to=2025-05-27", wantIDs: []string{"t2", "t1"}},
		{name: "参照番号の部分一致で検索する", query: "?q=ref-t3", wantIDs: []string{"t3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestServer(t)
			seedTransactions(t, env)

			w := doRequest(env.router, http.MethodGet, "/api/v1/transactions"+tt.query, superToken(t), nil)
			assertStatus(t, w, http.StatusOK)

			items, total := parsePageBody(t, w)
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it["id"].(string))
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("取引IDが一致しません (-want +got):\n%s", diff)
			}
			if int(total) != len(tt.wantIDs) {
				t.Errorf("total: got %v, want %d", total, len(tt.wantIDs))
			}
		})
	}

	t.Run("fromがtoより後の場合は400", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/api/v1/transactions?from=2025-06-02&to=2025-06-01", superToken(t), nil)
		assertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("日時の形式が不正な場合は400", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/api/v1/transactions?from=yesterday", superToken(t), nil)
		assertStatus(t, w, http.StatusBadRequest)
	})
}

// TestHandleGetTransaction は取引詳細取得ハンドラのテスト。
func TestHandleGetTransaction(t *testing.T) {
	t.Parallel()

	t.Run("金額をナイラの小数2桁で返す", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		seedTransactions(t, env)

		w := doRequest(env.router, http.MethodGet, "/api/v1/transactions/t2", superToken(t), nil)
		assertStatus(t, w, http.StatusOK)

		result := parseJSON(t, w)
		if result["amount"] != "2500.50" {
			t.Errorf("amount: got %v, want 2500.50", result["amount"])
		}
		if result["reference"] != "REF-t2" {
			t.Errorf("reference: got %v, want REF-t2", result["reference"])
		}
	})

	t.Run("存在しない取引は404", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/api/v1/transactions/missing", superToken(t), nil)
		assertStatus(t, w, http.StatusNotFound)
	})
}

// TestHandleTransactionSummary は取引集計ハンドラのテスト。
func TestHandleTransactionSummary(t *testing.T) {
	t.Parallel()

	t.Run("期間内の取引を種類別とステータス別に集計する", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)
		seedTransactions(t, env)

		w := doRequest(env.router, http.MethodGet, "/api/v1/transactions/summary?from=2025-05-01", superToken(t), nil)
		assertStatus(t, w, http.StatusOK)

		var got summaryResponse
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		want := summaryResponse{
			ByType: []totalResponse{
				{Key: "deposit", Count: 2, Amount: "12500.50"},
				{Key: "payout", Count: 1, Amount: "3000.00"},
			},
			ByStatus: []totalResponse{
				{Key: "failed", Count: 1, Amount: "2500.50"},
				{Key: "successful", Count: 2, Amount: "13000.00"},
			},
			TotalCount:  3,
			TotalAmount: "15500.50",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("集計結果が一致しません (-want +got):\n%s", diff)
		}
	})

	t.Run("取引がない場合は空の集計を返す", func(t *testing.T) {
		t.Parallel()
		env := setupTestServer(t)

		w := doRequest(env.router, http.MethodGet, "/api/v1/transactions/summary", superToken(t), nil)
		assertStatus(t, w, http.StatusOK)

		result := parseJSON(t, w)
		if result["total_amount"] != "0.00" {
			t.Errorf("total_amount: got %v, want 0.00", result["total_amount"])
		}
		if byType, ok := result["by_type"].([]any); !ok || len(byType) != 0 {
			t.Errorf("by_type: got %v, want []", result["by_type"])
		}
	})
}
