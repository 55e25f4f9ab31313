package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// TestNew はNew関数で監査イベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("StatusChangedDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := StatusChangedData{From: "active", To: "suspended", Reason: "不正利用の疑い"}

		before := time.Now().UTC()
		ev, err := New("admin-1", ActionUserStatusChanged, EntityTypeUser, "user-1", data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if ev == nil {
			t.Fatal("New()がnilを返した")
		}

		// UUIDが生成されていること
		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.ActorID != "admin-1" {
			t.Errorf("ActorID = %q, want %q", ev.ActorID, "admin-1")
		}
		if ev.Action != ActionUserStatusChanged {
			t.Errorf("Action = %q, want %q", ev.Action, ActionUserStatusChanged)
		}
		if ev.EntityType != EntityTypeUser {
			t.Errorf("EntityType = %q, want %q", ev.EntityType, EntityTypeUser)
		}
		if ev.EntityID != "user-1" {
			t.Errorf("EntityID = %q, want %q", ev.EntityID, "user-1")
		}

		// CreatedAtが呼び出し前後の範囲内であること
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		var decoded StatusChangedData
		if err := json.Unmarshal(ev.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if diff := cmp.Diff(data, decoded); diff != "" {
			t.Errorf("Data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("dataがnilの場合は空オブジェクトになること", func(t *testing.T) {
		t.Parallel()

		ev, err := New("admin-1", ActionBannerDeleted, EntityTypeBanner, "banner-1", nil)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if string(ev.Data) != "{}" {
			t.Errorf("Data = %s, want {}", ev.Data)
		}
	})

	t.Run("連続して生成したイベントのIDが異なること", func(t *testing.T) {
		t.Parallel()

		ev1, err := New("admin-1", ActionRoleDeleted, EntityTypeRole, "role-1", RoleData{Name: "support"})
		if err != nil {
			t.Fatalf("1回目のNew()でエラーが発生: %v", err)
		}
		ev2, err := New("admin-1", ActionRoleDeleted, EntityTypeRole, "role-1", RoleData{Name: "support"})
		if err != nil {
			t.Fatalf("2回目のNew()でエラーが発生: %v", err)
		}

		if ev1.ID == ev2.ID {
			t.Errorf("異なるイベントが同じIDを持っている: %q", ev1.ID)
		}
	})

	t.Run("シリアライズ不可能なデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		// json.Marshalでエラーになるチャネル型を渡す
		ev, err := New("admin-1", ActionBannerCreated, EntityTypeBanner, "banner-1", make(chan int))
		if err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
		if ev != nil {
			t.Error("エラー時にnilでないEventが返った")
		}
	})
}

// TestDecodeData はDecodeData関数でイベントデータを正しくデシリアライズできることを検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("KYCReviewedDataを正しくデコードできること", func(t *testing.T) {
		t.Parallel()

		original := KYCReviewedData{UserID: "user-10", Status: "rejected", Reason: "書類が不鮮明"}

		ev, err := New("admin-2", ActionKYCRejected, EntityTypeKYC, "kyc-10", original)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		decoded, err := DecodeData[KYCReviewedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if diff := cmp.Diff(original, *decoded); diff != "" {
			t.Errorf("decoded mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("RoleDataの権限一覧を保持できること", func(t *testing.T) {
		t.Parallel()

		original := RoleData{Name: "support", Permissions: []string{"users.read", "kyc.read"}}

		ev, err := New("admin-2", ActionRoleCreated, EntityTypeRole, "role-2", original)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		decoded, err := DecodeData[RoleData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if diff := cmp.Diff(original, *decoded); diff != "" {
			t.Errorf("decoded mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("不正なJSONの場合エラーが返ること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{Data: json.RawMessage(`{invalid`)}
		decoded, err := DecodeData[AdminData](ev)
		if err == nil {
			t.Fatal("DecodeData()がエラーを返すべきだが、nilが返った")
		}
		if decoded != nil {
			t.Error("エラー時にnilでない値が返った")
		}
	})
}

// TestEventJSONFieldNames はEventのJSONフィールド名を検証する。
func TestEventJSONFieldNames(t *testing.T) {
	t.Parallel()

	ev := Event{
		ID:         "test-id-123",
		ActorID:    "admin-1",
		Action:     ActionAdminCreated,
		EntityType: EntityTypeAdmin,
		EntityID:   "admin-2",
		Data:       json.RawMessage(`{"email":"ops@planmoni.com"}`),
		CreatedAt:  time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	jsonBytes, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("json.Marshal()でエラーが発生: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		t.Fatalf("json.Unmarshal()でエラーが発生: %v", err)
	}

	for _, key := range []string{"id", "actor_id", "action", "entity_type", "entity_id", "data", "created_at"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("JSONに期待するキー %q が存在しない", key)
		}
	}
}
