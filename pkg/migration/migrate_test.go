package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別物になるため1接続に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_index.up.sql":  {Data: []byte(`CREATE INDEX idx_banners_title ON banners(title);`)},
		"migrations/000001_init.up.sql":       {Data: []byte(`CREATE TABLE banners (id TEXT PRIMARY KEY, title TEXT NOT NULL);`)},
		"migrations/000001_init.down.sql":     {Data: []byte(`DROP TABLE banners;`)},
		"migrations/README.md":                {Data: []byte(`ignored`)},
		"migrations/notaversion_thing.up.sql": {Data: []byte(`SELECT 1;`)},
	}

	t.Run("バージョン順に適用され再実行ではスキップされること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		ctx := context.Background()

		res, err := Run(ctx, db, fsys, "migrations", zerolog.Nop())
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if diff := cmp.Diff([]int{1, 2}, res.Applied); diff != "" {
			t.Errorf("Applied mismatch (-want +got):\n%s", diff)
		}
		if res.Current != 2 {
			t.Errorf("Current = %d, want 2", res.Current)
		}

		res, err = Run(ctx, db, fsys, "migrations", zerolog.Nop())
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if len(res.Applied) != 0 {
			t.Errorf("2回目のApplied = %v, want empty", res.Applied)
		}
		if res.Current != 2 {
			t.Errorf("2回目のCurrent = %d, want 2", res.Current)
		}
	})

	t.Run("失敗したマイグレーションはロールバックされること", func(t *testing.T) {
		t.Parallel()

		broken := fstest.MapFS{
			"m/000001_init.up.sql":   {Data: []byte(`CREATE TABLE kyc (id TEXT PRIMARY KEY);`)},
			"m/000002_broken.up.sql": {Data: []byte(`CREATE TABLE oops (; `)},
		}
		db := openTestDB(t)

		res, err := Run(context.Background(), db, broken, "m", zerolog.Nop())
		if err == nil {
			t.Fatal("エラーが返されなかった")
		}
		if res.Current != 1 {
			t.Errorf("Current = %d, want 1", res.Current)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("バージョン数の取得に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("記録されたバージョン数 = %d, want 1", count)
		}
	})

	t.Run("重複したバージョンはエラーになること", func(t *testing.T) {
		t.Parallel()

		dup := fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte(`SELECT 1;`)},
			"m/000001_b.up.sql": {Data: []byte(`SELECT 1;`)},
		}
		if _, err := Run(context.Background(), openTestDB(t), dup, "m", zerolog.Nop()); err == nil {
			t.Fatal("エラーが返されなかった")
		}
	})
}
