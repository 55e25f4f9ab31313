package sqltime

import (
	"database/sql"
	"testing"
	"time"
)

func TestFormatOrdering(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	earlier := Format(base)
	later := Format(base.Add(time.Microsecond))
	if !(earlier < later) {
		t.Errorf("文字列の順序が時刻の順序と一致しない: %q >= %q", earlier, later)
	}

	lagos := time.FixedZone("WAT", 3600)
	if got := Format(time.Date(2025, 3, 1, 10, 0, 0, 0, lagos)); got != earlier {
		t.Errorf("Format(WAT) = %q, want %q", got, earlier)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 3, 1, 9, 30, 15, 123456000, time.UTC)
	got, err := Parse(Format(want))
	if err != nil {
		t.Fatalf("Parse()でエラーが発生: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}

	if _, err := Parse("2025-03-01"); err == nil {
		t.Error("不正な形式でエラーが返されなかった")
	}
}

func TestNull(t *testing.T) {
	t.Parallel()

	if got := Null(time.Time{}); got.Valid {
		t.Errorf("Null(zero) = %+v, want invalid", got)
	}
	if got := NullRFC3339(sql.NullString{}); got != nil {
		t.Errorf("NullRFC3339(invalid) = %v, want nil", *got)
	}

	ns := Null(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	got := NullRFC3339(ns)
	if got == nil || *got != "2025-01-02T03:04:05Z" {
		t.Errorf("NullRFC3339() = %v, want 2025-01-02T03:04:05Z", got)
	}
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		endOfDay bool
		want     time.Time
		wantErr  bool
	}{
		{name: "RFC3339", in: "2025-02-10T12:00:00+01:00", want: time.Date(2025, 2, 10, 11, 0, 0, 0, time.UTC)},
		{name: "日付のみの開始", in: "2025-02-10", want: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)},
		{name: "日付のみの終了", in: "2025-02-10", endOfDay: true, want: time.Date(2025, 2, 10, 23, 59, 59, 999999000, time.UTC)},
		{name: "不正な形式", in: "10/02/2025", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseQuery(tt.in, tt.endOfDay)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQuery(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseQuery(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
