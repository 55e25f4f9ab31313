package appversion

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1.4.2", want: "v1.4.2"},
		{in: "v2.0.0", want: "v2.0.0"},
		{in: " 1.0 ", want: "v1.0.0"},
		{in: "v1.4", want: "v1.4.0"},
		{in: "2", want: "v2.0.0"},
		{in: "1.4.2+build.7", want: "v1.4.2"},
		{in: "1.0.0-beta.1", want: "v1.0.0-beta.1"},
		{in: "", wantErr: true},
		{in: "latest", wantErr: true},
		{in: "1.x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	latest := Release{Version: "2.3.0", MinSupported: "2.0.0"}

	tests := []struct {
		name    string
		current string
		release Release
		want    Decision
	}{
		{name: "最新版なら更新不要", current: "2.3.0", release: latest, want: Decision{}},
		{name: "最新版より新しい場合も更新不要", current: "2.4.0", release: latest, want: Decision{}},
		{name: "サポート範囲内の旧版は任意更新", current: "2.1.5", release: latest, want: Decision{UpdateAvailable: true}},
		{name: "最小サポート未満は強制更新", current: "1.9.9", release: latest, want: Decision{UpdateAvailable: true, ForceUpdate: true}},
		{
			name:    "強制更新リリースより古い場合は強制更新",
			current: "2.2.0",
			release: Release{Version: "2.3.0", MinSupported: "2.0.0", ForceUpdate: true},
			want:    Decision{UpdateAvailable: true, ForceUpdate: true},
		},
		{
			name:    "強制更新リリースと同じなら更新不要",
			current: "v2.3.0",
			release: Release{Version: "2.3.0", ForceUpdate: true},
			want:    Decision{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Check(tt.current, tt.release)
			if err != nil {
				t.Fatalf("Check()でエラーが発生: %v", err)
			}
			if got != tt.want {
				t.Errorf("Check(%q) = %+v, want %+v", tt.current, got, tt.want)
			}
		})
	}

	t.Run("不正な現在バージョンはエラーになること", func(t *testing.T) {
		t.Parallel()
		if _, err := Check("abc", latest); err == nil {
			t.Fatal("エラーが返されなかった")
		}
	})
}

func TestLatest(t *testing.T) {
	t.Parallel()

	if got := Latest([]string{"1.2.0", "1.10.0", "bad", "1.9.3"}); got != 1 {
		t.Errorf("Latest() = %d, want 1", got)
	}
	if got := Latest(nil); got != -1 {
		t.Errorf("Latest(nil) = %d, want -1", got)
	}
}
