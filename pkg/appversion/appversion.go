// Package appversion はモバイルアプリのバージョン比較と更新判定を提供する。
//
// バージョン文字列は "1.4.2" または "v1.4.2" 形式を受け付け、
// golang.org/x/mod/semver の規則で比較する。
package appversion

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Normalize はバージョン文字列を "v" 接頭辞付きの正規形に変換する。
// "1.4" は "v1.4.0" になり、ビルドメタデータは取り除かれる。
// semverとして解釈できない場合はエラーを返す。
func Normalize(v string) (string, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", fmt.Errorf("バージョンが空です")
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return "", fmt.Errorf("バージョンの形式が不正です: %q", v)
	}
	return semver.Canonical(s), nil
}

// Display は正規形のバージョンから "v" 接頭辞を取り除いた表示用文字列を返す。
func Display(v string) string {
	return strings.TrimPrefix(v, "v")
}

// Compare は2つのバージョンを比較する。a<bなら-1、a==bなら0、a>bなら1を返す。
func Compare(a, b string) (int, error) {
	na, err := Normalize(a)
	if err != nil {
		return 0, err
	}
	nb, err := Normalize(b)
	if err != nil {
		return 0, err
	}
	return semver.Compare(na, nb), nil
}

// Release は判定に使用するリリース情報。
type Release struct {
	// Version は最新のバージョン。
	Version string
	// MinSupported はサポートされる最小バージョン。
	MinSupported string
	// ForceUpdate がtrueの場合、最新版未満のクライアントは更新必須となる。
	ForceUpdate bool
}

// Decision は更新判定の結果。
type Decision struct {
	// UpdateAvailable は新しいバージョンがあるかを表す。
	UpdateAvailable bool
	// ForceUpdate は更新が必須かを表す。
	ForceUpdate bool
}

// Check は現在のバージョンと最新リリースから更新要否を判定する。
// 最小サポートバージョン未満、または強制更新リリースより古い場合は更新必須となる。
func Check(current string, latest Release) (Decision, error) {
	cmpLatest, err := Compare(current, latest.Version)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{UpdateAvailable: cmpLatest < 0}
	if latest.MinSupported != "" {
		cmpMin, err := Compare(current, latest.MinSupported)
		if err != nil {
			return Decision{}, err
		}
		if cmpMin < 0 {
			d.ForceUpdate = true
		}
	}
	if latest.ForceUpdate && d.UpdateAvailable {
		d.ForceUpdate = true
	}
	return d, nil
}

// Latest はバージョン一覧の中で最大のものの添字を返す。
// 空、または不正なバージョンのみの場合は-1を返す。
func Latest(versions []string) int {
	best := -1
	var bestNorm string
	for i, v := range versions {
		n, err := Normalize(v)
		if err != nil {
			continue
		}
		if best < 0 || semver.Compare(n, bestNorm) > 0 {
			best, bestNorm = i, n
		}
	}
	return best
}
