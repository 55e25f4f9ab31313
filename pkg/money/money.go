// Package money はナイラ金額の表現と変換を提供する。
//
// 金額はデータベースでは整数のコボ（1ナイラ = 100コボ）として保持し、
// APIでは小数点以下2桁の10進文字列としてやり取りする。
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// koboExponent はナイラからコボへの桁移動量。
const koboExponent = 2

// ErrTooPrecise は小数点以下3桁以上の金額を表すエラー。
var ErrTooPrecise = errors.New("金額は小数点以下2桁までで指定してください")

// FromKobo はコボ単位の整数をナイラの10進数に変換する。
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -koboExponent)
}

// ToKobo はナイラの10進数をコボ単位の整数に変換する。
// 小数点以下3桁以上の値はErrTooPreciseを返す。
func ToKobo(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(koboExponent)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	return shifted.IntPart(), nil
}

// Parse は文字列のナイラ金額をコボに変換する。
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("金額の形式が不正です: %q", s)
	}
	return ToKobo(d)
}

// Format はコボを "1234.50" 形式の文字列に変換する。
func Format(kobo int64) string {
	return FromKobo(kobo).StringFixed(koboExponent)
}
