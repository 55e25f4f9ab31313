// Package logging は全サービス共通の構造化ロガーを生成する。
//
// zerologを利用し、サービス名を固定フィールドとして付与する。
// 開発時はコンソール向けの整形出力、本番ではJSON出力を用いる。
package logging
