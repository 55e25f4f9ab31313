// Package config はサービスの設定を読み込む。
//
// 設定はデフォルト値、YAMLファイル（環境変数CONFIG_FILEで指定）、
// 環境変数の順に上書きされる。全サービスが同じ構造体を共有し、
// 各サービスは必要な項目のみを参照する。
package config
