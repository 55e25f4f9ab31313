// adminctl はバックオフィスの運用コマンド。
// マイグレーション適用、初期管理者の作成、予約配信の手動実行、トークン発行を行う。
// 設定はサービスと同じ環境変数から読み込むため、サービスと同じ環境で実行する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/planmoni/backoffice/pkg/config"
	"github.com/planmoni/backoffice/pkg/logging"
)

// グローバルフラグ
var (
	adminDBPath        string
	notificationDBPath string
	logLevel           string
)

var rootCmd = &cobra.Command{
	Use:   "adminctl",
	Short: "バックオフィスの運用コマンド",
	Long: `adminctl はバックオフィスの運用作業を行うコマンドです。

Examples:
  adminctl migrate                                         # 全サービスのマイグレーションを適用
  adminctl create-admin --email ops@example.com --name Ops # 初期管理者を作成
  adminctl process-scheduled                               # 予約配信を1回実行
  adminctl token --service gateway                         # サービス間通信用トークンを発行`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adminDBPath, "admin-db", "", "管理サービスのデータベースパス（未指定時は設定値）")
	rootCmd.PersistentFlags().StringVar(&notificationDBPath, "notification-db", "", "通知サービスのデータベースパス（未指定時は設定値）")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "ログレベル")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(processScheduledCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "エラー: "+err.Error())
		stop()
		os.Exit(1)
	}
}

// loadConfig はサービスの設定を読み込み、フラグで指定されたデータベースパスを反映する。
func loadConfig(service, dbPath string) (config.Config, error) {
	cfg, err := config.Load(service, "0")
	if err != nil {
		return config.Config{}, fmt.Errorf("%sの設定読み込みに失敗: %w", service, err)
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	return cfg, nil
}

// newLogger はコマンド用のロガーを生成する。
func newLogger(cmd *cobra.Command) zerolog.Logger {
	return logging.New(logging.Options{
		Service: "adminctl",
		Level:   logLevel,
		Pretty:  true,
		Writer:  cmd.ErrOrStderr(),
	})
}
