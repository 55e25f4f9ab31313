// 管理サービスのエントリポイント。
// 利用者、取引、払い出しプラン、本人確認、ロールと権限、バナー、
// アプリバージョンを管理し、すべての変更を監査ログに記録する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/planmoni/backoffice/internal/admin"
	"github.com/planmoni/backoffice/pkg/config"
	"github.com/planmoni/backoffice/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "管理サービスの起動に失敗: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load("admin", "8081")
	if err != nil {
		return err
	}
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.New(logging.Options{Service: cfg.Service, Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	server, err := admin.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer server.Close()

	logger.Info().Str("port", cfg.Port).Str("database", cfg.DatabasePath).Msg("管理サービスを起動します")
	return server.Run(ctx)
}
