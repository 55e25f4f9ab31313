// API Gatewayサービスのエントリポイント。
// 管理者のログイン、JWT発行、リクエストルーティングを担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/planmoni/backoffice/internal/gateway"
	"github.com/planmoni/backoffice/pkg/config"
	"github.com/planmoni/backoffice/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Gatewayサービスの起動に失敗: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load("gateway", "8080")
	if err != nil {
		return err
	}
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.New(logging.Options{Service: cfg.Service, Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	server, err := gateway.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("admin_url", cfg.Services.Admin).
		Str("notification_url", cfg.Services.Notification).
		Bool("dev_mode", cfg.DevMode).
		Msg("Gatewayサービスを起動します")
	return server.Run(ctx)
}
