// 通知サービスのエントリポイント。
// アプリ端末のプッシュトークンを管理し、Expo経由で即時配信とキャンペーン配信を行う。
// HTTPサーバーと予約配信のスケジューラを並行して実行する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/planmoni/backoffice/internal/notification"
	"github.com/planmoni/backoffice/pkg/config"
	"github.com/planmoni/backoffice/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "通知サービスの起動に失敗: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load("notification", "8082")
	if err != nil {
		return err
	}
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.New(logging.Options{Service: cfg.Service, Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	server, err := notification.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer server.Close()

	logger.Info().
		Str("port", cfg.Port).
		Str("expo_url", cfg.Expo.URL).
		Int("batch_size", cfg.Push.BatchSize).
		Msg("通知サービスを起動します")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		return server.RunScheduler(ctx, cfg.Push.ScheduleSpec)
	})
	return g.Wait()
}
