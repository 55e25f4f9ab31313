package main

import (
	"github.com/spf13/cobra"

	"github.com/planmoni/backoffice/internal/admin"
	"github.com/planmoni/backoffice/internal/notification"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "管理サービスと通知サービスのマイグレーションを適用する",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger(cmd)

	adminCfg, err := loadConfig("admin", adminDBPath)
	if err != nil {
		return err
	}
	adminDB, err := admin.OpenDB(ctx, adminCfg.DSN(), logger)
	if err != nil {
		return err
	}
	adminDB.Close()
	logger.Info().Str("database", adminCfg.DatabasePath).Msg("管理サービスのマイグレーション完了")

	notificationCfg, err := loadConfig("notification", notificationDBPath)
	if err != nil {
		return err
	}
	notificationDB, err := notification.OpenDB(ctx, notificationCfg.DSN(), logger)
	if err != nil {
		return err
	}
	notificationDB.Close()
	logger.Info().Str("database", notificationCfg.DatabasePath).Msg("通知サービスのマイグレーション完了")
	return nil
}
