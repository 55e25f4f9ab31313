package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/planmoni/backoffice/internal/notification"
)

var processScheduledCmd = &cobra.Command{
	Use:   "process-scheduled",
	Short: "配信予定時刻を過ぎたキャンペーンを1回処理する",
	RunE:  runProcessScheduled,
}

func runProcessScheduled(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger(cmd)

	cfg, err := loadConfig("notification", notificationDBPath)
	if err != nil {
		return err
	}
	server, err := notification.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer server.Close()

	result, err := server.ProcessScheduled(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
