package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planmoni/backoffice/internal/admin"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

var (
	createAdminEmail    string
	createAdminName     string
	createAdminPassword string
	createAdminRoleID   string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "管理者アカウントを作成する",
	Long: `管理者アカウントを作成します。初回起動時のスーパー管理者作成に使用します。

パスワードを省略した場合は環境変数 ADMIN_PASSWORD の値を使用します。`,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&createAdminEmail, "email", "", "メールアドレス")
	createAdminCmd.Flags().StringVar(&createAdminName, "name", "", "表示名")
	createAdminCmd.Flags().StringVar(&createAdminPassword, "password", "", "パスワード")
	createAdminCmd.Flags().StringVar(&createAdminRoleID, "role", admin.SuperAdminRoleID, "ロールID")
	_ = createAdminCmd.MarkFlagRequired("email")
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger(cmd)

	password := createAdminPassword
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if password == "" {
		return errors.New("--password または ADMIN_PASSWORD を指定してください")
	}

	cfg, err := loadConfig("admin", adminDBPath)
	if err != nil {
		return err
	}
	server, err := admin.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer server.Close()

	created, err := admin.CreateAdmin(ctx, server.Queries(), admin.CreateAdminInput{
		Email:    createAdminEmail,
		Name:     createAdminName,
		Password: password,
		RoleID:   createAdminRoleID,
	}, sqltime.Now())
	if err != nil {
		return fmt.Errorf("管理者の作成に失敗: %w", err)
	}

	logger.Info().Str("admin_id", created.ID).Str("email", created.Email).Str("role", created.RoleName).Msg("管理者を作成しました")
	fmt.Fprintln(cmd.OutOrStdout(), created.ID)
	return nil
}
