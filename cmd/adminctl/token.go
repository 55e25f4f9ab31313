package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planmoni/backoffice/pkg/middleware"
)

var (
	tokenService string
	tokenUserID  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "JWTトークンを発行する",
	Long: `JWTトークンを発行します。

--service を指定するとサービス間通信用のトークンを、
--user を指定すると全権限を持つスーパー管理者のトークンを発行します。`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenService, "service", "", "サービス名")
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "管理者ID")
	tokenCmd.MarkFlagsMutuallyExclusive("service", "user")
	tokenCmd.MarkFlagsOneRequired("service", "user")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig("gateway", "")
	if err != nil {
		return err
	}

	var id middleware.Identity
	switch {
	case tokenService != "":
		id = middleware.ServiceIdentity(tokenService)
	case tokenUserID != "":
		id = middleware.Identity{
			UserID:      tokenUserID,
			Role:        middleware.RoleSuperAdmin,
			Permissions: middleware.AllPermissions,
		}
	default:
		return errors.New("--service または --user を指定してください")
	}

	token, err := middleware.GenerateJWT(cfg.JWTSecret, id)
	if err != nil {
		return fmt.Errorf("トークン生成に失敗: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
