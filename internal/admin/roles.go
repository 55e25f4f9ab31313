package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// errUnknownPermission はカタログにない権限コードを表す。
var errUnknownPermission = errors.New("不明な権限コードです")

// permissionResponse は権限のJSONレスポンス構造。
type permissionResponse struct {
	// Code は権限コード。
	Code string `json:"code"`
	// Description は権限の説明。
	Description string `json:"description"`
}

// roleResponse はロールのJSONレスポンス構造。
type roleResponse struct {
	// ID はロールの一意識別子。
	ID string `json:"id"`
	// Name はロール名。
	Name string `json:"name"`
	// Description はロールの説明。
	Description string `json:"description"`
	// BuiltIn は組み込みロールかどうか。
	BuiltIn bool `json:"built_in"`
	// Permissions は付与された権限コード。
	Permissions []string `json:"permissions"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

// createRoleRequest はロール作成リクエストのJSON構造。
type createRoleRequest struct {
	// Name はロール名。
	Name string `json:"name" binding:"required"`
	// Description はロールの説明。
	Description string `json:"description"`
	// Permissions は付与する権限コード。
	Permissions []string `json:"permissions"`
}

// updateRoleRequest はロール更新リクエストのJSON構造。
// Permissionsは既存の権限を置き換える。
type updateRoleRequest struct {
	// Description はロールの説明。nilの場合は変更しない。
	Description *string `json:"description"`
	// Permissions は付与する権限コード。
	Permissions []string `json:"permissions" binding:"required"`
}

// handleListPermissions は権限カタログ取得を処理するハンドラを返す。
func (s *Server) handleListPermissions() gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, err := s.queries.ListPermissions(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "権限一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("権限一覧取得エラー")
			return
		}
		items := make([]permissionResponse, 0, len(perms))
		for _, p := range perms {
			items = append(items, permissionResponse{Code: p.Code, Description: p.Description})
		}
		c.JSON(http.StatusOK, items)
	}
}

// loadRole はロールと権限コードを取得してレスポンスに変換する。
func (s *Server) loadRole(ctx context.Context, q *admindb.Queries, r admindb.Role) (roleResponse, error) {
	perms, err := q.ListRolePermissions(ctx, r.ID)
	if err != nil {
		return roleResponse{}, err
	}
	return roleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		BuiltIn:     r.BuiltIn,
		Permissions: perms,
		CreatedAt:   sqltime.RFC3339(r.CreatedAt),
	}, nil
}

// handleListRoles はロール一覧取得を処理するハンドラを返す。
func (s *Server) handleListRoles() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		roles, err := s.queries.ListRoles(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロール一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール一覧取得エラー")
			return
		}
		items := make([]roleResponse, 0, len(roles))
		for _, r := range roles {
			resp, err := s.loadRole(ctx, s.queries, r)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ロール一覧の取得に失敗しました"})
				s.logger.Error().Err(err).Str("role_id", r.ID).Msg("ロール権限取得エラー")
				return
			}
			items = append(items, resp)
		}
		c.JSON(http.StatusOK, items)
	}
}

// normalizePermissions は権限コードの重複を除いて整列し、カタログにないコードを拒否する。
func (s *Server) normalizePermissions(ctx context.Context, codes []string) ([]string, error) {
	catalog, err := s.queries.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(catalog))
	for _, p := range catalog {
		known[p.Code] = true
	}

	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if !known[code] {
			return nil, fmt.Errorf("%w: %s", errUnknownPermission, code)
		}
		out = append(out, code)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// replacePermissions はロールの権限をcodesで置き換える。
func replacePermissions(ctx context.Context, q *admindb.Queries, roleID string, codes []string) error {
	if err := q.ClearRolePermissions(ctx, roleID); err != nil {
		return err
	}
	for _, code := range codes {
		if err := q.AddRolePermission(ctx, roleID, code); err != nil {
			return err
		}
	}
	return nil
}

// handleCreateRole はロール作成を処理するハンドラを返す。
// 不明な権限コードは400、同名のロールが存在する場合は409を返す。
func (s *Server) handleCreateRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ロール名を入力してください"})
			return
		}

		ctx := c.Request.Context()
		perms, err := s.normalizePermissions(ctx, req.Permissions)
		if errors.Is(err, errUnknownPermission) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの作成に失敗しました"})
			s.logger.Error().Err(err).Msg("権限カタログ取得エラー")
			return
		}

		role := admindb.Role{ID: uuid.New().String(), Name: name, Description: req.Description, CreatedAt: s.timestamp()}
		err = s.inTx(ctx, func(q *admindb.Queries) error {
			if err := q.CreateRole(ctx, admindb.CreateRoleParams{
				ID:          role.ID,
				Name:        role.Name,
				Description: role.Description,
				CreatedAt:   role.CreatedAt,
			}); err != nil {
				return err
			}
			return replacePermissions(ctx, q, role.ID, perms)
		})
		if admindb.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "同じ名前のロールが既に存在します"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの作成に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール作成エラー")
			return
		}

		s.audit(c, event.ActionRoleCreated, event.EntityTypeRole, role.ID, event.RoleData{Name: role.Name, Permissions: perms})

		c.JSON(http.StatusCreated, roleResponse{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			Permissions: perms,
			CreatedAt:   sqltime.RFC3339(role.CreatedAt),
		})
	}
}

// handleUpdateRole はロールの説明と権限の更新を処理するハンドラを返す。
// 組み込みロールは変更できない。
func (s *Server) handleUpdateRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		role, ok := s.editableRole(c)
		if !ok {
			return
		}

		perms, err := s.normalizePermissions(ctx, req.Permissions)
		if errors.Is(err, errUnknownPermission) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの更新に失敗しました"})
			s.logger.Error().Err(err).Msg("権限カタログ取得エラー")
			return
		}

		err = s.inTx(ctx, func(q *admindb.Queries) error {
			if req.Description != nil {
				if err := q.UpdateRoleDescription(ctx, role.ID, *req.Description); err != nil {
					return err
				}
			}
			return replacePermissions(ctx, q, role.ID, perms)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの更新に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール更新エラー")
			return
		}

		s.audit(c, event.ActionRoleUpdated, event.EntityTypeRole, role.ID, event.RoleData{Name: role.Name, Permissions: perms})

		updated, err := s.queries.GetRole(ctx, role.ID)
		if err == nil {
			var resp roleResponse
			resp, err = s.loadRole(ctx, s.queries, updated)
			if err == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後のロールの取得に失敗しました"})
		s.logger.Error().Err(err).Msg("ロール取得エラー")
	}
}

// handleDeleteRole はロール削除を処理するハンドラを返す。
// 組み込みロールと、管理者に割り当てられているロールは削除できない。
func (s *Server) handleDeleteRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		role, ok := s.editableRole(c)
		if !ok {
			return
		}

		inUse, err := s.queries.CountAdminsByRole(ctx, role.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの削除に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール使用数の取得エラー")
			return
		}
		if inUse > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("このロールは%d人の管理者に割り当てられているため削除できません", inUse)})
			return
		}

		if _, err := s.queries.DeleteRole(ctx, role.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの削除に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール削除エラー")
			return
		}

		s.audit(c, event.ActionRoleDeleted, event.EntityTypeRole, role.ID, event.RoleData{Name: role.Name})

		c.Status(http.StatusNoContent)
	}
}

// editableRole はパスのIDでロールを取得し、編集可能かを確認する。
// 存在しない場合は404、組み込みロールの場合は403を返してfalseを返す。
func (s *Server) editableRole(c *gin.Context) (admindb.Role, bool) {
	role, err := s.queries.GetRole(c.Request.Context(), c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ロールが見つかりません"})
		return role, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの取得に失敗しました"})
		s.logger.Error().Err(err).Msg("ロール取得エラー")
		return role, false
	}
	if role.BuiltIn {
		c.JSON(http.StatusForbidden, gin.H{"error": "組み込みロールは変更できません"})
		return role, false
	}
	return role, true
}

// inTx はfnをトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
func (s *Server) inTx(ctx context.Context, fn func(q *admindb.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}
