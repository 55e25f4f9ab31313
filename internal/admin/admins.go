package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/middleware"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// minPasswordLength はパスワードの最小長。
const minPasswordLength = 8

// SuperAdminRoleID は初期データで作成される組み込みロールsuper_adminのID。
const SuperAdminRoleID = "00000000-0000-0000-0000-000000000001"

// adminResponse は管理者アカウントのJSONレスポンス構造。パスワードハッシュは含めない。
type adminResponse struct {
	// ID は管理者の一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name"`
	// RoleID はロールのID。
	RoleID string `json:"role_id"`
	// Role はロール名。
	Role string `json:"role"`
	// Active はアカウントが有効かどうか。
	Active bool `json:"active"`
	// LastLoginAt は最終ログイン日時。
	LastLoginAt *string `json:"last_login_at"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

func toAdminResponse(a admindb.Admin) adminResponse {
	return adminResponse{
		ID:          a.ID,
		Email:       a.Email,
		Name:        a.Name,
		RoleID:      a.RoleID,
		Role:        a.RoleName,
		Active:      a.Active,
		LastLoginAt: sqltime.NullRFC3339(a.LastLoginAt),
		CreatedAt:   sqltime.RFC3339(a.CreatedAt),
	}
}

// createAdminRequest は管理者作成リクエストのJSON構造。
type createAdminRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Name は表示名。
	Name string `json:"name" binding:"required"`
	// Password は初期パスワード。
	Password string `json:"password" binding:"required"`
	// RoleID は割り当てるロールのID。
	RoleID string `json:"role_id" binding:"required"`
}

// changeRoleRequest は管理者のロール変更リクエストのJSON構造。
type changeRoleRequest struct {
	// RoleID は割り当てるロールのID。
	RoleID string `json:"role_id" binding:"required"`
}

// setStatusRequest は管理者の有効化・無効化リクエストのJSON構造。
type setStatusRequest struct {
	// Active はアカウントを有効にするかどうか。
	Active *bool `json:"active" binding:"required"`
}

// authenticateRequest は認証リクエストのJSON構造。
type authenticateRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// authenticateResponse は認証成功時のJSONレスポンス構造。
type authenticateResponse struct {
	// ID は管理者の一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name"`
	// Role はロール名。
	Role string `json:"role"`
	// Permissions はロールに付与された権限コード。
	Permissions []string `json:"permissions"`
}

// CreateAdminInput は管理者アカウント作成の入力。
type CreateAdminInput struct {
	Email    string
	Name     string
	Password string
	RoleID   string
}

// errWeakPassword はパスワードが短すぎることを表す。
var errWeakPassword = fmt.Errorf("パスワードは%d文字以上で指定してください", minPasswordLength)

// errInvalidEmail はメールアドレスの形式が不正であることを表す。
var errInvalidEmail = errors.New("メールアドレスの形式が不正です")

// CreateAdmin はパスワードをbcryptでハッシュ化して管理者アカウントを作成する。
// 運用コマンドからの初期管理者作成にも使用する。
func CreateAdmin(ctx context.Context, q *admindb.Queries, in CreateAdminInput, now string) (admindb.Admin, error) {
	email := normalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return admindb.Admin{}, errInvalidEmail
	}
	if len(in.Password) < minPasswordLength {
		return admindb.Admin{}, errWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return admindb.Admin{}, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	id := uuid.New().String()
	if err := q.CreateAdmin(ctx, admindb.CreateAdminParams{
		ID:           id,
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		RoleID:       in.RoleID,
		CreatedAt:    now,
	}); err != nil {
		return admindb.Admin{}, err
	}
	return q.GetAdmin(ctx, id)
}

// handleListAdmins は管理者一覧取得を処理するハンドラを返す。
func (s *Server) handleListAdmins() gin.HandlerFunc {
	return func(c *gin.Context) {
		admins, err := s.queries.ListAdmins(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "管理者一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("管理者一覧取得エラー")
			return
		}
		items := make([]adminResponse, 0, len(admins))
		for _, a := range admins {
			items = append(items, toAdminResponse(a))
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleCreateAdmin は管理者作成を処理するハンドラを返す。
// 同じメールアドレスの管理者が存在する場合は409を返す。
func (s *Server) handleCreateAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAdminRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		if _, err := s.queries.GetRole(ctx, req.RoleID); errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "指定されたロールが存在しません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "管理者の作成に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール取得エラー")
			return
		}

		created, err := CreateAdmin(ctx, s.queries, CreateAdminInput{
			Email:    req.Email,
			Name:     req.Name,
			Password: req.Password,
			RoleID:   req.RoleID,
		}, s.timestamp())
		switch {
		case errors.Is(err, errWeakPassword), errors.Is(err, errInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case admindb.IsUniqueViolation(err):
			c.JSON(http.StatusConflict, gin.H{"error": "同じメールアドレスの管理者が既に存在します"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "管理者の作成に失敗しました"})
			s.logger.Error().Err(err).Msg("管理者作成エラー")
			return
		}

		s.audit(c, event.ActionAdminCreated, event.EntityTypeAdmin, created.ID, event.AdminData{Email: created.Email, RoleID: created.RoleID})

		c.JSON(http.StatusCreated, toAdminResponse(created))
	}
}

// handleChangeAdminRole は管理者のロール変更を処理するハンドラを返す。
func (s *Server) handleChangeAdminRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changeRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		if _, err := s.queries.GetRole(ctx, req.RoleID); errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "指定されたロールが存在しません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの変更に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール取得エラー")
			return
		}

		id := c.Param("id")
		n, err := s.queries.UpdateAdminRole(ctx, id, req.RoleID, s.timestamp())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ロールの変更に失敗しました"})
			s.logger.Error().Err(err).Msg("管理者ロール変更エラー")
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "管理者が見つかりません"})
			return
		}

		s.respondAdmin(c, id, event.ActionAdminRoleChanged)
	}
}

// handleSetAdminStatus は管理者の有効化・無効化を処理するハンドラを返す。
// 自分自身を無効化することはできない。
func (s *Server) handleSetAdminStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		id := c.Param("id")
		if !*req.Active && id == middleware.GetUserID(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "自分自身のアカウントは無効化できません"})
			return
		}

		n, err := s.queries.SetAdminActive(c.Request.Context(), id, *req.Active, s.timestamp())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "管理者の更新に失敗しました"})
			s.logger.Error().Err(err).Msg("管理者状態変更エラー")
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "管理者が見つかりません"})
			return
		}

		action := event.ActionAdminDeactivated
		if *req.Active {
			action = event.ActionAdminActivated
		}
		s.respondAdmin(c, id, action)
	}
}

// respondAdmin は更新後の管理者を取得し、監査ログを記録してレスポンスを返す。
func (s *Server) respondAdmin(c *gin.Context, id string, action event.Action) {
	a, err := s.queries.GetAdmin(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の管理者の取得に失敗しました"})
		s.logger.Error().Err(err).Msg("管理者取得エラー")
		return
	}
	s.audit(c, action, event.EntityTypeAdmin, a.ID, event.AdminData{Email: a.Email, RoleID: a.RoleID})
	c.JSON(http.StatusOK, toAdminResponse(a))
}

// handleAuthenticate は管理者のメールアドレスとパスワードを検証するハンドラを返す。
// gatewayのログイン処理から呼び出される。無効なアカウントは認証に失敗する。
func (s *Server) handleAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req authenticateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		a, err := s.queries.GetAdminByEmail(ctx, normalizeEmail(req.Email))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "認証に失敗しました"})
			s.logger.Error().Err(err).Msg("管理者取得エラー")
			return
		}
		if err != nil || !a.Active || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}

		perms, err := s.queries.ListRolePermissions(ctx, a.RoleID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "認証に失敗しました"})
			s.logger.Error().Err(err).Msg("ロール権限取得エラー")
			return
		}

		if err := s.queries.TouchAdminLogin(ctx, a.ID, s.timestamp()); err != nil {
			s.logger.Warn().Err(err).Str("admin_id", a.ID).Msg("最終ログイン日時の更新に失敗")
		}

		c.JSON(http.StatusOK, authenticateResponse{
			ID:          a.ID,
			Email:       a.Email,
			Name:        a.Name,
			Role:        a.RoleName,
			Permissions: perms,
		})
	}
}

// normalizeEmail はメールアドレスを比較用に正規化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
