package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/planmoni/backoffice/pkg/config"
	"github.com/planmoni/backoffice/pkg/httpclient"
	"github.com/planmoni/backoffice/pkg/httpserver"
	"github.com/planmoni/backoffice/pkg/middleware"
)

// proxyTimeout は内部サービスへの転送のタイムアウト。
const proxyTimeout = 30 * time.Second

// adminResources は管理サービスへ転送するリソース。
var adminResources = []string{
	"users",
	"transactions",
	"payout-plans",
	"kyc",
	"roles",
	"permissions",
	"admins",
	"banners",
	"app-versions",
	"audit-logs",
	"dashboard",
}

// notificationResources は通知サービスへ転送するリソース。
var notificationResources = []string{
	"devices",
	"push",
	"campaigns",
	"notifications",
}

// Options はGatewayサーバーの生成オプション。
type Options struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// AdminURL は管理サービスのベースURL。
	AdminURL string
	// NotificationURL は通知サービスのベースURL。
	NotificationURL string
	// FrontendURLs はCORSを許可するオリジン。
	FrontendURLs []string
	// DevMode がtrueの場合は開発用トークンの発行を許可する。
	DevMode bool
	// Logger はログ出力先。
	Logger zerolog.Logger
}

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
	// devMode は開発用トークンの発行を許可するかどうか。
	devMode bool
	// adminURL は管理サービスのベースURL。
	adminURL *url.URL
	// notificationURL は通知サービスのベースURL。
	notificationURL *url.URL
	// adminClient は管理サービスの内部APIクライアント。
	adminClient *httpclient.Client
	// proxyClient は転送に使用するHTTPクライアント。
	proxyClient *http.Client
	// logger はログ出力先。
	logger zerolog.Logger
}

// FromConfig は設定からGatewayサーバーを生成する。
func FromConfig(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	return New(Options{
		Port:            cfg.Port,
		JWTSecret:       cfg.JWTSecret,
		AdminURL:        cfg.Services.Admin,
		NotificationURL: cfg.Services.Notification,
		FrontendURLs:    cfg.FrontendURLs,
		DevMode:         cfg.DevMode,
		Logger:          logger,
	})
}

// New は新しいGatewayサーバーを生成する。
func New(opts Options) (*Server, error) {
	adminURL, err := parseServiceURL("ADMIN_URL", opts.AdminURL)
	if err != nil {
		return nil, err
	}
	notificationURL, err := parseServiceURL("NOTIFICATION_URL", opts.NotificationURL)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery(opts.Logger))
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(middleware.CORS(opts.FrontendURLs))

	s := &Server{
		router:          router,
		port:            opts.Port,
		jwtSecret:       opts.JWTSecret,
		devMode:         opts.DevMode,
		adminURL:        adminURL,
		notificationURL: notificationURL,
		adminClient:     httpclient.New(adminURL.String(), httpclient.WithTimeout(10*time.Second), httpclient.WithRetry(2, 100*time.Millisecond)),
		proxyClient:     &http.Client{Timeout: proxyTimeout},
		logger:          opts.Logger,
	}
	s.setupRoutes()

	return s, nil
}

// parseServiceURL は内部サービスのベースURLを検証する。
func parseServiceURL(name, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("%sが不正です: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%sにはスキームとホストを指定してください: %q", name, raw)
	}
	return u, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまで待つ。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Serve(ctx, fmt.Sprintf(":%s", s.port), s.router, s.logger)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証エンドポイント（認証不要）
	auth := s.router.Group("/auth")
	{
		auth.POST("/login", s.handleLogin())
		// 開発用トークン発行
		auth.POST("/dev-token", s.handleDevToken())
	}

	// 認証必須のAPIエンドポイント
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		api.GET("/me", s.handleGetCurrentUser())

		toAdmin := s.handleProxy(s.adminURL)
		for _, r := range adminResources {
			api.Any("/"+r, toAdmin)
			api.Any("/"+r+"/*path", toAdmin)
		}

		toNotification := s.handleProxy(s.notificationURL)
		for _, r := range notificationResources {
			api.Any("/"+r, toNotification)
			api.Any("/"+r+"/*path", toNotification)
		}
	}

	// 公開API（モバイルアプリから呼び出される）
	public := s.router.Group("/public")
	{
		public.GET("/banners", s.handleProxy(s.adminURL))
		public.GET("/app-versions/check", s.handleProxy(s.adminURL))
		public.POST("/devices", s.handleProxy(s.notificationURL))
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// adminIdentity は管理サービスの認証APIのレスポンス構造。
type adminIdentity struct {
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

// loginResponse はログイン成功時のJSONレスポンス構造。
type loginResponse struct {
	// Token はAPI呼び出しに使用するJWT。
	Token string `json:"token"`
	// ExpiresAt はトークンの有効期限（RFC3339形式）。
	ExpiresAt string `json:"expires_at"`
	// Admin はログインした管理者の情報。
	Admin adminIdentity `json:"admin"`
}

// handleLogin は管理者のメールアドレスとパスワードを管理サービスで検証し、JWTを発行するハンドラ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "emailとpasswordは必須です"})
			return
		}

		serviceToken, err := middleware.GenerateJWT(s.jwtSecret, middleware.ServiceIdentity("gateway"))
		if err != nil {
			s.logger.Error().Err(err).Msg("サービストークン生成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}

		var admin adminIdentity
		ctx := httpclient.WithToken(c.Request.Context(), serviceToken)
		if err := s.adminClient.PostJSON(ctx, "/api/v1/internal/authenticate", req, &admin); err != nil {
			switch httpclient.StatusCode(err) {
			case http.StatusUnauthorized:
				c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			case http.StatusBadRequest:
				c.JSON(http.StatusBadRequest, gin.H{"error": "emailとpasswordは必須です"})
			default:
				s.logger.Error().Err(err).Msg("管理サービスでの認証エラー")
				c.JSON(http.StatusBadGateway, gin.H{"error": "管理サービスとの通信に失敗しました"})
			}
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, middleware.Identity{
			UserID:      admin.ID,
			Email:       admin.Email,
			Role:        admin.Role,
			Permissions: admin.Permissions,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("JWT生成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			return
		}

		s.logger.Info().Str("admin_id", admin.ID).Str("role", admin.Role).Msg("管理者がログイン")
		c.JSON(http.StatusOK, loginResponse{
			Token:     token,
			ExpiresAt: time.Now().Add(middleware.TokenTTL).UTC().Format(time.RFC3339),
			Admin:     admin,
		})
	}
}

// devAdminID は開発用トークンの管理者ID。
const devAdminID = "dev-admin"

// handleDevToken は開発用のsuper_adminトークンを発行するハンドラを返す。
// DEV_MODEが有効な場合のみ利用でき、それ以外は404を返す。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.devMode {
			c.JSON(http.StatusNotFound, gin.H{"error": "見つかりません"})
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, middleware.Identity{
			UserID:      devAdminID,
			Email:       "dev@localhost",
			Role:        middleware.RoleSuperAdmin,
			Permissions: middleware.AllPermissions,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("JWT生成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":   token,
			"user_id": devAdminID,
		})
	}
}

// meResponse は認証済み管理者の情報のJSONレスポンス構造。
type meResponse struct {
	// UserID は管理者の一意識別子。
	UserID string `json:"user_id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role はロール名。
	Role string `json:"role"`
	// Permissions は権限コードの一覧。
	Permissions []string `json:"permissions"`
	// ExpiresAt はトークンの有効期限（RFC3339形式）。
	ExpiresAt string `json:"expires_at,omitempty"`
}

// handleGetCurrentUser は認証済み管理者のクレームを返すハンドラを返す。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		resp := meResponse{
			UserID:      claims.UserID,
			Email:       claims.Email,
			Role:        claims.Role,
			Permissions: claims.Permissions,
		}
		if resp.Permissions == nil {
			resp.Permissions = []string{}
		}
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleProxy はリクエストを同じパスのまま内部サービスに転送するハンドラを返す。
func (s *Server) handleProxy(base *url.URL) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := *base
		target.Path = base.Path + c.Request.URL.Path
		target.RawQuery = c.Request.URL.RawQuery
		s.doProxy(c, target.String())
	}
}

// doProxy はリクエストを内部サービスにプロキシする共通処理。
// JWTトークンとユーザーIDヘッダーを転送し、ステータスとボディをそのまま返す。
func (s *Server) doProxy(c *gin.Context, target string) {
	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
	if err != nil {
		s.logger.Error().Err(err).Str("url", target).Msg("プロキシリクエスト作成エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "プロキシリクエストの作成に失敗しました"})
		return
	}

	// 元のリクエストヘッダーを転送
	if ct := c.GetHeader("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if auth := c.GetHeader("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if userID := middleware.GetUserID(c); userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Str("url", target).Msg("プロキシエラー")
		c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Error().Err(err).Str("url", target).Msg("プロキシレスポンス読み取りエラー")
		c.JSON(http.StatusBadGateway, gin.H{"error": "レスポンスの読み取りに失敗しました"})
		return
	}

	if resp.StatusCode == http.StatusNoContent {
		c.Status(http.StatusNoContent)
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}
