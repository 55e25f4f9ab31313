package admin

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/internal/admin/migrations"
	"github.com/planmoni/backoffice/pkg/config"
	"github.com/planmoni/backoffice/pkg/event"
	"github.com/planmoni/backoffice/pkg/httpclient"
	"github.com/planmoni/backoffice/pkg/httpserver"
	"github.com/planmoni/backoffice/pkg/middleware"
	"github.com/planmoni/backoffice/pkg/migration"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

const (
	// defaultPageSize は一覧取得の既定件数。
	defaultPageSize = 50
	// maxPageSize は一覧取得の最大件数。
	maxPageSize = 200
)

// Options は管理サーバーの生成オプション。
type Options struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// NotificationURL は通知サービスのベースURL。
	NotificationURL string
	// Logger はログ出力先。
	Logger zerolog.Logger
}

// Server は管理サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *admindb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// notifyClient は通知サービスへのHTTPクライアント。
	notifyClient *httpclient.Client
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
	// logger はログ出力先。
	logger zerolog.Logger
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// Open は設定に従ってデータベースを開き、マイグレーションを適用してサーバーを生成する。
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	sqlDB, err := OpenDB(ctx, cfg.DSN(), logger)
	if err != nil {
		return nil, err
	}
	return New(sqlDB, Options{
		Port:            cfg.Port,
		JWTSecret:       cfg.JWTSecret,
		NotificationURL: cfg.Services.Notification,
		Logger:          logger,
	}), nil
}

// OpenDB はSQLiteデータベースを開き、管理サービスのマイグレーションを適用する。
func OpenDB(ctx context.Context, dsn string, logger zerolog.Logger) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別のDBになるため1接続に制限する
	if strings.HasPrefix(dsn, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}
	if _, err := migration.Run(ctx, sqlDB, migrations.FS, ".", logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return sqlDB, nil
}

// New はマイグレーション済みのデータベースから管理サーバーを生成する。
func New(sqlDB *sql.DB, opts Options) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(opts.Logger))
	router.Use(middleware.RequestLogger(opts.Logger))

	s := &Server{
		router:       router,
		port:         opts.Port,
		queries:      admindb.New(sqlDB),
		db:           sqlDB,
		notifyClient: httpclient.New(opts.NotificationURL, httpclient.WithTimeout(5*time.Second)),
		jwtSecret:    opts.JWTSecret,
		logger:       opts.Logger,
		now:          time.Now,
	}
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Queries はクエリ実行オブジェクトを返す。運用コマンドから使用する。
func (s *Server) Queries() *admindb.Queries {
	return s.queries
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまで待つ。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Serve(ctx, fmt.Sprintf(":%s", s.port), s.router, s.logger)
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	need := middleware.RequirePermission

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		users := api.Group("/users")
		{
			users.GET("", need(middleware.PermUsersRead), s.handleListUsers())
			users.GET("/:id", need(middleware.PermUsersRead), s.handleGetUser())
			users.PUT("/:id/status", need(middleware.PermUsersWrite), s.handleUpdateUserStatus())
		}

		transactions := api.Group("/transactions", need(middleware.PermTransactionsRead))
		{
			transactions.GET("", s.handleListTransactions())
			transactions.GET("/summary", s.handleTransactionSummary())
			transactions.GET("/:id", s.handleGetTransaction())
		}

		plans := api.Group("/payout-plans")
		{
			plans.GET("", need(middleware.PermPayoutsRead), s.handleListPayoutPlans())
			plans.GET("/:id", need(middleware.PermPayoutsRead), s.handleGetPayoutPlan())
			plans.PUT("/:id/status", need(middleware.PermPayoutsWrite), s.handleUpdatePayoutPlanStatus())
		}

		kyc := api.Group("/kyc")
		{
			kyc.GET("", need(middleware.PermKYCRead), s.handleListKYC())
			kyc.GET("/:id", need(middleware.PermKYCRead), s.handleGetKYC())
			kyc.POST("/:id/approve", need(middleware.PermKYCReview), s.handleApproveKYC())
			kyc.POST("/:id/reject", need(middleware.PermKYCReview), s.handleRejectKYC())
		}

		api.GET("/permissions", need(middleware.PermRolesManage), s.handleListPermissions())

		roles := api.Group("/roles", need(middleware.PermRolesManage))
		{
			roles.GET("", s.handleListRoles())
			roles.POST("", s.handleCreateRole())
			roles.PUT("/:id", s.handleUpdateRole())
			roles.DELETE("/:id", s.handleDeleteRole())
		}

		admins := api.Group("/admins", need(middleware.PermAdminsManage))
		{
			admins.GET("", s.handleListAdmins())
			admins.POST("", s.handleCreateAdmin())
			admins.PUT("/:id/role", s.handleChangeAdminRole())
			admins.PUT("/:id/status", s.handleSetAdminStatus())
		}

		banners := api.Group("/banners", need(middleware.PermBannersManage))
		{
			banners.GET("", s.handleListBanners())
			banners.POST("", s.handleCreateBanner())
			banners.GET("/:id", s.handleGetBanner())
			banners.PUT("/:id", s.handleUpdateBanner())
			banners.DELETE("/:id", s.handleDeleteBanner())
		}

		versions := api.Group("/app-versions", need(middleware.PermAppVersionsManage))
		{
			versions.GET("", s.handleListAppVersions())
			versions.POST("", s.handleCreateAppVersion())
			versions.GET("/:id", s.handleGetAppVersion())
			versions.PUT("/:id", s.handleUpdateAppVersion())
			versions.DELETE("/:id", s.handleDeleteAppVersion())
		}

		api.GET("/dashboard/stats", need(middleware.PermDashboardRead), s.handleDashboardStats())
		api.GET("/audit-logs", need(middleware.PermAuditRead), s.handleListAuditLogs())

		// 内部API（gatewayから呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/authenticate", s.handleAuthenticate())
		}
	}

	// 公開API（モバイルアプリから呼び出される）
	public := s.router.Group("/public")
	{
		public.GET("/banners", s.handlePublicBanners())
		public.GET("/app-versions/check", s.handleCheckAppVersion())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "admin"})
	})
}

// pageResponse は一覧取得のJSONレスポンス構造。
type pageResponse[T any] struct {
	// Items は取得した項目。
	Items []T `json:"items"`
	// Total は条件に一致する全件数。
	Total int64 `json:"total"`
	// Limit は取得件数の上限。
	Limit int64 `json:"limit"`
	// Offset は取得開始位置。
	Offset int64 `json:"offset"`
}

// parsePage はlimitとoffsetのクエリパラメータを解析する。
// 不正な値の場合は400を返してfalseを返す。
func parsePage(c *gin.Context) (limit, offset int64, ok bool) {
	limit = defaultPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limitは1以上の整数で指定してください"})
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offsetは0以上の整数で指定してください"})
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// timestamp は現在時刻を保存形式で返す。
func (s *Server) timestamp() string {
	return sqltime.Format(s.now())
}

// audit は監査ログを追記する。失敗しても操作自体は失敗させずログに記録する。
func (s *Server) audit(c *gin.Context, action event.Action, entityType event.EntityType, entityID string, data any) {
	if err := s.writeAudit(c.Request.Context(), s.queries, middleware.GetUserID(c), action, entityType, entityID, data); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Str("entity_id", entityID).
			Msg("監査ログの記録に失敗")
	}
}

// writeAudit は監査イベントを生成してqに書き込む。
// トランザクション内で呼び出す場合はトランザクションのQueriesを渡す。
func (s *Server) writeAudit(ctx context.Context, q *admindb.Queries, actorID string, action event.Action, entityType event.EntityType, entityID string, data any) error {
	ev, err := event.New(actorID, action, entityType, entityID, data)
	if err != nil {
		return err
	}
	ev.CreatedAt = s.now().UTC()
	if err := q.CreateAuditLog(ctx, admindb.CreateAuditLogParams{
		ID:         ev.ID,
		ActorID:    ev.ActorID,
		Action:     string(ev.Action),
		EntityType: string(ev.EntityType),
		EntityID:   ev.EntityID,
		Data:       string(ev.Data),
		CreatedAt:  sqltime.Format(ev.CreatedAt),
	}); err != nil {
		return fmt.Errorf("監査ログの書き込みに失敗: %w", err)
	}
	return nil
}
