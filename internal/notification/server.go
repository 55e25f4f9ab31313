package notification

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	notificationdb "github.com/planmoni/backoffice/internal/notification/db"
	"github.com/planmoni/backoffice/internal/notification/migrations"
	"github.com/planmoni/backoffice/pkg/config"
	"github.com/planmoni/backoffice/pkg/expo"
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
	// defaultMaxCampaignsPerRun は1回の予約配信処理で扱うキャンペーン数の既定値。
	defaultMaxCampaignsPerRun = 20
)

// Options は通知サーバーの生成オプション。
type Options struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// Sender はプッシュメッセージの送信先。
	Sender expo.Sender
	// BatchSize はExpoへ1回に送信するメッセージ数。0の場合は100。
	BatchSize int
	// MaxCampaignsPerRun は1回の予約配信処理で扱うキャンペーン数の上限。
	MaxCampaignsPerRun int
	// Logger はログ出力先。
	Logger zerolog.Logger
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// sender はExpoへのプッシュ送信クライアント。
	sender expo.Sender
	// batchSize はExpoへ1回に送信するメッセージ数。
	batchSize int
	// maxCampaignsPerRun は1回の予約配信処理で扱うキャンペーン数の上限。
	maxCampaignsPerRun int
	// processing は予約配信処理の重複実行を防ぐ。
	processing sync.Mutex
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
	sender := expo.NewClient(expo.Options{
		BaseURL:     cfg.Expo.URL,
		AccessToken: cfg.Expo.AccessToken,
		RatePerSec:  cfg.Expo.RatePerSec,
		MaxRetries:  cfg.Expo.MaxRetries,
	})
	return New(sqlDB, Options{
		Port:               cfg.Port,
		JWTSecret:          cfg.JWTSecret,
		Sender:             sender,
		BatchSize:          cfg.Push.BatchSize,
		MaxCampaignsPerRun: cfg.Push.MaxCampaignsPerRun,
		Logger:             logger,
	}), nil
}

// OpenDB はSQLiteデータベースを開き、通知サービスのマイグレーションを適用する。
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

// New はマイグレーション済みのデータベースから通知サーバーを生成する。
func New(sqlDB *sql.DB, opts Options) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(opts.Logger))
	router.Use(middleware.RequestLogger(opts.Logger))

	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > expo.MaxMessagesPerRequest {
		batchSize = expo.MaxMessagesPerRequest
	}
	maxCampaigns := opts.MaxCampaignsPerRun
	if maxCampaigns <= 0 {
		maxCampaigns = defaultMaxCampaignsPerRun
	}

	s := &Server{
		router:             router,
		port:               opts.Port,
		queries:            notificationdb.New(sqlDB),
		db:                 sqlDB,
		sender:             opts.Sender,
		batchSize:          batchSize,
		maxCampaignsPerRun: maxCampaigns,
		jwtSecret:          opts.JWTSecret,
		logger:             opts.Logger,
		now:                time.Now,
	}
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
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
		devices := api.Group("/devices", need(middleware.PermDevicesManage))
		{
			devices.GET("", s.handleListDevices())
			devices.POST("", s.handleRegisterDevice())
			devices.DELETE("/:id", s.handleDeactivateDevice())
		}

		api.POST("/push/send", need(middleware.PermNotificationsSend), s.handlePushSend())

		campaigns := api.Group("/campaigns")
		{
			campaigns.GET("", need(middleware.PermCampaignsRead), s.handleListCampaigns())
			campaigns.GET("/:id", need(middleware.PermCampaignsRead), s.handleGetCampaign())
			campaigns.GET("/:id/logs", need(middleware.PermCampaignsRead), s.handleListCampaignLogs())
			campaigns.POST("", need(middleware.PermCampaignsManage), s.handleCreateCampaign())
			campaigns.PUT("/:id", need(middleware.PermCampaignsManage), s.handleUpdateCampaign())
			campaigns.POST("/:id/schedule", need(middleware.PermCampaignsManage), s.handleScheduleCampaign())
			campaigns.POST("/:id/cancel", need(middleware.PermCampaignsManage), s.handleCancelCampaign())
			campaigns.POST("/:id/send", need(middleware.PermCampaignsManage), s.handleSendCampaign())
		}

		notifications := api.Group("/notifications", need(middleware.PermNotificationsSend))
		{
			notifications.GET("", s.handleListNotifications())
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
			notifications.PUT("/:id/read", s.handleMarkAsRead())
		}

		// 内部API（管理サービスと運用コマンドから呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/send", s.handleInternalSend())
			internal.POST("/process-scheduled", s.handleProcessScheduled())
		}
	}

	// 公開API（モバイルアプリから呼び出される）
	public := s.router.Group("/public")
	{
		public.POST("/devices", s.handleRegisterDevice())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
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
