package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// devSecret は開発モードで使用するJWT署名鍵。
const devSecret = "dev-secret-key"

// MaxPushBatchSize はExpoが1リクエストで受け付けるメッセージの上限。
const MaxPushBatchSize = 100

// Config は全サービス共通の設定。
type Config struct {
	// Service はサービス名。ログ出力に使用する。
	Service string `yaml:"-"`
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `yaml:"database_path"`
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string `yaml:"jwt_secret"`
	// DevMode がtrueの場合、開発用トークン発行などを有効にする。
	DevMode bool `yaml:"dev_mode"`
	// Log はログ出力の設定。
	Log LogConfig `yaml:"log"`
	// Services は内部サービスのURL。
	Services ServiceURLs `yaml:"services"`
	// FrontendURLs はCORSで許可するダッシュボードのオリジン。
	FrontendURLs []string `yaml:"frontend_urls"`
	// Expo はExpoプッシュ通知APIの設定。
	Expo ExpoConfig `yaml:"expo"`
	// Push は一斉配信と予約配信の設定。
	Push PushConfig `yaml:"push"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServiceURLs は内部サービスのベースURL。
type ServiceURLs struct {
	Admin        string `yaml:"admin"`
	Notification string `yaml:"notification"`
}

// ExpoConfig はExpoプッシュ通知APIの設定。
type ExpoConfig struct {
	// URL はExpo APIのベースURL。
	URL string `yaml:"url"`
	// AccessToken はExpoのアクセストークン（拡張セキュリティ有効時のみ必要）。
	AccessToken string `yaml:"access_token"`
	// RatePerSec は1秒あたりの最大リクエスト数。
	RatePerSec int `yaml:"rate_per_sec"`
	// MaxRetries は一時的な失敗に対する最大リトライ回数。
	MaxRetries int `yaml:"max_retries"`
}

// PushConfig は配信処理の設定。
type PushConfig struct {
	// BatchSize はExpoへ1回に送信するメッセージ数。
	BatchSize int `yaml:"batch_size"`
	// ScheduleSpec は予約配信処理の実行スケジュール（cron形式）。
	ScheduleSpec string `yaml:"schedule_spec"`
	// MaxCampaignsPerRun は1回の処理で取得する予約配信の上限。
	MaxCampaignsPerRun int `yaml:"max_campaigns_per_run"`
}

// Default はサービスごとのデフォルト設定を返す。
func Default(service, port string) Config {
	return Config{
		Service:      service,
		Port:         port,
		DatabasePath: fmt.Sprintf("/data/%s.db", service),
		Log:          LogConfig{Level: "info"},
		Services: ServiceURLs{
			Admin:        "http://localhost:8081",
			Notification: "http://localhost:8082",
		},
		FrontendURLs: []string{"http://localhost:3000"},
		Expo: ExpoConfig{
			URL:        "https://exp.host",
			RatePerSec: 6,
			MaxRetries: 3,
		},
		Push: PushConfig{
			BatchSize:          MaxPushBatchSize,
			ScheduleSpec:       "@every 1m",
			MaxCampaignsPerRun: 20,
		},
	}
}

// Load はデフォルト値、YAMLファイル、環境変数の順に設定を読み込む。
func Load(service, port string) (Config, error) {
	return LoadWith(service, port, os.LookupEnv)
}

// LoadWith は環境変数の参照関数を指定して設定を読み込む。
func LoadWith(service, port string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default(service, port)

	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.mergeEnv(lookup); err != nil {
		return Config{}, err
	}

	if cfg.DevMode && cfg.JWTSecret == "" {
		cfg.JWTSecret = devSecret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile はYAMLファイルの内容で設定を上書きする。
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}
	return nil
}

// mergeEnv は環境変数の内容で設定を上書きする。
func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s の値が不正です: %q", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s の値が不正です: %q", key, v))
				return
			}
			*dst = b
		}
	}

	str("PORT", &c.Port)
	str("DATABASE_PATH", &c.DatabasePath)
	str("JWT_SECRET", &c.JWTSecret)
	boolean("DEV_MODE", &c.DevMode)
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_PRETTY", &c.Log.Pretty)
	str("ADMIN_URL", &c.Services.Admin)
	str("NOTIFICATION_URL", &c.Services.Notification)
	if v, ok := lookup("FRONTEND_URL"); ok && v != "" {
		c.FrontendURLs = splitList(v)
	}
	str("EXPO_URL", &c.Expo.URL)
	str("EXPO_ACCESS_TOKEN", &c.Expo.AccessToken)
	integer("EXPO_RATE_PER_SEC", &c.Expo.RatePerSec)
	integer("EXPO_MAX_RETRIES", &c.Expo.MaxRetries)
	integer("PUSH_BATCH_SIZE", &c.Push.BatchSize)
	str("SCHEDULE_SPEC", &c.Push.ScheduleSpec)
	integer("PUSH_MAX_CAMPAIGNS_PER_RUN", &c.Push.MaxCampaignsPerRun)

	return errors.Join(errs...)
}

// Validate は設定値の整合性を検証する。
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORTが設定されていません"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRETが設定されていません"))
	}
	if c.Push.BatchSize < 1 || c.Push.BatchSize > MaxPushBatchSize {
		errs = append(errs, fmt.Errorf("PUSH_BATCH_SIZEは1から%dの範囲で指定してください: %d", MaxPushBatchSize, c.Push.BatchSize))
	}
	if c.Push.MaxCampaignsPerRun < 1 {
		errs = append(errs, fmt.Errorf("PUSH_MAX_CAMPAIGNS_PER_RUNは1以上で指定してください: %d", c.Push.MaxCampaignsPerRun))
	}
	if slices.Contains(c.FrontendURLs, "*") && !c.DevMode {
		errs = append(errs, errors.New("FRONTEND_URLの*は開発モードでのみ指定できます"))
	}
	if c.Expo.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("EXPO_MAX_RETRIESは0以上で指定してください: %d", c.Expo.MaxRetries))
	}
	return errors.Join(errs...)
}

// DSN はSQLiteの接続文字列を返す。
func (c Config) DSN() string {
	return c.DatabasePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// splitList はカンマ区切りの文字列を分割する。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
