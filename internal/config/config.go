package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret          string
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Catalog
	CatalogDir          string
	CatalogURL          string
	CatalogFetchTimeout time.Duration
	CatalogMaxSize      int64

	// Membership
	MembershipReloadInterval time.Duration
	MembershipIdleTTL        time.Duration
	NoteMaxLength            int

	// Submissions
	SubmissionRetentionDays int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitWrite   int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定のものをすべて列挙したエラーを返す。
// 任意の値が不正な形式の場合はデフォルト値を使う。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.GoogleClientID = required("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = required("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = required("GOOGLE_REDIRECT_URL")
	cfg.SessionSecret = required("SESSION_SECRET")
	cfg.BaseURL = required("BASE_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.CatalogDir = getEnvString("CATALOG_DIR", "./data")
	cfg.CatalogURL = getEnvString("CATALOG_URL", "")
	cfg.CatalogFetchTimeout = getEnvDuration("CATALOG_FETCH_TIMEOUT", 10*time.Second)
	cfg.CatalogMaxSize = getEnvInt64("CATALOG_MAX_SIZE", 5242880)
	cfg.MembershipReloadInterval = getEnvDuration("MEMBERSHIP_RELOAD_INTERVAL", 5*time.Minute)
	cfg.MembershipIdleTTL = getEnvDuration("MEMBERSHIP_IDLE_TTL", 30*time.Minute)
	cfg.NoteMaxLength = getEnvInt("NOTE_MAX_LENGTH", 1000)
	cfg.SubmissionRetentionDays = getEnvInt("SUBMISSION_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
