// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string

	// Database（空の場合アカウントはメモリ上に保持する）
	DatabaseURL string

	// Jikan
	JikanBaseURL    string
	JikanTimeout    time.Duration
	JikanMaxRetries int
	JikanRetryDelay time.Duration
	JikanRateLimit  float64
	JikanMaxBody    int64

	// Categories
	CategoryRefreshInterval time.Duration

	// News
	NewsFeedURL string

	// Session
	SessionMaxAge int
	LoginDelay    time.Duration

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// envFilesを指定しない場合はカレントディレクトリの.envを読み込む。存在しない.envは無視する。
// .envの値は既に設定されている環境変数を上書きしない。
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.JikanBaseURL = strings.TrimRight(getEnvString("JIKAN_BASE_URL", "https://api.jikan.moe/v4"), "/")
	if err := validateBaseURL(cfg.JikanBaseURL); err != nil {
		return nil, fmt.Errorf("invalid JIKAN_BASE_URL: %w", err)
	}
	cfg.JikanTimeout = getEnvDuration("JIKAN_TIMEOUT", 10*time.Second)
	cfg.JikanMaxRetries = getEnvInt("JIKAN_MAX_RETRIES", 2)
	cfg.JikanRetryDelay = getEnvDuration("JIKAN_RETRY_DELAY", 2*time.Second)
	cfg.JikanRateLimit = getEnvFloat("JIKAN_RATE_LIMIT", 3)
	cfg.JikanMaxBody = getEnvInt64("JIKAN_MAX_BODY", 5<<20)

	cfg.CategoryRefreshInterval = getEnvDuration("CATEGORY_REFRESH_INTERVAL", 30*time.Minute)
	cfg.NewsFeedURL = getEnvString("NEWS_FEED_URL", "https://myanimelist.net/rss/news.xml")

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.LoginDelay = getEnvDuration("LOGIN_DELAY", time.Second)

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// validateBaseURL は上流APIのルートが絶対URL（http/https）であることを検証する。
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required: %q", raw)
	}
	return nil
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
	if err != nil || i < 0 {
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}
