package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Admin
	AdminAPIKey string

	// Gemini
	GeminiAPIKey     string
	GeminiFlashModel string
	GeminiProModel   string

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	FetchInterval      time.Duration
	FetchDueWindow     time.Duration

	// Report
	ReportInterval time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral   int
	RateLimitAdminJobs int

	// Seed
	SeedFile string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// LoadDotEnv は.envファイルを環境変数に読み込む。
// ENV_PATHが設定されていればそのパスを、未設定なら".env"を使う。
// 既に設定されている環境変数は上書きしない。
// ファイルが存在しない場合は何もしない。
func LoadDotEnv() error {
	path := os.Getenv("ENV_PATH")
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug(".envファイルが見つからないためスキップします", slog.String("path", path))
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AdminAPIKey = os.Getenv("ADMIN_API_KEY")
	if cfg.AdminAPIKey == "" {
		missing = append(missing, "ADMIN_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiFlashModel = getEnvString("GEMINI_FLASH_MODEL", "gemini-2.5-flash")
	cfg.GeminiProModel = getEnvString("GEMINI_PRO_MODEL", "gemini-2.5-pro")
	cfg.FetchTimeout = getEnvPositiveDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 1)
	cfg.FetchInterval = getEnvPositiveDuration("FETCH_INTERVAL", 30*time.Minute)
	cfg.FetchDueWindow = getEnvPositiveDuration("FETCH_DUE_WINDOW", 4*time.Hour)
	cfg.ReportInterval = getEnvPositiveDuration("REPORT_INTERVAL", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAdminJobs = getEnvInt("RATE_LIMIT_ADMIN_JOBS", 10)
	cfg.SeedFile = getEnvString("SEED_FILE", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// LLMEnabled はGemini APIキーが設定されているかを返す。
func (c *Config) LLMEnabled() bool {
	return c.GeminiAPIKey != ""
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
	if err != nil {
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
	if err != nil {
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
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvPositiveDuration は0以下の値を既定値に置き換える。
// time.NewTickerは0以下の間隔でpanicする。
func getEnvPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	d := getEnvDuration(key, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}
