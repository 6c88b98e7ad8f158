package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Scrape source
	SourceBaseURL string

	// Fetch
	FetchTimeout    time.Duration
	FetchMaxSize    int64
	ListingDelayMin time.Duration
	ListingDelayMax time.Duration
	DetailDelayMin  time.Duration
	DetailDelayMax  time.Duration

	// Ingest
	MaxProductsPerSearch int
	MaxItemsPerPage      int
	QueryHistoryKeep     int

	// Rate Limit
	RateLimitGeneral int
	RateLimitScrape  int

	// AI insight
	GeminiAPIKey string
	GeminiModel  string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
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

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SourceBaseURL = getEnvString("SOURCE_BASE_URL", "https://www.amazon.com")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 10485760)
	cfg.ListingDelayMin = getEnvDuration("LISTING_DELAY_MIN", 3*time.Second)
	cfg.ListingDelayMax = getEnvDuration("LISTING_DELAY_MAX", 8*time.Second)
	cfg.DetailDelayMin = getEnvDuration("DETAIL_DELAY_MIN", 2*time.Second)
	cfg.DetailDelayMax = getEnvDuration("DETAIL_DELAY_MAX", 4*time.Second)
	cfg.MaxProductsPerSearch = getEnvInt("MAX_PRODUCTS_PER_SEARCH", 20)
	cfg.MaxItemsPerPage = getEnvInt("MAX_ITEMS_PER_PAGE", 10)
	cfg.QueryHistoryKeep = getEnvInt("QUERY_HISTORY_KEEP", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitScrape = getEnvInt("RATE_LIMIT_SCRAPE", 10)
	cfg.GeminiAPIKey = getEnvString("GEMINI_API_KEY", "")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-1.5-flash")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
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
