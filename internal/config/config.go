// Package config は環境変数からのアプリケーション設定読み込みを提供する。
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

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Scan
	ScanInterval time.Duration

	// Job Queue
	JobPollInterval  time.Duration
	JobMaxConcurrent int
	JobMaxAttempts   int
	JobBackoffBase   time.Duration
	JobClaimBatch    int

	// Email
	PostmarkServerToken  string
	PostmarkAccountToken string
	EmailFrom            string
	EmailSupport         string

	// Trigger
	TriggerToken string

	// Rate Limit
	RateLimitTrigger int
	RateLimitWebhook int

	// Server
	ServerPort string
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

	cfg.TriggerToken = os.Getenv("TRIGGER_TOKEN")
	if cfg.TriggerToken == "" {
		missing = append(missing, "TRIGGER_TOKEN")
	}

	cfg.EmailFrom = os.Getenv("EMAIL_FROM")
	if cfg.EmailFrom == "" {
		missing = append(missing, "EMAIL_FROM")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	// POSTMARK_SERVER_TOKENが空の場合はログ出力のみの開発用センダーを使用する
	cfg.PostmarkServerToken = getEnvString("POSTMARK_SERVER_TOKEN", "")
	cfg.PostmarkAccountToken = getEnvString("POSTMARK_ACCOUNT_TOKEN", "")
	cfg.EmailSupport = getEnvString("EMAIL_SUPPORT", cfg.EmailFrom)

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 5*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 1048576)
	cfg.ScanInterval = getEnvDuration("SCAN_INTERVAL", time.Minute)
	cfg.JobPollInterval = getEnvDuration("JOB_POLL_INTERVAL", time.Second)
	cfg.JobMaxConcurrent = getEnvInt("JOB_MAX_CONCURRENT", 10)
	cfg.JobMaxAttempts = getEnvInt("JOB_MAX_ATTEMPTS", 3)
	cfg.JobBackoffBase = getEnvDuration("JOB_BACKOFF_BASE", 2*time.Second)
	cfg.JobClaimBatch = getEnvInt("JOB_CLAIM_BATCH", 50)
	cfg.RateLimitTrigger = getEnvInt("RATE_LIMIT_TRIGGER", 10)
	cfg.RateLimitWebhook = getEnvInt("RATE_LIMIT_WEBHOOK", 60)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

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
