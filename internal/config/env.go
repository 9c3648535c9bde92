package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from the process environment, after
// loading an optional .env file from the working directory. A missing .env
// is fine; set variables always win over JSON values.
//
// Supported variables:
//
//	FIELDSYNC_DATA_DIR        string
//	FIELDSYNC_API_BASE_URL    string
//	FIELDSYNC_API_TOKEN       string
//	FIELDSYNC_HTTP_TIMEOUT    duration ("10s")
//	FIELDSYNC_RATE_LIMIT      float (downloads per second)
//	FIELDSYNC_RETRY_ATTEMPTS  int
//	FIELDSYNC_RETRY_DELAY     duration ("5s")
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("FIELDSYNC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FIELDSYNC_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("FIELDSYNC_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("FIELDSYNC_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if v := os.Getenv("FIELDSYNC_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.DownloadRateLimit = f
		}
	}
	if v := os.Getenv("FIELDSYNC_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryAttempts = n
		}
	}
	if v := os.Getenv("FIELDSYNC_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryDelay = d
		}
	}
}
