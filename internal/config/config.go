package config

import (
	"path/filepath"
	"time"
)

// Config holds runtime settings for the fieldsync engine.
//
// Fields:
//   - DataDir: root of the local layout (database, event directories,
//     asset/image caches, archive scratch area).
//   - APIBaseURL / APIToken: inspection backend endpoint and bearer token.
//   - HTTPTimeout: per-request timeout for JSON API calls.
//   - DownloadRateLimit: asset/image downloads per second against the
//     storage host.
//   - ResolvedURLTTL: how long a resolved download location is reused.
//   - BatchPollInterval/Attempts: completion polling for multi-event uploads.
//   - SinglePollInterval/Attempts: completion polling for one-event uploads.
//   - RetryAttempts/RetryDelay: outer retry budget around a whole
//     sync/upload invocation.
type Config struct {
	DataDir    string
	APIBaseURL string
	APIToken   string

	HTTPTimeout       time.Duration
	DownloadRateLimit float64
	ResolvedURLTTL    time.Duration

	BatchPollInterval  time.Duration
	BatchPollAttempts  int
	SinglePollInterval time.Duration
	SinglePollAttempts int

	RetryAttempts int
	RetryDelay    time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "./fieldsync-data"
	c.APIBaseURL = "http://127.0.0.1:8080/"
	c.APIToken = ""
	c.HTTPTimeout = 10 * time.Second
	c.DownloadRateLimit = 8
	c.ResolvedURLTTL = 10 * time.Minute
	c.BatchPollInterval = 3 * time.Second
	c.BatchPollAttempts = 15
	c.SinglePollInterval = 2 * time.Second
	c.SinglePollAttempts = 30
	c.RetryAttempts = 3
	c.RetryDelay = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment variables and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// DatabasePath is the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "fieldsync.db")
}

// EventsDir holds one directory per locally recorded event.
func (c *Config) EventsDir() string {
	return filepath.Join(c.DataDir, "events")
}

// AssetCacheDir holds the shared content-addressed asset payloads.
func (c *Config) AssetCacheDir() string {
	return filepath.Join(c.DataDir, "cache", "assets")
}

// ImageCacheDir holds the per-project defect image layout.
func (c *Config) ImageCacheDir() string {
	return filepath.Join(c.DataDir, "cache", "images")
}

// ScratchDir is the archive staging area; its contents never survive an
// upload attempt.
func (c *Config) ScratchDir() string {
	return filepath.Join(c.DataDir, "scratch")
}
