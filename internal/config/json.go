package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	DataDir            string         `json:"data_dir"`
	APIBaseURL         string         `json:"api_base_url"`
	APIToken           string         `json:"api_token"`
	HTTPTimeout        timex.Duration `json:"http_timeout"`
	DownloadRateLimit  float64        `json:"download_rate_limit"`
	ResolvedURLTTL     timex.Duration `json:"resolved_url_ttl"`
	BatchPollInterval  timex.Duration `json:"batch_poll_interval"`
	BatchPollAttempts  int            `json:"batch_poll_attempts"`
	SinglePollInterval timex.Duration `json:"single_poll_interval"`
	SinglePollAttempts int            `json:"single_poll_attempts"`
	RetryAttempts      int            `json:"retry_attempts"`
	RetryDelay         timex.Duration `json:"retry_delay"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Only fields actually present in the file override the current values;
// read or unmarshal errors panic (caller should recover if desired).
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.APIToken != "" {
		cfg.APIToken = jc.APIToken
	}
	if jc.HTTPTimeout.Duration > 0 {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	if jc.DownloadRateLimit > 0 {
		cfg.DownloadRateLimit = jc.DownloadRateLimit
	}
	if jc.ResolvedURLTTL.Duration > 0 {
		cfg.ResolvedURLTTL = jc.ResolvedURLTTL.Duration
	}
	if jc.BatchPollInterval.Duration > 0 {
		cfg.BatchPollInterval = jc.BatchPollInterval.Duration
	}
	if jc.BatchPollAttempts > 0 {
		cfg.BatchPollAttempts = jc.BatchPollAttempts
	}
	if jc.SinglePollInterval.Duration > 0 {
		cfg.SinglePollInterval = jc.SinglePollInterval.Duration
	}
	if jc.SinglePollAttempts > 0 {
		cfg.SinglePollAttempts = jc.SinglePollAttempts
	}
	if jc.RetryAttempts > 0 {
		cfg.RetryAttempts = jc.RetryAttempts
	}
	if jc.RetryDelay.Duration > 0 {
		cfg.RetryDelay = jc.RetryDelay.Duration
	}
}
