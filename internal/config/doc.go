// Package config loads runtime configuration for the fieldsync engine.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables (see parseEnv), loaded after an optional .env
//     file in the working directory.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   data directory
//	-a string   base URL of the inspection backend
//	-t string   API bearer token
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "data_dir": "/var/lib/fieldsync",
//	  "api_base_url": "https://inspections.example.com/",
//	  "http_timeout": "10s",
//	  "batch_poll_interval": "3s",
//	  "batch_poll_attempts": 15,
//	  "retry_attempts": 3,
//	  "retry_delay": "5s"
//	}
//
// Primary API
//
//   - type Config                     — engine tunables plus data-layout helpers
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, env, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
package config
