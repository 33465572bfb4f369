// Package config provides configuration management for msch-harvester.
//
// This package handles:
//   - Loading and saving settings from YAML files
//   - Default configuration values
//   - Overrides from MSCH_* environment variables and an optional .env file
//   - Construction of the slog logger
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// 10 concurrent downloads, 10s rate-limit cooldown, 7 attempts per record
//
// # Loading
//
//	settings, err := config.Load("msch.yaml") // defaults if the file doesn't exist
//	if err == nil {
//	    err = settings.LoadEnv()
//	}
//	if err == nil {
//	    err = settings.Validate()
//	}
//
// Durations are written the way time.ParseDuration reads them:
//
//	rate_limit_cooldown: 10s
//	retry:
//	  max_attempts: 7
//	  cooldown: 200ms
package config
