package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/handiism/msch-harvester/internal/model"
)

// Log levels accepted by Settings.LogLevel.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "MSCH_"

// Settings holds all configuration options.
type Settings struct {
	// Paths
	SchematicsPath string `yaml:"schematics_path"`
	DumpsPath      string `yaml:"dumps_path"`

	// Download settings
	MaxConcurrentDownloads int           `yaml:"max_concurrent_downloads"`
	RateLimitCooldown      time.Duration `yaml:"rate_limit_cooldown"`
	Retry                  RetrySettings `yaml:"retry"`
	HTTPTimeout            time.Duration `yaml:"http_timeout"`
	UserAgent              string        `yaml:"user_agent"`
	SkipExisting           bool          `yaml:"skip_existing"`
	SkipCategories         []string      `yaml:"skip_categories,omitempty"`

	// Sort settings
	ClassifyWorkers int `yaml:"classify_workers"`

	LogLevel string `yaml:"log_level"`
}

// RetrySettings controls how failed transfers are re-queued.
type RetrySettings struct {
	// MaxAttempts caps transfers per record. 0 retries forever.
	MaxAttempts int `yaml:"max_attempts"`

	// Cooldown is the wait before the first retry.
	Cooldown time.Duration `yaml:"cooldown"`

	// Exponent multiplies the wait after every further failure.
	Exponent float64 `yaml:"exponent"`

	// MaxCooldown caps the wait.
	MaxCooldown time.Duration `yaml:"max_cooldown"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		SchematicsPath: "schematics",
		DumpsPath:      "dumps",

		MaxConcurrentDownloads: 10,
		RateLimitCooldown:      10 * time.Second,
		Retry: RetrySettings{
			MaxAttempts: 7,
			Cooldown:    200 * time.Millisecond,
			Exponent:    2.0,
			MaxCooldown: 30 * time.Second,
		},
		HTTPTimeout:  60 * time.Second,
		UserAgent:    "msch-harvester",
		SkipExisting: true,

		ClassifyWorkers: 4,

		LogLevel: LogLevelInfo,
	}
}

// Load reads settings from a YAML file.
//
// A missing file yields the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return settings, nil
}

// LoadWithEnv reads settings from an optional YAML file, then applies
// environment overrides. An empty path skips the file.
func LoadWithEnv(path string, envFiles ...string) (*Settings, error) {
	settings := DefaultSettings()
	if path != "" {
		var err error
		if settings, err = Load(path); err != nil {
			return nil, err
		}
	}

	if err := settings.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to a YAML file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadEnv overrides settings from MSCH_* environment variables.
//
// Variables from an optional .env file are loaded first; variables already
// present in the environment take precedence over the file. Pass no files
// to use ".env" in the working directory.
func (s *Settings) LoadEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	if v, ok := lookupEnv("SCHEMATICS_PATH"); ok {
		s.SchematicsPath = v
	}
	if v, ok := lookupEnv("DUMPS_PATH"); ok {
		s.DumpsPath = v
	}
	if err := envInt("MAX_CONCURRENT_DOWNLOADS", &s.MaxConcurrentDownloads); err != nil {
		return err
	}
	if err := envDuration("RATE_LIMIT_COOLDOWN", &s.RateLimitCooldown); err != nil {
		return err
	}
	if err := envInt("RETRY_MAX_ATTEMPTS", &s.Retry.MaxAttempts); err != nil {
		return err
	}
	if err := envDuration("RETRY_COOLDOWN", &s.Retry.Cooldown); err != nil {
		return err
	}
	if v, ok := lookupEnv("RETRY_EXPONENT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %sRETRY_EXPONENT: %w", EnvPrefix, err)
		}
		s.Retry.Exponent = f
	}
	if err := envDuration("RETRY_MAX_COOLDOWN", &s.Retry.MaxCooldown); err != nil {
		return err
	}
	if err := envDuration("HTTP_TIMEOUT", &s.HTTPTimeout); err != nil {
		return err
	}
	if v, ok := lookupEnv("USER_AGENT"); ok {
		s.UserAgent = v
	}
	if v, ok := lookupEnv("SKIP_EXISTING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sSKIP_EXISTING: %w", EnvPrefix, err)
		}
		s.SkipExisting = b
	}
	if v, ok := lookupEnv("SKIP_CATEGORIES"); ok {
		s.SkipCategories = splitList(v)
	}
	if err := envInt("CLASSIFY_WORKERS", &s.ClassifyWorkers); err != nil {
		return err
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		s.LogLevel = strings.ToLower(v)
	}

	return nil
}

// Validate checks the settings for values the program cannot run with.
func (s *Settings) Validate() error {
	if s.SchematicsPath == "" {
		return errors.New("config: schematics_path is required")
	}
	if s.DumpsPath == "" {
		return errors.New("config: dumps_path is required")
	}
	if s.MaxConcurrentDownloads <= 0 {
		return errors.New("config: max_concurrent_downloads must be positive")
	}
	if s.RateLimitCooldown < 0 {
		return errors.New("config: rate_limit_cooldown must not be negative")
	}
	if s.Retry.MaxAttempts < 0 {
		return errors.New("config: retry.max_attempts must not be negative")
	}
	if s.Retry.Cooldown < 0 || s.Retry.MaxCooldown < 0 {
		return errors.New("config: retry cooldowns must not be negative")
	}
	if s.Retry.Exponent < 1 {
		return errors.New("config: retry.exponent must be at least 1")
	}
	if s.ClassifyWorkers <= 0 {
		return errors.New("config: classify_workers must be positive")
	}
	if _, err := s.SkippedCategories(); err != nil {
		return fmt.Errorf("config: skip_categories: %w", err)
	}
	if _, err := parseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SkippedCategories parses SkipCategories.
func (s *Settings) SkippedCategories() (map[model.Category]bool, error) {
	skipped := make(map[model.Category]bool, len(s.SkipCategories))
	for _, name := range s.SkipCategories {
		c, err := model.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		skipped[c] = true
	}
	return skipped, nil
}

// NewLogger returns a text slog.Logger at the configured level.
func (s *Settings) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func parseLevel(name string) (slog.Level, error) {
	switch name {
	case LogLevelDebug:
		return slog.LevelDebug, nil
	case LogLevelInfo, "":
		return slog.LevelInfo, nil
	case LogLevelWarn:
		return slog.LevelWarn, nil
	case LogLevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envInt(name string, dst *int) error {
	v, ok := lookupEnv(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v, ok := lookupEnv(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
