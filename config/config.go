// ABOUTME: Application configuration loaded from YAML, .env and KITH_ environment variables
// ABOUTME: Precedence is environment over file over defaults, validated after load
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	AppName   = "kith"
	envPrefix = "KITH_"

	maxConfigFileSize = 1024 * 1024
)

// Config is the full application configuration.
type Config struct {
	DataDir  string         `koanf:"data_dir"`
	Database DatabaseConfig `koanf:"database"`
	KV       KVConfig       `koanf:"kv"`
	Log      LogConfig      `koanf:"log"`
	Scoring  ScoringConfig  `koanf:"scoring"`
	Deck     DeckConfig     `koanf:"deck"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Server   ServerConfig   `koanf:"server"`
	User     UserConfig     `koanf:"user"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type KVConfig struct {
	Dir string `koanf:"dir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ScoringConfig selects the display model and sizes the score caches.
type ScoringConfig struct {
	Model         string        `koanf:"model"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	CacheCapacity int           `koanf:"cache_capacity"`
}

// DeckConfig holds per-tier quotas, the ranking algorithm and the deck's calendar timezone.
type DeckConfig struct {
	FreeQuota    int    `koanf:"free_quota"`
	PremiumQuota int    `koanf:"premium_quota"`
	Ranking      string `koanf:"ranking"`
	Timezone     string `koanf:"timezone"`
}

type PipelineConfig struct {
	QueueSize int `koanf:"queue_size"`
	Workers   int `koanf:"workers"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// UserConfig identifies the local user and which users hold a premium entitlement.
type UserConfig struct {
	ID           string   `koanf:"id"`
	PremiumUsers []string `koanf:"premium_users"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads .env (if present), then the YAML file at path (if present), then
// KITH_* environment variables. An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if path == "" {
		path = DefaultPath()
	}
	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps KITH_SECTION_FIELD_NAME to section.field_name. KITH_DATA_DIR
// is the one top-level scalar.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if lower == "data_dir" {
		return lower
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, AppName)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "kith.db")
	}
	if cfg.KV.Dir == "" {
		cfg.KV.Dir = filepath.Join(cfg.DataDir, "kv")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Scoring.Model == "" {
		cfg.Scoring.Model = "contact"
	}
	if cfg.Scoring.CacheTTL == 0 {
		cfg.Scoring.CacheTTL = 5 * time.Minute
	}
	if cfg.Scoring.CacheCapacity == 0 {
		cfg.Scoring.CacheCapacity = 500
	}
	if cfg.Deck.FreeQuota == 0 {
		cfg.Deck.FreeQuota = 5
	}
	if cfg.Deck.PremiumQuota == 0 {
		cfg.Deck.PremiumQuota = 10
	}
	if cfg.Deck.Ranking == "" {
		cfg.Deck.Ranking = "rhs"
	}
	if cfg.Deck.Timezone == "" {
		cfg.Deck.Timezone = "Local"
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 256
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 2
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8420"
	}
	if cfg.User.ID == "" {
		cfg.User.ID = "local"
	}
}

// Validate rejects unknown enum values and non-positive sizes.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	switch c.Scoring.Model {
	case "contact", "rhs":
	default:
		errs = append(errs, fmt.Errorf("scoring.model must be contact or rhs, got %q", c.Scoring.Model))
	}
	if c.Scoring.CacheTTL <= 0 {
		errs = append(errs, errors.New("scoring.cache_ttl must be positive"))
	}
	if c.Scoring.CacheCapacity <= 0 {
		errs = append(errs, errors.New("scoring.cache_capacity must be positive"))
	}
	if c.Deck.FreeQuota <= 0 || c.Deck.PremiumQuota <= 0 {
		errs = append(errs, errors.New("deck quotas must be positive"))
	}
	switch c.Deck.Ranking {
	case "rhs", "weighted":
	default:
		errs = append(errs, fmt.Errorf("deck.ranking must be rhs or weighted, got %q", c.Deck.Ranking))
	}
	if _, err := time.LoadLocation(c.Deck.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("deck.timezone: %w", err))
	}
	if c.Pipeline.QueueSize <= 0 || c.Pipeline.Workers <= 0 {
		errs = append(errs, errors.New("pipeline.queue_size and pipeline.workers must be positive"))
	}

	return errors.Join(errs...)
}

// Location returns the deck timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Deck.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IsPremium reports whether userID is listed as a premium user.
func (c *Config) IsPremium(userID string) bool {
	for _, u := range c.User.PremiumUsers {
		if u == userID {
			return true
		}
	}
	return false
}
