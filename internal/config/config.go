// Package config handles configuration loading and validation for coldkeep.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/coldkeep/coldkeep/internal/tier"
	"github.com/coldkeep/coldkeep/pkg/bytesize"
)

// Defaults applied when the corresponding field is omitted.
const (
	DefaultPort          = 443
	DefaultPublicPrefix  = "public"
	DefaultPrivatePrefix = "private"
	DefaultPresignExpiry = 4 * time.Hour
	DefaultSweepInterval = 15 * time.Minute
	DefaultSubjectPrefix = "coldkeep"
)

// TierOverride holds a complete per-tier storage configuration. When present
// it wins over the shared storage fields for its tier.
type TierOverride struct {
	Endpoint      string `yaml:"endpoint"`
	Port          int    `yaml:"port"`     // default: 443
	UseSSL        *bool  `yaml:"use_ssl"`  // default: true
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	PublicPrefix  string `yaml:"public_prefix"`  // default: "public"
	PrivatePrefix string `yaml:"private_prefix"` // default: "private"
}

// StorageConfig describes where object bytes live. Two modes: a single shared
// endpoint with per-tier buckets, or independent per-tier override blocks.
type StorageConfig struct {
	// Shared endpoint mode.
	Endpoint   string `yaml:"endpoint"`
	Port       int    `yaml:"port"`
	UseSSL     *bool  `yaml:"use_ssl"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	HotBucket  string `yaml:"hot_bucket"`
	ColdBucket string `yaml:"cold_bucket"`

	// Optional shared-mode prefix overrides.
	PublicHotPrefix   string `yaml:"public_hot_prefix"`
	PrivateHotPrefix  string `yaml:"private_hot_prefix"`
	PublicColdPrefix  string `yaml:"public_cold_prefix"`
	PrivateColdPrefix string `yaml:"private_cold_prefix"`

	// Per-tier override mode.
	Hot  *TierOverride `yaml:"hot,omitempty"`
	Cold *TierOverride `yaml:"cold,omitempty"`
}

// AdvancedConfig holds tunables with safe defaults.
type AdvancedConfig struct {
	PresignExpiry     string        `yaml:"presign_expiry"` // duration string, default "4h"
	MaxFileSize       bytesize.Size `yaml:"max_file_size"`  // 0 = unbounded
	DefaultTier       string        `yaml:"default_tier"`   // default "hot"
	DefaultVisibility string        `yaml:"default_visibility"` // default "private"
}

// MetadataConfig selects the file-record backend.
type MetadataConfig struct {
	Backend   string `yaml:"backend"`    // memory, redis or postgres (default: memory)
	URL       string `yaml:"url"`        // connection URL for redis/postgres
	CacheSize int    `yaml:"cache_size"` // >0 enables an in-process record cache
}

// EventsConfig controls lifecycle event publishing.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`       // empty disables publishing
	SubjectPrefix string `yaml:"subject_prefix"` // default "coldkeep"
}

// AdminConfig holds configuration for the maintenance HTTP API.
type AdminConfig struct {
	Listen     string `yaml:"listen"`      // e.g. 127.0.0.1:9640; empty disables
	AuthSecret string `yaml:"auth_secret"` // HS256 secret for bearer tokens
}

// SweeperConfig controls the background archival sweep.
type SweeperConfig struct {
	Interval   string `yaml:"interval"`    // duration string, default "15m"; "0" disables
	OrphanScan bool   `yaml:"orphan_scan"` // also refresh the orphan gauge each sweep
}

// Config is the top-level coldkeep configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Storage  StorageConfig  `yaml:"storage"`
	Advanced AdvancedConfig `yaml:"advanced"`
	Metadata MetadataConfig `yaml:"metadata"`
	Events   EventsConfig   `yaml:"events"`
	Admin    AdminConfig    `yaml:"admin"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
}

// Load loads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Apply defaults
	if cfg.Advanced.PresignExpiry == "" {
		cfg.Advanced.PresignExpiry = DefaultPresignExpiry.String()
	}
	if cfg.Advanced.DefaultTier == "" {
		cfg.Advanced.DefaultTier = string(tier.Hot)
	}
	if cfg.Advanced.DefaultVisibility == "" {
		cfg.Advanced.DefaultVisibility = string(tier.Private)
	}
	if cfg.Metadata.Backend == "" {
		cfg.Metadata.Backend = "memory"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.Sweeper.Interval == "" {
		cfg.Sweeper.Interval = DefaultSweepInterval.String()
	}

	return cfg, nil
}

// Validate checks the configuration for errors. Both tiers must be
// resolvable, enums and durations must parse, and backends that need a
// connection URL must have one.
func (c *Config) Validate() error {
	if _, err := c.Resolve(tier.Hot); err != nil {
		return err
	}
	if _, err := c.Resolve(tier.Cold); err != nil {
		return err
	}

	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level %q", c.LogLevel)
		}
	}

	if c.Advanced.PresignExpiry != "" {
		d, err := time.ParseDuration(c.Advanced.PresignExpiry)
		if err != nil {
			return fmt.Errorf("invalid advanced.presign_expiry: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("advanced.presign_expiry must be positive")
		}
	}
	if c.Advanced.MaxFileSize < 0 {
		return fmt.Errorf("advanced.max_file_size must not be negative")
	}
	if c.Advanced.DefaultTier != "" {
		if _, err := tier.ParseTier(c.Advanced.DefaultTier); err != nil {
			return fmt.Errorf("invalid advanced.default_tier: %w", err)
		}
	}
	if c.Advanced.DefaultVisibility != "" {
		if _, err := tier.ParseVisibility(c.Advanced.DefaultVisibility); err != nil {
			return fmt.Errorf("invalid advanced.default_visibility: %w", err)
		}
	}

	switch c.Metadata.Backend {
	case "", "memory":
	case "redis", "postgres":
		if c.Metadata.URL == "" {
			return fmt.Errorf("metadata.url is required for the %s backend", c.Metadata.Backend)
		}
	default:
		return fmt.Errorf("invalid metadata.backend %q (want memory, redis or postgres)", c.Metadata.Backend)
	}
	if c.Metadata.CacheSize < 0 {
		return fmt.Errorf("metadata.cache_size must not be negative")
	}

	if c.Admin.Listen != "" && c.Admin.AuthSecret == "" {
		return fmt.Errorf("admin.auth_secret is required when admin.listen is set")
	}

	if c.Sweeper.Interval != "" {
		if _, err := time.ParseDuration(c.Sweeper.Interval); err != nil {
			return fmt.Errorf("invalid sweeper.interval: %w", err)
		}
	}

	return nil
}

// PresignTTL returns the default presigned URL lifetime.
func (c *Config) PresignTTL() time.Duration {
	if c.Advanced.PresignExpiry == "" {
		return DefaultPresignExpiry
	}
	d, err := time.ParseDuration(c.Advanced.PresignExpiry)
	if err != nil || d <= 0 {
		return DefaultPresignExpiry
	}
	return d
}

// SweepInterval returns the archival sweep period. Zero disables the sweeper.
func (c *Config) SweepInterval() time.Duration {
	if c.Sweeper.Interval == "" {
		return DefaultSweepInterval
	}
	d, err := time.ParseDuration(c.Sweeper.Interval)
	if err != nil || d < 0 {
		return DefaultSweepInterval
	}
	return d
}

// DefaultTier returns the tier used when an upload does not name one.
func (c *Config) DefaultTier() tier.Tier {
	t, err := tier.ParseTier(c.Advanced.DefaultTier)
	if err != nil {
		return tier.Hot
	}
	return t
}

// DefaultVisibility returns the visibility used when an upload does not name one.
func (c *Config) DefaultVisibility() tier.Visibility {
	v, err := tier.ParseVisibility(c.Advanced.DefaultVisibility)
	if err != nil {
		return tier.Private
	}
	return v
}

// MaxFileSize returns the upload size limit in bytes; 0 means unbounded.
func (c *Config) MaxFileSize() int64 {
	return c.Advanced.MaxFileSize.Bytes()
}

// ApplyLogLevel sets the global zerolog level from a config string.
// Returns true if the level was recognized and applied.
func ApplyLogLevel(level string) bool {
	if level == "" {
		return false
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown log level in config, keeping current level")
		return false
	}
	zerolog.SetGlobalLevel(parsed)
	return true
}
