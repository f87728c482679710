package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldkeep/coldkeep/internal/tier"
	"github.com/coldkeep/coldkeep/testutil"
)

func boolPtr(b bool) *bool {
	return &b
}

// validConfig returns a minimal configuration that passes Validate.
func validConfig() Config {
	return Config{
		Storage: StorageConfig{
			Endpoint:   "s3.example.com",
			AccessKey:  "AKEXAMPLE",
			SecretKey:  "SKEXAMPLE",
			HotBucket:  "files-hot",
			ColdBucket: "files-cold",
		},
	}
}

func TestLoad(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	content := `
log_level: debug
storage:
  endpoint: s3.example.com
  port: 9000
  use_ssl: false
  access_key: AKEXAMPLE
  secret_key: SKEXAMPLE
  hot_bucket: files-hot
  cold_bucket: files-cold
advanced:
  presign_expiry: 1h
  max_file_size: 512MB
  default_tier: cold
  default_visibility: public
metadata:
  backend: redis
  url: redis://localhost:6379/0
  cache_size: 1024
events:
  nats_url: nats://localhost:4222
  subject_prefix: files
admin:
  listen: 127.0.0.1:9640
  auth_secret: sekrit
sweeper:
  interval: 5m
  orphan_scan: true
`
	configPath := testutil.TempFile(t, dir, "coldkeep.yaml", content)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "s3.example.com", cfg.Storage.Endpoint)
	assert.Equal(t, 9000, cfg.Storage.Port)
	require.NotNil(t, cfg.Storage.UseSSL)
	assert.False(t, *cfg.Storage.UseSSL)
	assert.Equal(t, "files-hot", cfg.Storage.HotBucket)
	assert.Equal(t, "files-cold", cfg.Storage.ColdBucket)
	assert.Equal(t, "1h", cfg.Advanced.PresignExpiry)
	assert.Equal(t, int64(512*1024*1024), cfg.Advanced.MaxFileSize.Bytes())
	assert.Equal(t, "cold", cfg.Advanced.DefaultTier)
	assert.Equal(t, "public", cfg.Advanced.DefaultVisibility)
	assert.Equal(t, "redis", cfg.Metadata.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Metadata.URL)
	assert.Equal(t, 1024, cfg.Metadata.CacheSize)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
	assert.Equal(t, "files", cfg.Events.SubjectPrefix)
	assert.Equal(t, "127.0.0.1:9640", cfg.Admin.Listen)
	assert.Equal(t, "sekrit", cfg.Admin.AuthSecret)
	assert.Equal(t, "5m", cfg.Sweeper.Interval)
	assert.True(t, cfg.Sweeper.OrphanScan)

	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	// Minimal config with only the shared storage fields
	content := `
storage:
  endpoint: s3.example.com
  access_key: AK
  secret_key: SK
  hot_bucket: hot
  cold_bucket: cold
`
	configPath := testutil.TempFile(t, dir, "coldkeep.yaml", content)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Check defaults
	assert.Equal(t, "4h0m0s", cfg.Advanced.PresignExpiry)
	assert.Equal(t, "hot", cfg.Advanced.DefaultTier)
	assert.Equal(t, "private", cfg.Advanced.DefaultVisibility)
	assert.Equal(t, "memory", cfg.Metadata.Backend)
	assert.Equal(t, "coldkeep", cfg.Events.SubjectPrefix)
	assert.Equal(t, "15m0s", cfg.Sweeper.Interval)

	assert.Equal(t, 4*time.Hour, cfg.PresignTTL())
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval())
	assert.Equal(t, tier.Hot, cfg.DefaultTier())
	assert.Equal(t, tier.Private, cfg.DefaultVisibility())
	assert.Equal(t, int64(0), cfg.MaxFileSize())

	require.NoError(t, cfg.Validate())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/coldkeep.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	content := `
storage: [invalid yaml
`
	configPath := testutil.TempFile(t, dir, "coldkeep.yaml", content)

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing storage",
			modify:  func(c *Config) { c.Storage = StorageConfig{} },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: true,
			errMsg:  "log_level",
		},
		{
			name:    "valid log level",
			modify:  func(c *Config) { c.LogLevel = "warn" },
			wantErr: false,
		},
		{
			name:    "invalid presign expiry",
			modify:  func(c *Config) { c.Advanced.PresignExpiry = "4 hours" },
			wantErr: true,
			errMsg:  "presign_expiry",
		},
		{
			name:    "negative presign expiry",
			modify:  func(c *Config) { c.Advanced.PresignExpiry = "-1h" },
			wantErr: true,
		},
		{
			name:    "invalid default tier",
			modify:  func(c *Config) { c.Advanced.DefaultTier = "warm" },
			wantErr: true,
			errMsg:  "default_tier",
		},
		{
			name:    "invalid default visibility",
			modify:  func(c *Config) { c.Advanced.DefaultVisibility = "shared" },
			wantErr: true,
			errMsg:  "default_visibility",
		},
		{
			name:    "unknown metadata backend",
			modify:  func(c *Config) { c.Metadata.Backend = "etcd" },
			wantErr: true,
			errMsg:  "metadata.backend",
		},
		{
			name:    "redis backend without url",
			modify:  func(c *Config) { c.Metadata.Backend = "redis" },
			wantErr: true,
			errMsg:  "metadata.url",
		},
		{
			name: "postgres backend with url",
			modify: func(c *Config) {
				c.Metadata.Backend = "postgres"
				c.Metadata.URL = "postgres://localhost/coldkeep"
			},
			wantErr: false,
		},
		{
			name:    "negative cache size",
			modify:  func(c *Config) { c.Metadata.CacheSize = -1 },
			wantErr: true,
		},
		{
			name:    "admin listen without secret",
			modify:  func(c *Config) { c.Admin.Listen = "127.0.0.1:9640" },
			wantErr: true,
			errMsg:  "auth_secret",
		},
		{
			name: "admin listen with secret",
			modify: func(c *Config) {
				c.Admin.Listen = "127.0.0.1:9640"
				c.Admin.AuthSecret = "sekrit"
			},
			wantErr: false,
		},
		{
			name:    "invalid sweeper interval",
			modify:  func(c *Config) { c.Sweeper.Interval = "often" },
			wantErr: true,
			errMsg:  "sweeper.interval",
		},
		{
			name:    "zero sweeper interval disables",
			modify:  func(c *Config) { c.Sweeper.Interval = "0" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SweepInterval_ZeroDisables(t *testing.T) {
	cfg := validConfig()
	cfg.Sweeper.Interval = "0"
	assert.Equal(t, time.Duration(0), cfg.SweepInterval())
}

func TestConfig_Accessors_FallBackOnGarbage(t *testing.T) {
	// Accessors are resilient even if Validate was skipped.
	cfg := validConfig()
	cfg.Advanced.PresignExpiry = "bogus"
	cfg.Advanced.DefaultTier = "bogus"
	cfg.Advanced.DefaultVisibility = "bogus"
	cfg.Sweeper.Interval = "bogus"

	assert.Equal(t, DefaultPresignExpiry, cfg.PresignTTL())
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval())
	assert.Equal(t, tier.Hot, cfg.DefaultTier())
	assert.Equal(t, tier.Private, cfg.DefaultVisibility())
}

func TestApplyLogLevel(t *testing.T) {
	// Save original level to restore after test
	originalLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(originalLevel)

	tests := []struct {
		name          string
		level         string
		expectApplied bool
		expectLevel   zerolog.Level
	}{
		{
			name:          "empty level",
			level:         "",
			expectApplied: false,
		},
		{
			name:          "debug level",
			level:         "debug",
			expectApplied: true,
			expectLevel:   zerolog.DebugLevel,
		},
		{
			name:          "info level",
			level:         "info",
			expectApplied: true,
			expectLevel:   zerolog.InfoLevel,
		},
		{
			name:          "warn level",
			level:         "warn",
			expectApplied: true,
			expectLevel:   zerolog.WarnLevel,
		},
		{
			name:          "invalid level",
			level:         "loud",
			expectApplied: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset to known state before each test
			zerolog.SetGlobalLevel(zerolog.InfoLevel)

			applied := ApplyLogLevel(tt.level)
			assert.Equal(t, tt.expectApplied, applied)

			if tt.expectApplied {
				assert.Equal(t, tt.expectLevel, zerolog.GlobalLevel())
			}
		})
	}
}
