// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/aptx/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `aptx:` root key in YAML.
type GlobalConfig struct {
	Codec   CodecConfig   `mapstructure:"codec" yaml:"codec"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Codec ───

// CodecConfig seeds the local aptX parameter set.
type CodecConfig struct {
	Variant             uint32 `mapstructure:"variant" yaml:"variant"`             // 0 = standard, nonzero = hd
	BitResolution       uint32 `mapstructure:"bitresolution" yaml:"bitresolution"` // 0 = derive from variant
	StrictBitResolution bool   `mapstructure:"strict_bitresolution" yaml:"strict_bitresolution"`
}

// AptxVariant implements aptx.ConfigSeed.
func (c CodecConfig) AptxVariant() uint32 { return c.Variant }

// AptxBitResolution implements aptx.ConfigSeed.
func (c CodecConfig) AptxBitResolution() uint32 { return c.BitResolution }

// ─── Session ───

// SessionConfig controls the offer/answer session layer.
type SessionConfig struct {
	TTL             string `mapstructure:"ttl" yaml:"ttl"`
	CleanupInterval string `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	LocalAddress    string `mapstructure:"local_address" yaml:"local_address"`
	RTPPort         int    `mapstructure:"rtp_port" yaml:"rtp_port"`
	PayloadType     uint8  `mapstructure:"payload_type" yaml:"payload_type"` // dynamic, 96-127

	ttl     time.Duration
	cleanup time.Duration
}

// SessionTTL returns the parsed session TTL.
func (s SessionConfig) SessionTTL() time.Duration { return s.ttl }

// Cleanup returns the parsed cleanup interval.
func (s SessionConfig) Cleanup() time.Duration { return s.cleanup }

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string        `mapstructure:"level" yaml:"level"`     // trace / debug / info / warn / error
	Pattern string        `mapstructure:"pattern" yaml:"pattern"` // %time %level %field %msg %caller %func %n
	Time    string        `mapstructure:"time" yaml:"time"`       // Go time layout
	File    FileLogConfig `mapstructure:"file" yaml:"file"`
}

// FileLogConfig configures the rotating file appender.
type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ─── Metrics ───

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"` // host:port
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `aptx: ...`.
type configRoot struct {
	Aptx GlobalConfig `mapstructure:"aptx" yaml:"aptx"`
}

// Load loads configuration from file. An empty path loads defaults only.
// Env vars use the APTX_ prefix (e.g. APTX_CODEC_VARIANT).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Aptx

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "aptx." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Codec defaults
	v.SetDefault("aptx.codec.variant", 0)
	v.SetDefault("aptx.codec.bitresolution", 0)
	v.SetDefault("aptx.codec.strict_bitresolution", false)

	// Session defaults
	v.SetDefault("aptx.session.ttl", "24h")
	v.SetDefault("aptx.session.cleanup_interval", "1h")
	v.SetDefault("aptx.session.local_address", "127.0.0.1")
	v.SetDefault("aptx.session.rtp_port", 5004)
	v.SetDefault("aptx.session.payload_type", 96)

	// Log defaults
	v.SetDefault("aptx.log.level", "info")
	v.SetDefault("aptx.log.pattern", "%time [%level] %field %msg%n")
	v.SetDefault("aptx.log.time", "2006-01-02 15:04:05")
	v.SetDefault("aptx.log.file.enabled", false)
	v.SetDefault("aptx.log.file.path", "/var/log/aptx/aptx.log")
	v.SetDefault("aptx.log.file.max_size_mb", 100)
	v.SetDefault("aptx.log.file.max_age_days", 30)
	v.SetDefault("aptx.log.file.max_backups", 5)
	v.SetDefault("aptx.log.file.compress", true)

	// Metrics defaults
	v.SetDefault("aptx.metrics.enabled", false)
	v.SetDefault("aptx.metrics.listen", "127.0.0.1:9091")
	v.SetDefault("aptx.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and resolves derived values.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Codec validation ──
	if br := cfg.Codec.BitResolution; br != 0 && br != 16 && br != 24 {
		return fmt.Errorf("%w: unsupported codec.bitresolution: %d (must be 0, 16 or 24)", core.ErrConfigInvalid, br)
	}

	// ── Session validation ──
	ttl, err := time.ParseDuration(cfg.Session.TTL)
	if err != nil || ttl <= 0 {
		return fmt.Errorf("%w: invalid session.ttl: %q", core.ErrConfigInvalid, cfg.Session.TTL)
	}
	cfg.Session.ttl = ttl

	cleanup, err := time.ParseDuration(cfg.Session.CleanupInterval)
	if err != nil || cleanup <= 0 {
		return fmt.Errorf("%w: invalid session.cleanup_interval: %q", core.ErrConfigInvalid, cfg.Session.CleanupInterval)
	}
	cfg.Session.cleanup = cleanup

	if _, err := netip.ParseAddr(cfg.Session.LocalAddress); err != nil {
		return fmt.Errorf("%w: invalid session.local_address: %q", core.ErrConfigInvalid, cfg.Session.LocalAddress)
	}
	if cfg.Session.RTPPort <= 0 || cfg.Session.RTPPort > 65535 {
		return fmt.Errorf("%w: invalid session.rtp_port: %d", core.ErrConfigInvalid, cfg.Session.RTPPort)
	}
	if cfg.Session.PayloadType < 96 || cfg.Session.PayloadType > 127 {
		return fmt.Errorf("%w: session.payload_type %d is not dynamic (96-127)", core.ErrConfigInvalid, cfg.Session.PayloadType)
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("%w: invalid metrics.listen: %q", core.ErrConfigInvalid, cfg.Metrics.Listen)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path must start with /: %q", core.ErrConfigInvalid, cfg.Metrics.Path)
		}
	}

	return nil
}
