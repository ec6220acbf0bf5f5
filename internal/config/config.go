// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/lidarpcd/internal/core"
)

// EnvPrefix prefixes every environment override, e.g. LIDARPCD_LOG_LEVEL.
const EnvPrefix = "LIDARPCD"

// Config is the effective configuration of one extraction run.
type Config struct {
	Port             int           `mapstructure:"port" yaml:"port"`     // UDP destination port of the sensor stream
	Meta             string        `mapstructure:"meta" yaml:"meta"`     // calibration JSON
	Input            string        `mapstructure:"input" yaml:"input"`   // pcap or pcapng file
	Output           string        `mapstructure:"output" yaml:"output"` // directory for .pcd files
	Digits           int           `mapstructure:"digits" yaml:"digits"` // zero padding of file names
	ProgressInterval int           `mapstructure:"progress_interval" yaml:"progress_interval"`
	Filter           FilterConfig  `mapstructure:"filter" yaml:"filter"`
	Metrics          MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Log              LogConfig     `mapstructure:"log" yaml:"log"`
}

// FilterConfig narrows the frames handed to the decoder.
type FilterConfig struct {
	Host string `mapstructure:"host" yaml:"host"` // sensor IPv4 address, empty = any
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"`   // debug / info / warn / error
	Format  string           `mapstructure:"format" yaml:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"port":              "port",
	"meta":              "meta",
	"input":             "input",
	"output":            "output",
	"digits":            "digits",
	"progress_interval": "progress-interval",
	"filter.host":       "host",
	"log.level":         "log-level",
	"log.format":        "log-format",
	"metrics.enabled":   "metrics",
	"metrics.listen":    "metrics-listen",
}

// ─── Loading ───

// Load builds the configuration from, in increasing priority: defaults, the
// optional YAML file at path, LIDARPCD_* environment variables and flags
// that were set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("digits", 4)
	v.SetDefault("progress_interval", 100000)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.outputs.file.enabled", false)
	v.SetDefault("log.outputs.file.path", "lidarpcd.log")
	v.SetDefault("log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9091")
	v.SetDefault("metrics.path", "/metrics")

	// Required keys are registered empty so that env overrides reach Unmarshal.
	v.SetDefault("port", 0)
	for _, key := range []string{"meta", "input", "output", "filter.host"} {
		v.SetDefault(key, "")
	}
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", core.ErrConfigInvalid, cfg.Port)
	}
	if cfg.Meta == "" {
		return fmt.Errorf("%w: meta (calibration file) is required", core.ErrConfigInvalid)
	}
	if cfg.Input == "" {
		return fmt.Errorf("%w: input (capture file) is required", core.ErrConfigInvalid)
	}
	if cfg.Output == "" {
		return fmt.Errorf("%w: output directory is required", core.ErrConfigInvalid)
	}
	if cfg.Digits < 1 {
		return fmt.Errorf("%w: digits must be at least 1, got %d", core.ErrConfigInvalid, cfg.Digits)
	}
	if cfg.ProgressInterval < 0 {
		return fmt.Errorf("%w: progress_interval must not be negative", core.ErrConfigInvalid)
	}

	if cfg.Filter.Host != "" {
		addr, err := netip.ParseAddr(cfg.Filter.Host)
		if err != nil || !addr.Is4() {
			return fmt.Errorf("%w: filter.host %q is not an IPv4 address", core.ErrConfigInvalid, cfg.Filter.Host)
		}
	}

	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("%w: metrics.listen %q: %v", core.ErrConfigInvalid, cfg.Metrics.Listen, err)
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}

	return nil
}

// HostFilter returns the parsed filter.host, or the zero Addr when unset.
func (cfg *Config) HostFilter() netip.Addr {
	if cfg.Filter.Host == "" {
		return netip.Addr{}
	}
	addr, _ := netip.ParseAddr(cfg.Filter.Host)
	return addr
}
