// Package config resolves the reactord Config struct from layered
// sources — defaults, a config file, environment variables, and CLI
// flags — using viper, per spec §4.I.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yourusername/reactord/internal/rerrors"
)

// Config is the full set of options named in spec §6's "Configuration
// (recognized options)" paragraph, plus the ambient additions (log
// level, metrics) spec §4.I/§4.L introduce.
type Config struct {
	IP                  string `mapstructure:"ip"`
	Port                int    `mapstructure:"port"`
	MaxThreads          int    `mapstructure:"max_threads"`
	BacklogSize         int    `mapstructure:"backlog_size"`
	ConnectionTimeoutMs int64  `mapstructure:"connection_timeout_ms"`
	MaxBodySize         uint64 `mapstructure:"max_body_size"`
	MaxRequestSize      int    `mapstructure:"max_request_size"`
	MaxResponseSize     int    `mapstructure:"max_response_size"`
	ReusePort           bool   `mapstructure:"reuseport"`

	LogLevel string `mapstructure:"log_level"`

	EnableMetrics bool   `mapstructure:"enable_metrics"`
	MetricsPath   string `mapstructure:"metrics_path"`

	ConfigFile string `mapstructure:"-"`
}

// ConnectionTimeout converts the configured millisecond threshold into
// a time.Duration, consulted by the IdleReaper (spec §4.H).
func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMs) * time.Millisecond
}

const envPrefix = "REACTORD"

// defaults mirrors the teacher's NewBaseServer "apply defaults" block,
// adapted to this server's option set.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ip", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("max_threads", runtime.NumCPU())
	v.SetDefault("backlog_size", 1024)
	v.SetDefault("connection_timeout_ms", 60000)
	v.SetDefault("max_body_size", uint64(8<<10))
	v.SetDefault("max_request_size", 16384)
	v.SetDefault("max_response_size", 16384)
	v.SetDefault("reuseport", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("enable_metrics", false)
	v.SetDefault("metrics_path", "/metrics")
}

// Load resolves a Config in increasing priority: built-in defaults,
// then configFile (if non-empty), then REACTORD_-prefixed environment
// variables, then flags already bound to fs. A nil fs skips the flag
// layer (used by tests that only exercise file/env precedence).
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, rerrors.New(rerrors.KindConfig, "read config file", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, rerrors.New(rerrors.KindConfig, "bind flags", err)
		}
	}

	cfg := &Config{ConfigFile: configFile}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, rerrors.New(rerrors.KindConfig, "unmarshal", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies the bounds spec §4.I requires: a valid port range,
// max_threads clamped to hardware concurrency, and a rejection of
// max_body_size/max_request_size combinations that could never
// succeed (a body limit bigger than the buffer that must hold it).
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return rerrors.New(rerrors.KindConfig, "validate", fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = runtime.NumCPU()
	}
	if n := runtime.NumCPU(); c.MaxThreads > n {
		c.MaxThreads = n
	}
	if c.MaxRequestSize <= 0 {
		return rerrors.New(rerrors.KindConfig, "validate", fmt.Errorf("max_request_size must be positive"))
	}
	if c.MaxResponseSize <= 0 {
		return rerrors.New(rerrors.KindConfig, "validate", fmt.Errorf("max_response_size must be positive"))
	}
	if c.MaxBodySize > uint64(c.MaxRequestSize) {
		return rerrors.New(rerrors.KindConfig, "validate",
			fmt.Errorf("max_body_size (%d) exceeds max_request_size (%d): no request could ever fit a body that large",
				c.MaxBodySize, c.MaxRequestSize))
	}
	return nil
}
