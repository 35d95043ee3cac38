package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level"`
	JSONLog  bool   `mapstructure:"json_log"`

	// HTTP/Fetching
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Proxy          string        `mapstructure:"proxy"`
	Fingerprint    bool          `mapstructure:"fingerprint"`

	// Retry
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryMinDelay time.Duration `mapstructure:"retry_min_delay"`
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`

	// Pre-clear endpoint
	ClearBaseURL string        `mapstructure:"clear_base_url"`
	ClearTimeout time.Duration `mapstructure:"clear_timeout"`

	// Rate Limiting
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// Browser
	BrowserHeadless bool   `mapstructure:"browser_headless"`
	ChromePath      string `mapstructure:"chrome_path"`

	// Caching
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	CacheMaxSizeBytes int64         `mapstructure:"cache_max_size_bytes"`
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := flagString(cmd, "config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("scrape")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := applyFlags(cfg, cmd); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("json_log", DefaultJSONLog)
	v.SetDefault("attempt_timeout", DefaultAttemptTimeout)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("proxy", "")
	v.SetDefault("fingerprint", DefaultFingerprint)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("retry_min_delay", DefaultRetryMinDelay)
	v.SetDefault("retry_max_delay", DefaultRetryMaxDelay)
	v.SetDefault("clear_base_url", "")
	v.SetDefault("clear_timeout", DefaultClearTimeout)
	v.SetDefault("rate_limit_rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("browser_headless", DefaultBrowserHeadless)
	v.SetDefault("chrome_path", "")
	v.SetDefault("cache_ttl", DefaultCacheTTL)
	v.SetDefault("cache_max_size_bytes", DefaultCacheMaxSizeBytes)
}

func applyFlags(cfg *Config, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if s := flagString(cmd, "user-agent"); s != "" {
		cfg.UserAgent = s
	}
	if s := flagString(cmd, "proxy"); s != "" {
		cfg.Proxy = s
	}
	if s := flagString(cmd, "timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", s, err)
		}
		cfg.AttemptTimeout = d
	}
	if f := cmd.Flags().Lookup("retries"); f != nil && f.Changed {
		n, err := cmd.Flags().GetInt("retries")
		if err != nil {
			return err
		}
		cfg.MaxRetries = n
	}
	if flagBool(cmd, "json") {
		cfg.JSONLog = true
	}
	if flagBool(cmd, "verbose") {
		cfg.LogLevel = "debug"
	}
	if flagBool(cmd, "quiet") {
		cfg.LogLevel = "error"
	}
	return nil
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return strings.TrimSpace(f.Value.String())
	}
	return ""
}

func flagBool(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Value.String() == "true"
}
