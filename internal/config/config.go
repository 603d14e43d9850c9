// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Watch   WatchConfig   `mapstructure:"watch"`
	Extract ExtractConfig `mapstructure:"extract"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	State   StateConfig   `mapstructure:"state"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WatchConfig governs the watch pass itself.
type WatchConfig struct {
	Sources         []string `mapstructure:"sources"`
	Keyword         string   `mapstructure:"keyword"`
	PostLimit       int      `mapstructure:"post_limit"`
	SnippetMaxChars int      `mapstructure:"snippet_max_chars"`
	NoMatchMinHours float64  `mapstructure:"no_match_min_hours"`
}

// ExtractConfig configures blob extraction.
type ExtractConfig struct {
	// Marker is the token preceding the data assignment inside page
	// scripts, and the window global name probed after render.
	Marker string `mapstructure:"marker"`
}

// FetchConfig configures the page fetch layer.
type FetchConfig struct {
	// Mode selects the fetcher: "headless" renders with a browser,
	// "static" downloads raw HTML.
	Mode              string  `mapstructure:"mode"`
	UserAgent         string  `mapstructure:"user_agent"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	DomainQPS         float64 `mapstructure:"domain_qps"`
}

// NotifyConfig holds the outbound channel endpoints. Any empty value
// disables that channel without error.
type NotifyConfig struct {
	MatchWebhookURL   string     `mapstructure:"match_webhook_url"`
	NoMatchWebhookURL string     `mapstructure:"no_match_webhook_url"`
	Mail              MailConfig `mapstructure:"mail"`
}

// MailConfig configures the optional secondary mail channel.
type MailConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	FromAddr   string   `mapstructure:"from_addr"`
	FromName   string   `mapstructure:"from_name"`
	Recipients []string `mapstructure:"recipients"`
}

// StateConfig locates the persisted notification state.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the optional metrics endpoint.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FEEDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch.post_limit", 25)
	v.SetDefault("watch.snippet_max_chars", 200)
	v.SetDefault("watch.no_match_min_hours", 24)
	v.SetDefault("extract.marker", "__INITIAL_DATA__")
	v.SetDefault("fetch.mode", "headless")
	v.SetDefault("fetch.user_agent", "feedwatch/1.0")
	v.SetDefault("fetch.nav_timeout_seconds", 45)
	v.SetDefault("fetch.max_parallel", 1)
	v.SetDefault("fetch.domain_qps", 0.5)
	v.SetDefault("state.path", "data/state.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Watch.Sources) == 0 {
		return fmt.Errorf("watch.sources must not be empty")
	}
	if c.Watch.PostLimit <= 0 {
		return fmt.Errorf("watch.post_limit must be > 0")
	}
	if c.Watch.NoMatchMinHours <= 0 {
		return fmt.Errorf("watch.no_match_min_hours must be > 0")
	}
	if c.Extract.Marker == "" {
		return fmt.Errorf("extract.marker must be set")
	}
	switch c.Fetch.Mode {
	case "headless", "static":
	default:
		return fmt.Errorf("fetch.mode must be headless or static, got %q", c.Fetch.Mode)
	}
	if c.Fetch.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.nav_timeout_seconds must be > 0")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path must be set")
	}
	return nil
}

// NavTimeout converts the fetch timeout config into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetch.NavTimeoutSeconds) * time.Second
}
