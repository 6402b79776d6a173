// Package config loads and validates ingestor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig identifies the org/site/ref triple the backfill targets.
type SiteConfig struct {
	Org  string `mapstructure:"org"`
	Name string `mapstructure:"name"`
	Ref  string `mapstructure:"ref"`
}

// AuthConfig carries the admin API token.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// AdminConfig configures access to the admin API.
type AdminConfig struct {
	URL                 string `mapstructure:"url"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
}

// PipelineConfig governs discovery and extraction behavior.
type PipelineConfig struct {
	Paths        []string `mapstructure:"paths"`
	Concurrency  int      `mapstructure:"concurrency"`
	FallbackUser string   `mapstructure:"fallback_user"`
}

// DeliveryConfig governs batch submission behavior.
type DeliveryConfig struct {
	BatchSize   int    `mapstructure:"batch_size"`
	DryRun      bool   `mapstructure:"dry_run"`
	Verify      bool   `mapstructure:"verify"`
	FailureFile string `mapstructure:"failure_file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps CLI flag names onto config keys so that explicitly set
// flags take precedence over file and environment values.
var flagKeys = map[string]string{
	"org":           "site.org",
	"site":          "site.name",
	"ref":           "site.ref",
	"admin-url":     "admin.url",
	"paths":         "pipeline.paths",
	"concurrency":   "pipeline.concurrency",
	"fallback-user": "pipeline.fallback_user",
	"batch-size":    "delivery.batch_size",
	"dry-run":       "delivery.dry_run",
	"verify":        "delivery.verify",
	"failure-file":  "delivery.failure_file",
}

// Load builds a Config from disk/environment/flags. An empty path skips the
// config file entirely and relies on defaults, environment variables, and
// whatever flags are bound.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDIALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

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
	// No real default; registering the key is what lets AutomaticEnv
	// populate MEDIALOG_AUTH_TOKEN through Unmarshal.
	v.SetDefault("auth.token", "")
	v.SetDefault("admin.url", "https://admin.hlx.page")
	v.SetDefault("admin.timeout_seconds", 30)
	v.SetDefault("admin.poll_interval_seconds", 2)
	v.SetDefault("pipeline.paths", []string{"/*"})
	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("delivery.batch_size", 10)
	v.SetDefault("delivery.failure_file", "media-log-failures.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.Org == "" {
		return fmt.Errorf("site.org must be set")
	}
	if c.Site.Name == "" {
		return fmt.Errorf("site.name must be set")
	}
	if c.Site.Ref == "" {
		return fmt.Errorf("site.ref must be set")
	}
	if c.Admin.URL == "" {
		return fmt.Errorf("admin.url must be set")
	}
	if c.Admin.TimeoutSeconds <= 0 {
		return fmt.Errorf("admin.timeout_seconds must be > 0")
	}
	if c.Admin.PollIntervalSeconds <= 0 {
		return fmt.Errorf("admin.poll_interval_seconds must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Delivery.BatchSize <= 0 {
		return fmt.Errorf("delivery.batch_size must be > 0")
	}
	if c.Delivery.FailureFile == "" {
		return fmt.Errorf("delivery.failure_file must be set")
	}
	return nil
}

// AdminTimeout converts the configured timeout into a duration.
func (c Config) AdminTimeout() time.Duration {
	return time.Duration(c.Admin.TimeoutSeconds) * time.Second
}

// PollInterval converts the configured poll interval into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Admin.PollIntervalSeconds) * time.Second
}
