// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreLocal    = "local"
	StorePostgres = "postgres"
)

// Browser modes.
const (
	BrowserChromedp = "chromedp"
	BrowserStatic   = "static"
)

// Export backends.
const (
	ExportNone   = "none"
	ExportMemory = "memory"
	ExportLocal  = "local"
	ExportGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig        `mapstructure:"server"`
	Auth    AuthConfig          `mapstructure:"auth"`
	Logging LoggingConfig       `mapstructure:"logging"`
	Site    crawler.SiteProfile `mapstructure:"site"`
	Timing  crawler.Timing      `mapstructure:"timing"`
	Session SessionConfig       `mapstructure:"session"`
	Store   StoreConfig         `mapstructure:"store"`
	Browser BrowserConfig       `mapstructure:"browser"`
	Export  ExportConfig        `mapstructure:"export"`
	PubSub  PubSubConfig        `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SessionConfig names the persisted session and its automatic transitions.
type SessionConfig struct {
	Name         string `mapstructure:"name"`
	AutoNavigate bool   `mapstructure:"auto_navigate"`
	AutoExport   bool   `mapstructure:"auto_export"`
}

// StoreConfig selects the process-state backend.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// BrowserConfig selects and tunes the page driver.
type BrowserConfig struct {
	Mode              string `mapstructure:"mode"`
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	ShowWindow        bool   `mapstructure:"show_window"`
}

// ExportConfig sets where export files are written.
type ExportConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
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
	site := crawler.DefaultSiteProfile()
	timing := crawler.DefaultTiming()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("site.start_url", "https://www.bottle-stop.com.au/collections/all")
	v.SetDefault("site.listing_pattern", site.ListingPattern)
	v.SetDefault("site.product_pattern", site.ProductPattern)
	v.SetDefault("site.card_selector", site.CardSelector)
	v.SetDefault("site.card_link", site.CardLink)
	v.SetDefault("site.next_page", site.NextPage)
	v.SetDefault("site.spec_table", site.SpecTable)
	v.SetDefault("site.title_selectors", site.TitleSelectors)
	v.SetDefault("site.description", site.Description)
	v.SetDefault("site.image", site.Image)
	v.SetDefault("site.review_badge", site.ReviewBadge)
	v.SetDefault("site.add_to_cart", site.AddToCart)
	v.SetDefault("site.variant_data", site.VariantData)
	v.SetDefault("site.variant_picker", site.VariantPicker)
	v.SetDefault("site.regular_price", site.RegularPrice)
	v.SetDefault("site.sale_price", site.SalePrice)
	v.SetDefault("timing.settle", timing.Settle)
	v.SetDefault("timing.click", timing.Click)
	v.SetDefault("timing.dwell", timing.Dwell)
	v.SetDefault("session.name", "catalog")
	v.SetDefault("session.auto_navigate", true)
	v.SetDefault("session.auto_export", false)
	v.SetDefault("store.backend", StoreLocal)
	v.SetDefault("store.dir", "state")
	v.SetDefault("store.table", "process_state")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("browser.mode", BrowserChromedp)
	v.SetDefault("browser.user_agent", "catalog-crawler/0.1")
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("export.backend", ExportLocal)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.prefix", "exports")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Timing.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Session.Name) == "" {
		return fmt.Errorf("session.name must be set")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreLocal:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir must be set for the local backend")
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	switch c.Browser.Mode {
	case BrowserChromedp, BrowserStatic:
	default:
		return fmt.Errorf("browser.mode %q is not supported", c.Browser.Mode)
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	switch c.Export.Backend {
	case ExportNone, ExportMemory:
	case ExportLocal:
		if c.Export.Dir == "" {
			return fmt.Errorf("export.dir must be set for the local backend")
		}
	case ExportGCS:
		if c.Export.GCSBucket == "" {
			return fmt.Errorf("export.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("export.backend %q is not supported", c.Export.Backend)
	}
	if c.Session.AutoExport && c.Export.Backend == ExportNone {
		return fmt.Errorf("session.auto_export requires an export backend")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// RequestTimeout bounds one HTTP API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// NavigationTimeout bounds one browser navigation or click.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}
