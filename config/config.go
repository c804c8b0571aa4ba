package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCatalogURL     = "https://raw.githubusercontent.com/WFCD/warframe-items/master/data/json/Mods.json"
	DefaultMarketItemsURL = "https://api.warframe.market/v1/items"
	DefaultMarketOrderURL = "https://api.warframe.market/v1/items/%s/orders"
	DefaultItemPageURL    = "https://warframe.market/items/"
)

type Config struct {
	ModScout ModScoutConfig `yaml:"modscout"`
	Source   SourceConfig   `yaml:"source"`
	Reader   ReaderConfig   `yaml:"reader"`
	Channels ChannelsConfig `yaml:"channels"`
	Web      WebConfig      `yaml:"web"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Aliases  AliasConfig    `yaml:"aliases"`
}

type ModScoutConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type SourceConfig struct {
	Catalog        CatalogSourceConfig  `yaml:"catalog"`
	Market         MarketSourceConfig   `yaml:"market"`
	UserAgent      string               `yaml:"user_agent"`
	SnapshotTTL    time.Duration        `yaml:"snapshot_ttl"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type CatalogSourceConfig struct {
	URL string `yaml:"url"`
}

type MarketSourceConfig struct {
	ItemsURL    string `yaml:"items_url"`
	OrdersURL   string `yaml:"orders_url"`
	ItemPageURL string `yaml:"item_page_url"`
	Platform    string `yaml:"platform"`
	Language    string `yaml:"language"`
}

// ItemPage returns the marketplace page for the item addressed by slug.
func (m MarketSourceConfig) ItemPage(slug string) string {
	if m.ItemPageURL == "" {
		return ""
	}
	return strings.TrimRight(m.ItemPageURL, "/") + "/" + url.PathEscape(slug)
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type ReaderConfig struct {
	MaxWorkers int             `yaml:"max_workers"`
	Timeout    time.Duration   `yaml:"timeout"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type ChannelsConfig struct {
	ResultBuffer int `yaml:"result_buffer"`
}

type WebConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`
	MaxQueryLength int    `yaml:"max_query_length"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		ModScout: ModScoutConfig{Name: "modscout", Version: "dev"},
		Source: SourceConfig{
			Catalog: CatalogSourceConfig{URL: DefaultCatalogURL},
			Market: MarketSourceConfig{
				ItemsURL:    DefaultMarketItemsURL,
				OrdersURL:   DefaultMarketOrderURL,
				ItemPageURL: DefaultItemPageURL,
				Platform:    "pc",
				Language:    "en",
			},
			UserAgent: "modscout/1.0",
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    16,
				MaxConnsPerHost: 8,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Reader: ReaderConfig{
			MaxWorkers: 4,
			Timeout:    10 * time.Second,
			RateLimit:  RateLimitConfig{RequestsPerSecond: 3, BurstSize: 3},
		},
		Channels: ChannelsConfig{ResultBuffer: 64},
		Web:      WebConfig{Address: ":5000", MaxQueryLength: 512},
		Metrics:  MetricsConfig{Prometheus: true, CloudWatch: CloudWatchConfig{Namespace: "ModScout"}},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Aliases:  AliasConfig{Locations: DefaultAliases()},
	}
}

// LoadConfig reads the YAML file at path on top of Default, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	overrides := map[string]*string{
		"MODSCOUT_CATALOG_URL":       &config.Source.Catalog.URL,
		"MODSCOUT_MARKET_ITEMS_URL":  &config.Source.Market.ItemsURL,
		"MODSCOUT_MARKET_ORDERS_URL": &config.Source.Market.OrdersURL,
		"MODSCOUT_WEB_ADDRESS":       &config.Web.Address,
	}
	for env, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*field = v
		}
	}

	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.ModScout.Name == "" {
		return fmt.Errorf("modscout.name is required")
	}

	if err := validateURL("source.catalog.url", cfg.Source.Catalog.URL); err != nil {
		return err
	}
	if err := validateURL("source.market.items_url", cfg.Source.Market.ItemsURL); err != nil {
		return err
	}
	if strings.Count(cfg.Source.Market.OrdersURL, "%s") != 1 {
		return fmt.Errorf("source.market.orders_url must contain exactly one %%s placeholder for the item slug")
	}
	if err := validateURL("source.market.orders_url", strings.Replace(cfg.Source.Market.OrdersURL, "%s", "slug", 1)); err != nil {
		return err
	}
	if cfg.Source.SnapshotTTL < 0 {
		return fmt.Errorf("source.snapshot_ttl must not be negative")
	}

	if cfg.Reader.MaxWorkers <= 0 {
		return fmt.Errorf("reader.max_workers must be greater than 0")
	}
	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}
	if cfg.Reader.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("reader.rate_limit.requests_per_second must not be negative")
	}

	if cfg.Channels.ResultBuffer <= 0 {
		return fmt.Errorf("channels.result_buffer must be greater than 0")
	}

	if cfg.Web.Enabled && strings.TrimSpace(cfg.Web.Address) == "" {
		return fmt.Errorf("web.address is required when web is enabled")
	}

	if err := cfg.Aliases.validate(); err != nil {
		return err
	}

	return nil
}

func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%s '%s' is not a valid http(s) url", field, raw)
	}
	return nil
}
