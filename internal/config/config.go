package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Storage StorageConfig `yaml:"storage" envconfig:"STORAGE"`
	Import  ImportConfig  `yaml:"import" envconfig:"IMPORT"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"console"`
}

// StorageConfig contains SQLite storage configuration
type StorageConfig struct {
	Path string `yaml:"path" envconfig:"PATH" default:"data/sellerpulse.db"`
}

// ImportConfig contains spreadsheet import configuration
type ImportConfig struct {
	FetchTimeout   time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"30s"`
	MaxHeaderScan  int           `yaml:"max_header_scan" envconfig:"MAX_HEADER_SCAN" default:"15"`
	MinHeaderCells int           `yaml:"min_header_cells" envconfig:"MIN_HEADER_CELLS" default:"11"`
	MinDateCells   int           `yaml:"min_date_cells" envconfig:"MIN_DATE_CELLS" default:"6"`
	DecemberYear   int           `yaml:"december_year" envconfig:"DECEMBER_YEAR" default:"2025"`
	DefaultYear    int           `yaml:"default_year" envconfig:"DEFAULT_YEAR" default:"2026"`
	HistoryLimit   int           `yaml:"history_limit" envconfig:"HISTORY_LIMIT" default:"60"`
}

// CatalogConfig lists the products the dashboard tracks
type CatalogConfig struct {
	Products []Product `yaml:"products"`
}

// Product describes one tracked product and where its data comes from
type Product struct {
	// ID is the seller-platform product identifier used to match
	// workbook rows.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Table is the SQLite table holding the product's daily history.
	Table string `yaml:"table"`
	// PublishURL is an optional publish-to-web CSV link for auto import.
	PublishURL string `yaml:"publish_url"`
	// FilterPack restricts category extraction to one pack variant.
	FilterPack string `yaml:"filter_pack"`
}

// DefaultCatalog returns the built-in product catalog. Publish URLs are
// deployment specific and come from the YAML config file.
func DefaultCatalog() CatalogConfig {
	return CatalogConfig{
		Products: []Product{
			{ID: "1729597548586176631", Name: "Toner Pads 1 Pack", Table: "toner_1pack_daily", FilterPack: "1 Pack"},
			{ID: "1731190899772395639", Name: "Toner Pads 2 Pack", Table: "toner_2pack_daily"},
			{ID: "1731857251405893751", Name: "Toner Pads 3 Pack", Table: "toner_3pack_daily"},
			{ID: "1731931607460515959", Name: "NAD+ Cream", Table: "nad_cream_daily"},
			{ID: "1732136029558182007", Name: "Toner & NAD+ Bundle", Table: "toner_nad_bundle_daily"},
		},
	}
}

// Load loads configuration from environment variables and an optional YAML
// file. Environment variables take precedence over file values.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = *fileCfg
		}
	}

	if err := envconfig.Process("SELLERPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if len(cfg.Catalog.Products) == 0 {
		cfg.Catalog = DefaultCatalog()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the configuration for invalid values
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path must not be empty")
	}

	seen := make(map[string]bool)
	for _, p := range c.Catalog.Products {
		if p.Name == "" {
			return fmt.Errorf("catalog product with empty name")
		}
		if p.Table == "" {
			return fmt.Errorf("catalog product %q has no table", p.Name)
		}
		if seen[p.Table] {
			return fmt.Errorf("catalog table %q assigned to more than one product", p.Table)
		}
		seen[p.Table] = true
	}

	return nil
}

// ProductByName finds a catalog product by display name
func (c *CatalogConfig) ProductByName(name string) (Product, bool) {
	for _, p := range c.Products {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}

// Tables returns every catalog product table name
func (c *CatalogConfig) Tables() []string {
	tables := make([]string, 0, len(c.Products))
	for _, p := range c.Products {
		tables = append(tables, p.Table)
	}
	return tables
}
