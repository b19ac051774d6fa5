package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/address-scraper/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	ScrapingDog ScrapingDogConfig `yaml:"scrapingdog" mapstructure:"scrapingdog"`
	Geocode     GeocodeConfig     `yaml:"geocode" mapstructure:"geocode"`
	Postal      PostalConfig      `yaml:"postal" mapstructure:"postal"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// ScrapingDogConfig holds scraping API credentials and limits.
type ScrapingDogConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Premium   bool    `yaml:"premium" mapstructure:"premium"`
	Dynamic   bool    `yaml:"dynamic" mapstructure:"dynamic"`
}

// GeocodeConfig holds OpenWeatherMap geocoding settings. An empty key
// disables enrichment.
type GeocodeConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// PostalConfig points at the libpostal REST service.
type PostalConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures fetch limits, retries and normalization.
type PipelineConfig struct {
	Concurrency          int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries           int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestTimeoutSecs   int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	DeadlineSecs         int     `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	NormalizeConcurrency int     `yaml:"normalize_concurrency" mapstructure:"normalize_concurrency"`
	InitialBackoffMs     int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs         int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	LinearBackoffMs      int     `yaml:"linear_backoff_ms" mapstructure:"linear_backoff_ms"`
	BackoffMultiplier    float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	BackoffJitter        float64 `yaml:"backoff_jitter" mapstructure:"backoff_jitter"`
	CanonicalPolicy      string  `yaml:"canonical_policy" mapstructure:"canonical_policy"`
	DefaultViewport      string  `yaml:"default_viewport" mapstructure:"default_viewport"`
	MaxPages             int     `yaml:"max_pages" mapstructure:"max_pages"`
	MaxWebsites          int     `yaml:"max_websites" mapstructure:"max_websites"`
}

// RequestTimeout returns the per-request timeout.
func (p PipelineConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSecs) * time.Second
}

// Deadline returns the overall run deadline.
func (p PipelineConfig) Deadline() time.Duration {
	return time.Duration(p.DeadlineSecs) * time.Second
}

// Backoff builds the retry schedule from the configured values.
func (p PipelineConfig) Backoff() resilience.BackoffPolicy {
	return resilience.FromBackoffConfig(p.InitialBackoffMs, p.MaxBackoffMs, p.LinearBackoffMs, p.BackoffMultiplier, p.BackoffJitter)
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADDRSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets get empty defaults so AutomaticEnv can bind them.
	v.SetDefault("scrapingdog.key", "")
	v.SetDefault("scrapingdog.base_url", "https://api.scrapingdog.com")
	v.SetDefault("scrapingdog.rate_limit", 5.0)
	v.SetDefault("scrapingdog.premium", true)
	v.SetDefault("scrapingdog.dynamic", true)
	v.SetDefault("geocode.key", "")
	v.SetDefault("geocode.base_url", "https://api.openweathermap.org")
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("geocode.concurrency", 4)
	v.SetDefault("geocode.cache_ttl_days", 30)
	v.SetDefault("postal.base_url", "http://localhost:4400")
	v.SetDefault("postal.timeout_secs", 10)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.request_timeout_secs", 100)
	v.SetDefault("pipeline.deadline_secs", 300)
	v.SetDefault("pipeline.normalize_concurrency", 8)
	v.SetDefault("pipeline.initial_backoff_ms", 500)
	v.SetDefault("pipeline.max_backoff_ms", 30000)
	v.SetDefault("pipeline.linear_backoff_ms", 1000)
	v.SetDefault("pipeline.backoff_multiplier", 2.0)
	v.SetDefault("pipeline.backoff_jitter", 0.25)
	v.SetDefault("pipeline.canonical_policy", "shortest")
	v.SetDefault("pipeline.default_viewport", "@4.2105,101.9758,15z")
	v.SetDefault("pipeline.max_pages", 10)
	v.SetDefault("pipeline.max_websites", 20)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "address-scraper.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it starts. mode is
// one of "pipeline" (run/serve) or "store" (runs/migrate).
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(msg string) { problems = append(problems, msg) }

	switch c.Store.Driver {
	case "sqlite", "postgres":
	case "":
		add("store.driver is required")
	default:
		add("store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		add("store.database_url is required for postgres")
	}

	if mode == "pipeline" || mode == "serve" {
		if c.ScrapingDog.Key == "" {
			add("scrapingdog.key is required")
		}
		if c.Postal.BaseURL == "" {
			add("postal.base_url is required")
		}
		if c.Pipeline.Concurrency < 1 {
			add("pipeline.concurrency must be at least 1")
		}
		if c.Pipeline.NormalizeConcurrency < 1 {
			add("pipeline.normalize_concurrency must be at least 1")
		}
		if c.Pipeline.MaxRetries < 0 {
			add("pipeline.max_retries must not be negative")
		}
		if c.Pipeline.RequestTimeoutSecs <= 0 {
			add("pipeline.request_timeout_secs must be positive")
		}
		if c.Pipeline.DeadlineSecs <= 0 {
			add("pipeline.deadline_secs must be positive")
		}
		switch c.Pipeline.CanonicalPolicy {
		case "shortest", "first":
		default:
			add("pipeline.canonical_policy must be shortest or first")
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
