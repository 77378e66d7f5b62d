package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Chart      ChartConfig      `yaml:"chart" mapstructure:"chart"`
	Ephemeris  EphemerisConfig  `yaml:"ephemeris" mapstructure:"ephemeris"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ChartConfig holds calculation defaults.
type ChartConfig struct {
	HouseSystem string `yaml:"house_system" mapstructure:"house_system"`
	AspectSet   string `yaml:"aspect_set" mapstructure:"aspect_set"` // "major" or "extended"
	// Bodies lists the tracked bodies by name; empty means all of them.
	Bodies []string `yaml:"bodies" mapstructure:"bodies"`
	// AllowApproximateTimezone lets a place without a timezone fall back to
	// the longitude-based offset instead of failing.
	AllowApproximateTimezone bool `yaml:"allow_approximate_timezone" mapstructure:"allow_approximate_timezone"`
}

// EphemerisConfig configures the position provider chain. It is read once
// when the chain is built.
type EphemerisConfig struct {
	DataDir   string   `yaml:"data_dir" mapstructure:"data_dir"`     // VSOP87 files
	Layers    []string `yaml:"layers" mapstructure:"layers"`         // tried in order; synthetic is always last
	SourceURL string   `yaml:"source_url" mapstructure:"source_url"` // where `natal ephemeris fetch` downloads from
}

// GeocodeConfig configures place resolution.
type GeocodeConfig struct {
	GoogleAPIKey  string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	GazetteerPath string  `yaml:"gazetteer_path" mapstructure:"gazetteer_path"`
	CacheEnabled  bool    `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheTTLDays  int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// CacheTTL returns the cache TTL as a duration.
func (g GeocodeConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLDays) * 24 * time.Hour
}

// StoreConfig selects the location cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ResilienceConfig configures the circuit breaker around remote geocoding.
type ResilienceConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures degradation alerting in serve mode.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	// DegradedRateThreshold is the share of charts computed by a fallback
	// layer above which an alert fires.
	DegradedRateThreshold float64 `yaml:"degraded_rate_threshold" mapstructure:"degraded_rate_threshold"`
	// MinCharts is the number of charts needed in a window before rates are
	// evaluated.
	MinCharts int `yaml:"min_charts" mapstructure:"min_charts"`
}

// BatchConfig configures `natal batch`.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
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
	v.SetEnvPrefix("NATAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("chart.house_system", "P")
	v.SetDefault("chart.aspect_set", "major")
	v.SetDefault("chart.bodies", []string{})
	v.SetDefault("chart.allow_approximate_timezone", true)
	v.SetDefault("ephemeris.data_dir", "")
	v.SetDefault("ephemeris.layers", []string{"vsop87", "analytic"})
	v.SetDefault("ephemeris.source_url", "ftp://ftp.imcce.fr/pub/ephem/planets/vsop87")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.gazetteer_path", "")
	v.SetDefault("geocode.cache_enabled", false)
	v.SetDefault("geocode.cache_ttl_days", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "natal-cache.db")
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.degraded_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_charts", 20)
	v.SetDefault("batch.concurrency", 4)
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
