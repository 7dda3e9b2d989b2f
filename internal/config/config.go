package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/fred-refresh/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Fred    FredConfig    `yaml:"fred" mapstructure:"fred"`
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Schema  SchemaConfig  `yaml:"schema" mapstructure:"schema"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// FredConfig configures the FRED API client.
type FredConfig struct {
	APIKey       string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	MinInterval  time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// RefreshConfig configures a refresh run.
type RefreshConfig struct {
	WindowStart string        `yaml:"window_start" mapstructure:"window_start"`
	MetricPause time.Duration `yaml:"metric_pause" mapstructure:"metric_pause"`
	EnvFiles    []string      `yaml:"env_files" mapstructure:"env_files"`
}

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SchemaConfig locates the metric schema file.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FRED_REFRESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The API key keeps its conventional name.
	if err := v.BindEnv("fred.api_key", "FRED_REFRESH_FRED_API_KEY", "FRED_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("fred.api_key", "")
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")
	v.SetDefault("fred.min_interval", "100ms")
	v.SetDefault("fred.timeout", "30s")
	v.SetDefault("fred.max_attempts", 3)
	v.SetDefault("fred.retry_backoff", "500ms")
	v.SetDefault("refresh.window_start", "2024-01-01")
	v.SetDefault("refresh.metric_pause", "200ms")
	v.SetDefault("refresh.env_files", []string{".env", "../.env"})
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.path", "../data/fred_data.csv")
	v.SetDefault("store.database_url", "")
	v.SetDefault("schema.path", "../schema.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigurationError{Reason: "read config file", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Reason: "decode config", Err: err}
	}

	return &cfg, nil
}

var validDrivers = map[string]bool{"csv": true, "sqlite": true, "postgres": true}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	if !validDrivers[c.Store.Driver] {
		return &ConfigurationError{Reason: "store.driver must be one of csv, sqlite, postgres, got " + c.Store.Driver}
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return &ConfigurationError{Reason: "store.database_url is required for the postgres driver"}
	}
	if c.Store.Driver != "postgres" && c.Store.Path == "" {
		return &ConfigurationError{Reason: "store.path is required for the " + c.Store.Driver + " driver"}
	}
	if _, err := c.WindowStartDate(); err != nil {
		return err
	}
	if c.Fred.MinInterval < 0 || c.Fred.Timeout < 0 || c.Refresh.MetricPause < 0 {
		return &ConfigurationError{Reason: "durations must not be negative"}
	}
	if c.Fred.MaxAttempts < 1 {
		return &ConfigurationError{Reason: "fred.max_attempts must be at least 1"}
	}
	return nil
}

// WindowStartDate parses refresh.window_start.
func (c *Config) WindowStartDate() (time.Time, error) {
	d, err := model.ParseDate(c.Refresh.WindowStart)
	if err != nil {
		return time.Time{}, &ConfigurationError{Reason: "refresh.window_start", Err: err}
	}
	return d, nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, logs
// are written there as well as to stderr.
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

	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
