package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AdminKey       string   `yaml:"admin_key" mapstructure:"admin_key"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// ImportConfig configures provider imports and hierarchy sync.
type ImportConfig struct {
	CSVPath         string `yaml:"csv_path" mapstructure:"csv_path"`
	GeoPath         string `yaml:"geo_path" mapstructure:"geo_path"`
	CheckpointPath  string `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
	ErrorCSVPath    string `yaml:"error_csv_path" mapstructure:"error_csv_path"`
	UploadDir       string `yaml:"upload_dir" mapstructure:"upload_dir"` // admin import paths must stay inside
	BatchSize       int    `yaml:"batch_size" mapstructure:"batch_size"`
	TempDir         string `yaml:"temp_dir" mapstructure:"temp_dir"`
	HTTPTimeoutSecs int    `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
}

// HTTPTimeout returns the source download timeout.
func (c ImportConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LIFELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.rate_limit_rps", 100.0/60.0)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("import.csv_path", "data/providers.csv")
	v.SetDefault("import.geo_path", "data/states_lgas.json")
	v.SetDefault("import.checkpoint_path", "data/import_checkpoint.json")
	v.SetDefault("import.error_csv_path", "data/import_errors.csv")
	v.SetDefault("import.upload_dir", "data/uploads")
	v.SetDefault("import.batch_size", 1000)
	v.SetDefault("import.temp_dir", "")
	v.SetDefault("import.http_timeout_secs", 60)

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

// Validate checks the keys a command needs. mode is one of "store" (any
// command touching the database), "import" or "serve"; the latter two imply
// "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store", "import", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
		if c.Store.MaxConns < 0 || c.Store.MinConns < 0 || (c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns) {
			errs = append(errs, "store.min_conns must be between 0 and store.max_conns")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the sqlite driver (a file path)")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}

	if mode == "import" {
		if c.Import.GeoPath == "" {
			errs = append(errs, "import.geo_path is required")
		}
		if c.Import.BatchSize < 1 {
			errs = append(errs, "import.batch_size must be >= 1")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.AdminKey == "" {
			errs = append(errs, "server.admin_key is required")
		}
		if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server.rate_limit_rps and server.rate_limit_burst must be positive")
		}
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger replaces the global zap logger. Every entry carries
// service=lifeline; JSON output uses ISO 8601 timestamps.
func InitLogger(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]any{"service": "lifeline"}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
