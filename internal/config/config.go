package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	UploadMaxMB     int `yaml:"upload_max_mb" mapstructure:"upload_max_mb"`
	UploadPerMinute int `yaml:"upload_per_minute" mapstructure:"upload_per_minute"`
}

// IngestConfig configures workbook ingestion.
type IngestConfig struct {
	SheetIndex  int `yaml:"sheet_index" mapstructure:"sheet_index"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ReconcileConfig configures the reconciliation engine.
type ReconcileConfig struct {
	ToleranceDays     int      `yaml:"tolerance_days" mapstructure:"tolerance_days"`
	ScheduledServices []string `yaml:"scheduled_services" mapstructure:"scheduled_services"`
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
	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.upload_max_mb", 32)
	v.SetDefault("server.upload_per_minute", 30)
	v.SetDefault("ingest.sheet_index", 0)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("reconcile.tolerance_days", 3)
	v.SetDefault("reconcile.scheduled_services", []string{"LV", "FR", "PV", "CT", "DG"})

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
