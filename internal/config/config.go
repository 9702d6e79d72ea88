package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store StoreConfig `yaml:"store" mapstructure:"store"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
	Edgar EdgarConfig `yaml:"edgar" mapstructure:"edgar"`
}

// EdgarConfig configures the EDGAR filings ingestion pipeline.
type EdgarConfig struct {
	DatabaseURL       string   `yaml:"database_url" mapstructure:"database_url"`
	TempDir           string   `yaml:"temp_dir" mapstructure:"temp_dir"`
	BaseURL           string   `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string   `yaml:"user_agent" mapstructure:"user_agent"`
	RequestInterval   string   `yaml:"request_interval" mapstructure:"request_interval"`
	Backoff           []string `yaml:"backoff" mapstructure:"backoff"`
	ClientType        string   `yaml:"client_type" mapstructure:"client_type"`
	DocumentPath      string   `yaml:"document_path" mapstructure:"document_path"`
	Deflate           bool     `yaml:"deflate" mapstructure:"deflate"`
	ExtractionURL     string   `yaml:"extraction_url" mapstructure:"extraction_url"`
	TemporalHostPort  string   `yaml:"temporal_host_port" mapstructure:"temporal_host_port"`
	TemporalTaskQueue string   `yaml:"temporal_task_queue" mapstructure:"temporal_task_queue"`

	S3    EdgarS3Config    `yaml:"s3" mapstructure:"s3"`
	Blob  EdgarBlobConfig  `yaml:"blob" mapstructure:"blob"`
	ADL   EdgarADLConfig   `yaml:"adl" mapstructure:"adl"`
	Local EdgarLocalConfig `yaml:"local" mapstructure:"local"`
}

// EdgarS3Config configures the S3 blob store backend.
type EdgarS3Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region" mapstructure:"region"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// EdgarBlobConfig configures the Azure Blob Storage backend.
type EdgarBlobConfig struct {
	ConnectionString string `yaml:"connection_string" mapstructure:"connection_string"`
	Container        string `yaml:"container" mapstructure:"container"`
}

// EdgarADLConfig configures the Azure Data Lake Storage backend.
type EdgarADLConfig struct {
	TenantID     string `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	Account      string `yaml:"account" mapstructure:"account"`
	FileSystem   string `yaml:"file_system" mapstructure:"file_system"`
}

// EdgarLocalConfig configures the local-filesystem blob store backend.
type EdgarLocalConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration fields based on run mode.
// Supported modes: "edgar".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "edgar":
		dbURL := c.Edgar.DatabaseURL
		if dbURL == "" {
			dbURL = c.Store.DatabaseURL
		}
		if dbURL == "" {
			errs = append(errs, "edgar.database_url (or store.database_url) is required")
		}
		switch c.Edgar.ClientType {
		case "S3", "Blob", "ADL", "Local":
		default:
			errs = append(errs, "edgar.client_type must be one of S3, Blob, ADL, Local")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EDGARCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("edgar.temp_dir", "/tmp/edgar")
	v.SetDefault("edgar.base_url", "https://www.sec.gov")
	v.SetDefault("edgar.user_agent", "edgarctl admin@example.com")
	v.SetDefault("edgar.request_interval", "100ms")
	v.SetDefault("edgar.backoff", []string{"1s", "2s", "4s", "8s", "16s"})
	v.SetDefault("edgar.client_type", "Local")
	v.SetDefault("edgar.document_path", "edgar/documents")
	v.SetDefault("edgar.deflate", true)
	v.SetDefault("edgar.local.root", "/tmp/edgar/store")
	v.SetDefault("edgar.temporal_task_queue", "edgar-ingestion")

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
