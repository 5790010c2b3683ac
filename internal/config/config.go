// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Store() StoreConfig
	SPARQL() SPARQLConfig
	KAO() KAOConfig
	Metrics() MetricsConfig

	SetStoreBackend(backend string)
	SetKAODefaultContexts(contexts []string)
}

// Config holds the entire application configuration.
// Fields are exported for viper, access goes through the Interface getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	StoreCfg   StoreConfig   `mapstructure:"store" yaml:"store"`
	SPARQLCfg  SPARQLConfig  `mapstructure:"sparql" yaml:"sparql"`
	KAOCfg     KAOConfig     `mapstructure:"kao" yaml:"kao"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Store() StoreConfig     { return c.StoreCfg }
func (c *Config) SPARQL() SPARQLConfig   { return c.SPARQLCfg }
func (c *Config) KAO() KAOConfig         { return c.KAOCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetStoreBackend(backend string) { c.StoreCfg.Backend = backend }
func (c *Config) SetKAODefaultContexts(contexts []string) {
	c.KAOCfg.DefaultContexts = append([]string(nil), contexts...)
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	Format      string      `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size" validate:"gte=0"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// StoreConfig selects and configures the statement store behind the repository.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend" validate:"required,oneof=memory postgres"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Memory   MemoryConfig   `mapstructure:"memory" yaml:"memory"`
}

// PostgresConfig holds the connection details for the PostgreSQL statement store.
type PostgresConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns" validate:"gte=0"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns" validate:"gte=0"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" validate:"gte=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime" validate:"gte=0"`
}

// MemoryConfig configures the in-process statement store.
type MemoryConfig struct {
	// MaxConnections bounds simultaneously open connections. Zero means unbounded.
	MaxConnections int64 `mapstructure:"max_connections" yaml:"max_connections" validate:"gte=0"`
}

// SPARQLConfig points the query runner at a SPARQL 1.1 protocol endpoint.
type SPARQLConfig struct {
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	UpdateEndpoint string        `mapstructure:"update_endpoint" yaml:"update_endpoint" validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	// RateLimit is requests per second. Zero disables throttling.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
	// HTTP2 negotiates HTTP/2 with the endpoint when it offers it.
	HTTP2              bool `mapstructure:"http2" yaml:"http2"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	MaxIdleConns       int  `mapstructure:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`
}

// KAOConfig holds defaults applied to every access object.
type KAOConfig struct {
	DefaultContexts  []string `mapstructure:"default_contexts" yaml:"default_contexts"`
	UniqueIDAttempts int      `mapstructure:"unique_id_attempts" yaml:"unique_id_attempts" validate:"gte=1"`
}

// MetricsConfig toggles the prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kao")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Store --
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.postgres.url", "")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.connect_timeout", "10s")
	v.SetDefault("store.postgres.max_conn_lifetime", "1h")
	v.SetDefault("store.memory.max_connections", 0)

	// -- SPARQL --
	v.SetDefault("sparql.endpoint", "")
	v.SetDefault("sparql.update_endpoint", "")
	v.SetDefault("sparql.timeout", "30s")
	v.SetDefault("sparql.rate_limit", 0.0)
	v.SetDefault("sparql.burst", 1)
	v.SetDefault("sparql.http2", true)
	v.SetDefault("sparql.insecure_skip_verify", false)
	v.SetDefault("sparql.max_idle_conns", 16)

	// -- KAO --
	v.SetDefault("kao.default_contexts", []string{})
	v.SetDefault("kao.unique_id_attempts", 10)

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "kao")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The connection string carries credentials; keep it out of config files.
	if err := v.BindEnv("store.postgres.url", "KAO_STORE_POSTGRES_URL"); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LoggerCfg.LogFile != "" {
		expanded, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("error expanding logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if c.SPARQLCfg.RateLimit > 0 && c.SPARQLCfg.Burst <= 0 {
		return fmt.Errorf("sparql.burst must be positive when sparql.rate_limit is set")
	}
	return nil
}

// Validate checks the cross-field rules of the store section.
func (s *StoreConfig) Validate() error {
	if s.Backend != BackendPostgres {
		return nil
	}
	if s.Postgres.URL == "" {
		return fmt.Errorf("store.postgres.url is required for the postgres backend. Ensure KAO_STORE_POSTGRES_URL is set")
	}
	if s.Postgres.MaxConns > 0 && s.Postgres.MinConns > s.Postgres.MaxConns {
		return fmt.Errorf("store.postgres.min_conns must not exceed store.postgres.max_conns")
	}
	return nil
}

// formatValidationError flattens validator output into a single readable error.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
