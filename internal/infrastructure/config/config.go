package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/contaflow/sii-reconciliation-backend/internal/service/bankrecon"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server         ServerConfig         `koanf:"server"`
	Database       DatabaseConfig       `koanf:"database"`
	Redis          RedisConfig          `koanf:"redis"`
	SII            SIIConfig            `koanf:"sii"`
	Matching       MatchingConfig       `koanf:"matching"`
	Reconciliation ReconciliationConfig `koanf:"reconciliation"`
}

type ServerConfig struct {
	MetricsPort     int           `koanf:"metrics_port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url" validate:"required"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	RcvTTL       time.Duration `koanf:"rcv_ttl"`
}

// SIIConfig points the client at the tax authority. BaseURL is
// overridden in tests and in the certification (maullin) environment.
type SIIConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	SignerURL         string        `koanf:"signer_url" validate:"required,url"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"min=1"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
}

// MatchingConfig mirrors bankrecon.MatcherConfig. Tolerances are whole
// CLP so they unmarshal from YAML and env vars without custom hooks.
type MatchingConfig struct {
	HighMaxDays           int   `koanf:"high_max_days" validate:"min=0"`
	MediumAmountTolerance int64 `koanf:"medium_amount_tolerance" validate:"min=0"`
	MediumMaxDays         int   `koanf:"medium_max_days" validate:"min=0"`
	LowAmountTolerance    int64 `koanf:"low_amount_tolerance" validate:"min=0"`
	LowMaxDays            int   `koanf:"low_max_days" validate:"min=0"`
}

// ToMatcherConfig converts the flat config form into the matcher's
// decimal-based thresholds.
func (m MatchingConfig) ToMatcherConfig() bankrecon.MatcherConfig {
	return bankrecon.MatcherConfig{
		HighMaxDays:           m.HighMaxDays,
		MediumAmountTolerance: decimal.NewFromInt(m.MediumAmountTolerance),
		MediumMaxDays:         m.MediumMaxDays,
		LowAmountTolerance:    decimal.NewFromInt(m.LowAmountTolerance),
		LowMaxDays:            m.LowMaxDays,
	}
}

type ReconciliationConfig struct {
	Concurrency int `koanf:"concurrency" validate:"min=1"`
}

// Load reads configuration in three layers: compiled defaults, an
// optional YAML file, then CONTA_-prefixed environment variables.
func Load() (*Config, error) {
	return LoadFromFile("configs/config.yaml")
}

// LoadFromFile is Load with an explicit file path, for tests
func LoadFromFile(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			MetricsPort:     9091,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/contaflow?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			RcvTTL:       6 * time.Hour,
		},
		SII: SIIConfig{
			BaseURL:           "https://palena.sii.cl",
			SignerURL:         "http://localhost:8090",
			RequestTimeout:    30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
			TokenTTL:          50 * time.Minute,
		},
		Matching: MatchingConfig{
			HighMaxDays:           5,
			MediumAmountTolerance: 1000,
			MediumMaxDays:         15,
			LowAmountTolerance:    5000,
			LowMaxDays:            45,
		},
		Reconciliation: ReconciliationConfig{
			Concurrency: 4,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional; environments without one run on
	// defaults plus env vars.
	_ = k.Load(file.Provider(path), yaml.Parser())

	if err := k.Load(env.Provider("CONTA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CONTA_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies struct tag rules plus cross-field checks the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("invalid configuration: max_idle_conns (%d) exceeds max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	return nil
}
