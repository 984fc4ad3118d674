// Package config loads the autolabel configuration: built-in defaults, an
// optional YAML file, a .env file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hannes/kiji-autolabel/pii"
	"github.com/hannes/kiji-autolabel/pii/dataset"
	"github.com/hannes/kiji-autolabel/pii/labels"
)

const TRUE = "true"

// LabelConfig holds options of the label command
type LabelConfig struct {
	Workers   int    `yaml:"workers"`   // Parallel alignments
	Source    string `yaml:"source"`    // Meta source tag written to every example
	Tokenizer string `yaml:"tokenizer"` // Optional tokenizer.json for the boundary check
	Validate  bool   `yaml:"validate"`  // Run the format validator on the output
}

// SplitConfig holds options of the split command
type SplitConfig struct {
	Seed       int64   `yaml:"seed"`
	TrainRatio float64 `yaml:"train_ratio"`
	ValRatio   float64 `yaml:"val_ratio"`
}

// LabelsConfig extends the built-in label tables
type LabelsConfig struct {
	Aliases map[string]string `yaml:"aliases"`
	Drop    []string          `yaml:"drop"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`         // sqlite, postgres or none
	Path         string `yaml:"path"`           // SQLite database file
	Host         string `yaml:"host"`           // Database host
	Port         int    `yaml:"port"`           // Database port
	Database     string `yaml:"database"`       // Database name
	Username     string `yaml:"username"`       // Database username
	Password     string `yaml:"password"`       // Database password
	SSLMode      string `yaml:"ssl_mode"`       // SSL mode (disable, require, etc.)
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections
	MaxLifetime  int    `yaml:"max_lifetime"`   // Connection max lifetime in seconds
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Port           string   `yaml:"port"`
	RateLimit      float64  `yaml:"rate_limit"` // requests per second
	RateBurst      int      `yaml:"rate_burst"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"` // Debug level logging
}

// Config holds all configuration for the autolabel tool
type Config struct {
	Label     LabelConfig    `yaml:"label"`
	Split     SplitConfig    `yaml:"split"`
	Labels    LabelsConfig   `yaml:"labels"`
	Database  DatabaseConfig `yaml:"database"`
	Server    ServerConfig   `yaml:"server"`
	Logging   LoggingConfig  `yaml:"logging"`
	SentryDSN string         `yaml:"sentry_dsn"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Label: LabelConfig{
			Workers: 4,
			Source:  dataset.SourceAuto,
		},
		Split: SplitConfig{
			Seed:       dataset.DefaultSeed,
			TrainRatio: dataset.DefaultTrainRatio,
			ValRatio:   dataset.DefaultValRatio,
		},
		Database: DatabaseConfig{
			Driver:       pii.DriverNone,
			Path:         "autolabel.db",
			Host:         "localhost",
			Port:         5432,
			Database:     "autolabel",
			Username:     "postgres",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			MaxLifetime:  300,
		},
		Server: ServerConfig{
			Port:           ":8081",
			RateLimit:      20,
			RateBurst:      40,
			MaxBodyBytes:   1 << 20,
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadDotEnv loads a .env file if one exists. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			existing = append(existing, ".env")
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 - config path comes from the operator's command line
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if workers := os.Getenv("KIJI_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			c.Label.Workers = n
		}
	}
	if tokenizer := os.Getenv("KIJI_TOKENIZER"); tokenizer != "" {
		c.Label.Tokenizer = tokenizer
	}
	if seed := os.Getenv("KIJI_SEED"); seed != "" {
		if n, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Split.Seed = n
		}
	}
	if port := os.Getenv("KIJI_SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if limit := os.Getenv("KIJI_RATE_LIMIT"); limit != "" {
		if f, err := strconv.ParseFloat(limit, 64); err == nil {
			c.Server.RateLimit = f
		}
	}

	c.loadDatabaseEnv()

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		c.SentryDSN = dsn
	}
	if verbose := os.Getenv("LOG_VERBOSE"); verbose != "" {
		c.Logging.Verbose = verbose == TRUE
	}
}

// loadDatabaseEnv loads database configuration from environment variables
func (c *Config) loadDatabaseEnv() {
	if driver := os.Getenv("KIJI_STORE"); driver != "" {
		c.Database.Driver = driver
	}
	if path := os.Getenv("KIJI_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Database.Port = p
		}
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		c.Database.Database = dbName
	}
	if user := os.Getenv("DB_USER"); user != "" {
		c.Database.Username = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		c.Database.SSLMode = sslMode
	}
}

// Validate checks the configuration for values the commands cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Label.Workers < 1 {
		errs = append(errs, fmt.Errorf("label.workers must be at least 1 (current value: %d)", c.Label.Workers))
	}
	if c.Split.TrainRatio <= 0 || c.Split.TrainRatio > 1 {
		errs = append(errs, fmt.Errorf("split.train_ratio must be in (0, 1] (current value: %g)", c.Split.TrainRatio))
	}
	if c.Split.ValRatio < 0 {
		errs = append(errs, fmt.Errorf("split.val_ratio must not be negative (current value: %g)", c.Split.ValRatio))
	}
	if c.Split.TrainRatio+c.Split.ValRatio > 1 {
		errs = append(errs, fmt.Errorf("split.train_ratio + split.val_ratio must not exceed 1 (current value: %g)", c.Split.TrainRatio+c.Split.ValRatio))
	}

	switch c.Database.Driver {
	case pii.DriverNone, pii.DriverSQLite, pii.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be one of none, sqlite, postgres (current value: %s)", c.Database.Driver))
	}

	if err := validatePort(c.Server.Port, "server.port"); err != nil {
		errs = append(errs, err)
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must be positive (current value: %g)", c.Server.RateLimit))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive (current value: %d)", c.Server.MaxBodyBytes))
	}

	return errors.Join(errs...)
}

// validatePort checks that port has the form ":PORT" with PORT in 1..65535.
func validatePort(port, fieldName string) error {
	if port == "" {
		return fmt.Errorf("%s: port cannot be empty", fieldName)
	}
	if !strings.HasPrefix(port, ":") {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	n, err := strconv.Atoi(port[1:])
	if err != nil {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s: port must be between 1 and 65535 (current value: %d)", fieldName, n)
	}
	return nil
}

// StoreConfig converts the database section for pii.NewExampleStore.
func (d DatabaseConfig) StoreConfig() pii.DatabaseConfig {
	return pii.DatabaseConfig{
		Driver:       d.Driver,
		Path:         d.Path,
		Host:         d.Host,
		Port:         d.Port,
		Database:     d.Database,
		Username:     d.Username,
		Password:     d.Password,
		SSLMode:      d.SSLMode,
		MaxOpenConns: d.MaxOpenConns,
		MaxIdleConns: d.MaxIdleConns,
		MaxLifetime:  time.Duration(d.MaxLifetime) * time.Second,
	}
}

// Canonicalizer returns the built-in canonicalizer extended with the
// configured aliases and drop list.
func (c *Config) Canonicalizer() *labels.Canonicalizer {
	canon := labels.Default()
	if len(c.Labels.Aliases) == 0 && len(c.Labels.Drop) == 0 {
		return canon
	}
	return canon.WithOverrides(c.Labels.Aliases, c.Labels.Drop)
}
