package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all bioconv configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Timeout string `yaml:"timeout"`

	// Items database used when no --os-name is given
	Store StoreConfig `yaml:"store"`

	// Named items databases, selected with --os-name
	ObjectStores map[string]StoreConfig `yaml:"object_stores"`

	// Input discovery
	Source SourceConfig `yaml:"source"`

	// Per-converter settings, keyed by converter name
	Converters map[string]ConverterConfig `yaml:"converters"`

	// Post-load SQL maintenance
	PostProcess PostProcessConfig `yaml:"post_process"`

	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects the items database.
type StoreConfig struct {
	Driver    string `yaml:"driver"` // sqlite3, sqlite, pgx
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batch_size"`
}

// SourceConfig configures where input files come from.
type SourceConfig struct {
	Type     string   `yaml:"type"` // local, s3
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Encoding string   `yaml:"encoding"`
	S3       S3Config `yaml:"s3"`
}

// S3Config configures an S3-compatible bucket holding input files.
type S3Config struct {
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	UseSSL      bool   `yaml:"use_ssl"`
	CacheDir    string `yaml:"cache_dir"`
	Parallelism int    `yaml:"parallelism"`
}

// ConverterConfig holds the header values a converter stores once per run.
type ConverterConfig struct {
	DataSource string `yaml:"data_source"`
	DataSet    string `yaml:"data_set"`
	TaxonID    string `yaml:"taxon_id"`
	Model      string `yaml:"model"`
}

// PostProcessConfig configures the SQL maintenance task.
type PostProcessConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	SQLDir  string `yaml:"sql_dir"` // overrides the embedded resources when set
}

// MetricsConfig configures the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "bioconv",
		Version: "0.3.0",
		Timeout: "30m",

		Store: StoreConfig{
			Driver:    "sqlite3",
			DSN:       "data/items.db",
			BatchSize: 1000,
		},

		Source: SourceConfig{
			Type:     "local",
			Dir:      ".",
			Includes: []string{"**/*.txt", "**/*.txt.gz", "**/*.tsv", "**/*.tsv.gz"},
			Encoding: "utf-8",
			S3: S3Config{
				Region:      "us-east-1",
				CacheDir:    filepath.Join(os.TempDir(), "bioconv-cache"),
				Parallelism: 4,
			},
		},

		Converters: map[string]ConverterConfig{
			"anopheles-identifiers": {
				DataSource: "VectorBase",
				DataSet:    "Anopheles genes",
				TaxonID:    "180454",
				Model:      "genomic",
			},
		},

		PostProcess: PostProcessConfig{
			Model: "genomic",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// A .env file in the working directory is loaded before env overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	_ = godotenv.Load()
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// DATABASE_URL implies Postgres; explicit BIOCONV_DB_* win over it.
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		c.Store.Driver = "pgx"
		c.Store.DSN = url
	}
	if driver := strings.TrimSpace(os.Getenv("BIOCONV_DB_DRIVER")); driver != "" {
		c.Store.Driver = driver
	}
	if dsn := strings.TrimSpace(os.Getenv("BIOCONV_DB_DSN")); dsn != "" {
		c.Store.DSN = dsn
	}

	s3 := &c.Source.S3
	if v := strings.TrimSpace(os.Getenv("BIOCONV_S3_ENDPOINT")); v != "" {
		s3.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("BIOCONV_S3_REGION")); v != "" {
		s3.Region = v
	}
	s3.AccessKey = firstNonEmpty(os.Getenv("BIOCONV_S3_ACCESS_KEY"), s3.AccessKey, os.Getenv("MINIO_ROOT_USER"))
	s3.SecretKey = firstNonEmpty(os.Getenv("BIOCONV_S3_SECRET_KEY"), s3.SecretKey, os.Getenv("MINIO_ROOT_PASSWORD"))
	if v := strings.TrimSpace(os.Getenv("BIOCONV_S3_BUCKET")); v != "" {
		s3.Bucket = v
	}
	if raw := strings.TrimSpace(os.Getenv("BIOCONV_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			s3.UseSSL = v
		}
	}

	if level := strings.TrimSpace(os.Getenv("BIOCONV_LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if path := strings.TrimSpace(os.Getenv("BIOCONV_METRICS_TEXTFILE")); path != "" {
		c.Metrics.Textfile = path
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// GetTimeout returns the overall run timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ObjectStore resolves a named items database. The empty name and "default"
// select the top-level store section.
func (c *Config) ObjectStore(name string) (StoreConfig, error) {
	if name == "" || name == "default" {
		return c.Store, nil
	}
	sc, ok := c.ObjectStores[name]
	if !ok {
		return StoreConfig{}, fmt.Errorf("unknown object store: %s", name)
	}
	if sc.BatchSize == 0 {
		sc.BatchSize = c.Store.BatchSize
	}
	return sc, nil
}

// Converter returns the settings for a named converter, filling blanks from
// the built-in defaults for that converter.
func (c *Config) Converter(name string) ConverterConfig {
	cc := c.Converters[name]
	def := DefaultConfig().Converters[name]
	cc.DataSource = firstNonEmpty(cc.DataSource, def.DataSource)
	cc.DataSet = firstNonEmpty(cc.DataSet, def.DataSet)
	cc.TaxonID = firstNonEmpty(cc.TaxonID, def.TaxonID)
	cc.Model = firstNonEmpty(cc.Model, def.Model, "genomic")
	return cc
}

// ValidDrivers lists the supported database/sql driver names.
var ValidDrivers = []string{"sqlite3", "sqlite", "pgx"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidDrivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("store dsn not configured (set store.dsn, BIOCONV_DB_DSN or DATABASE_URL)")
	}
	for name, sc := range c.ObjectStores {
		if !contains(ValidDrivers, sc.Driver) {
			return fmt.Errorf("object store %s: invalid driver: %s", name, sc.Driver)
		}
	}

	switch c.Source.Type {
	case "", "local":
	case "s3":
		if c.Source.S3.Endpoint == "" || c.Source.S3.Bucket == "" {
			return fmt.Errorf("s3 source requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("invalid source type: %s (valid: local, s3)", c.Source.Type)
	}

	if c.Store.BatchSize < 0 {
		return fmt.Errorf("store batch_size must not be negative")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
