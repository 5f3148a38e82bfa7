// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jobrunner/geodensify/internal/domain"
)

// EnvPrefix prefixes all environment variables, e.g. GEODENSIFY_DENSIFY_SPACING.
const EnvPrefix = "GEODENSIFY"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Output  OutputConfig  `mapstructure:"output"`
	Densify DensifyConfig `mapstructure:"densify"`
	Sync    SyncConfig    `mapstructure:"sync"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"` // Limit for GeoJSON request bodies
	FrontendEnabled bool          `mapstructure:"frontend_enabled"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// OutputConfig holds where densified packages are written and published.
type OutputConfig struct {
	Dir string `mapstructure:"dir"` // Local directory for output packages
	// Storage publishes finished packages. An empty type keeps them in Dir.
	Storage StorageConfig `mapstructure:"storage"`
}

// Publishes returns true if output packages are uploaded after a run.
func (c *OutputConfig) Publishes() bool {
	return c.Storage.Type != ""
}

// DensifyConfig holds the run-level densification defaults.
type DensifyConfig struct {
	Ellipsoid     string  `mapstructure:"ellipsoid"`      // Preset name; ignored when A is set
	A             float64 `mapstructure:"a"`              // Custom semi-major axis in meters
	InvFlattening float64 `mapstructure:"inv_flattening"` // Custom inverse flattening
	Mode          string  `mapstructure:"mode"`           // spacing, count
	Spacing       float64 `mapstructure:"spacing"`        // Meters
	Segments      int     `mapstructure:"segments"`
	Strategy      string  `mapstructure:"strategy"` // leading, symmetrical
	ExtraSegment  bool    `mapstructure:"extra_segment"`
	Workers       int     `mapstructure:"workers"` // 0 = number of CPUs
	// Auto densifies packages as soon as they are loaded, synced or dropped
	// into the watched folder.
	Auto bool `mapstructure:"auto"`
}

// Request builds the densification request described by the configuration.
func (c *DensifyConfig) Request() (domain.DensifyRequest, error) {
	var e domain.Ellipsoid
	if c.A != 0 {
		e = domain.Ellipsoid{Name: "custom", A: c.A, InvFlattening: c.InvFlattening}
	} else {
		preset, ok := domain.LookupEllipsoid(c.Ellipsoid)
		if !ok {
			return domain.DensifyRequest{}, &domain.ConfigError{Field: "densify.ellipsoid", Message: fmt.Sprintf("unknown ellipsoid %q", c.Ellipsoid)}
		}
		e = preset
	}

	mode, err := domain.ParseMode(c.Mode)
	if err != nil {
		return domain.DensifyRequest{}, &domain.ConfigError{Field: "densify.mode", Message: err.Error()}
	}
	strategy, err := domain.ParseStrategy(c.Strategy)
	if err != nil {
		return domain.DensifyRequest{}, &domain.ConfigError{Field: "densify.strategy", Message: err.Error()}
	}

	req := domain.DensifyRequest{
		Ellipsoid: e,
		Policy: domain.Policy{
			Mode:         mode,
			Spacing:      c.Spacing,
			Segments:     c.Segments,
			Strategy:     strategy,
			ExtraSegment: c.ExtraSegment,
		},
	}
	if err := req.Validate(); err != nil {
		return domain.DensifyRequest{}, &domain.ConfigError{Field: "densify", Message: err.Error()}
	}
	return req, nil
}

// SyncConfig holds periodic storage synchronization configuration.
type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds Azure DNS settings for DNS-01 challenges.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"` // 0 = serve on the API port
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 5*time.Minute)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_body_bytes", 32<<20)
	viper.SetDefault("server.frontend_enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Output defaults
	viper.SetDefault("output.dir", "./output")
	viper.SetDefault("output.storage.type", "")

	// Densify defaults
	viper.SetDefault("densify.ellipsoid", domain.DefaultEllipsoid.Name)
	viper.SetDefault("densify.a", 0.0)
	viper.SetDefault("densify.inv_flattening", 0.0)
	viper.SetDefault("densify.mode", string(domain.ModeSpacing))
	viper.SetDefault("densify.spacing", domain.DefaultSpacing)
	viper.SetDefault("densify.segments", domain.DefaultSegments)
	viper.SetDefault("densify.strategy", string(domain.StrategyLeading))
	viper.SetDefault("densify.extra_segment", false)
	viper.SetDefault("densify.workers", 0)
	viper.SetDefault("densify.auto", true)

	// Sync defaults
	viper.SetDefault("sync.enabled", false)
	viper.SetDefault("sync.interval", 15*time.Minute)

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 0)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// LoadDotEnv loads variables from .env files into the environment. Variables
// already set are not overridden and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from .env, environment and config file.
func Load(configPath string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	Defaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/geodensify")
	}

	// A config file is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &domain.ConfigError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return &domain.ConfigError{Field: "metrics.port", Message: fmt.Sprintf("invalid port %d", c.Metrics.Port)}
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return &domain.ConfigError{Field: "tls.domains", Message: "TLS enabled but no domains specified"}
		}
		if c.TLS.Email == "" {
			return &domain.ConfigError{Field: "tls.email", Message: "TLS enabled but no email specified"}
		}
	}

	if err := c.Storage.validate("storage"); err != nil {
		return err
	}
	if c.Output.Dir == "" {
		return &domain.ConfigError{Field: "output.dir", Message: "output directory is required"}
	}
	if c.Output.Publishes() {
		if err := c.Output.Storage.validate("output.storage"); err != nil {
			return err
		}
	}

	if _, err := c.Densify.Request(); err != nil {
		return err
	}
	if c.Densify.Workers < 0 {
		return &domain.ConfigError{Field: "densify.workers", Message: "workers must not be negative"}
	}

	if c.Sync.Enabled && c.Sync.Interval < time.Minute {
		return &domain.ConfigError{Field: "sync.interval", Message: "sync interval must be at least one minute"}
	}

	return nil
}

func (c *StorageConfig) validate(field string) error {
	missing := func(name, what string) error {
		return &domain.ConfigError{Field: field + "." + name, Message: what + " is required"}
	}

	switch c.Type {
	case "local":
		if c.LocalPath == "" {
			return missing("local_path", "local storage path")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return missing("s3.bucket", "S3 bucket")
		}
		if c.S3.Region == "" {
			return missing("s3.region", "S3 region")
		}
	case "azure":
		if c.Azure.Container == "" {
			return missing("azure.container", "azure container")
		}
		if c.Azure.AccountName == "" && c.Azure.ConnectionString == "" {
			return missing("azure.account_name", "azure account name or connection string")
		}
	case "http":
		if c.HTTP.BaseURL == "" {
			return missing("http.base_url", "HTTP base URL")
		}
	default:
		return &domain.ConfigError{Field: field + ".type", Message: fmt.Sprintf("unknown storage type %q", c.Type)}
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
