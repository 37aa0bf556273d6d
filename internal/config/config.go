// Package config holds the runtime configuration. A Config is built once at
// startup from defaults, an optional YAML file, a .env file and SCALEY_*
// environment variables, then passed to the components that need it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/getscaley/scaley/internal/store"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// DefaultJWTSecret is the signing secret used when none is configured. It
// is rejected in production.
const DefaultJWTSecret = "scaley-dev-secret-change-me"

// EnvPrefix is the prefix of environment variable overrides, e.g.
// SCALEY_SERVER_PORT for server.port.
const EnvPrefix = "SCALEY"

// Config is the complete runtime configuration.
type Config struct {
	Env       string          `mapstructure:"env" yaml:"env"`
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Activity  ActivityConfig  `mapstructure:"activity" yaml:"activity"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
	// CORSOrigins lists allowed origins; empty allows all.
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	// IPAllowlist lists client IPs or CIDRs; empty allows all.
	IPAllowlist []string `mapstructure:"ip_allowlist" yaml:"ip_allowlist"`
	// TrustProxy takes the client IP from X-Forwarded-For/X-Real-IP.
	TrustProxy bool `mapstructure:"trust_proxy" yaml:"trust_proxy"`
}

// RateLimitConfig controls per-IP request limiting.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Max     int           `mapstructure:"max" yaml:"max"`
	Window  time.Duration `mapstructure:"window" yaml:"window"`
}

// AuthConfig controls token issuance and password hashing.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTExpiry  time.Duration `mapstructure:"jwt_expiry" yaml:"jwt_expiry"`
	Issuer     string        `mapstructure:"issuer" yaml:"issuer"`
	BcryptCost int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// DatabaseConfig selects the credential store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is a file path for sqlite and a connection string otherwise.
	// Empty with sqlite means <data_dir>/scaley.db.
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// ActivityConfig controls the request audit log.
type ActivityConfig struct {
	Enabled   bool `mapstructure:"enabled" yaml:"enabled"`
	QueueSize int  `mapstructure:"queue_size" yaml:"queue_size"`
	// Retention is the default age cutoff for `logs prune`.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns a Config pre-filled with development defaults.
func Default() *Config {
	c := &Config{
		Env:     EnvDevelopment,
		DataDir: defaultDataDir(),
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            4000,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
			CORSOrigins:     []string{},
			IPAllowlist:     []string{},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Max:     100,
			Window:  15 * time.Minute,
		},
		Auth: AuthConfig{
			JWTSecret:  DefaultJWTSecret,
			JWTExpiry:  time.Hour,
			Issuer:     "scaley",
			BcryptCost: 10,
		},
		Database: DatabaseConfig{
			Driver:          store.DialectSQLite,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Activity: ActivityConfig{
			Enabled:   true,
			QueueSize: 1024,
			Retention: 90 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
	c.normalize()
	return c
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scaley"
	}
	return filepath.Join(home, ".scaley")
}

// SetDefaults registers every key of Default with v so that environment
// overrides are seen by Unmarshal even when no config file sets the key.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("env", d.Env)
	v.SetDefault("data_dir", d.DataDir)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.ip_allowlist", d.Server.IPAllowlist)
	v.SetDefault("server.trust_proxy", d.Server.TrustProxy)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.max", d.RateLimit.Max)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.jwt_expiry", d.Auth.JWTExpiry)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)

	v.SetDefault("database.driver", d.Database.Driver)
	// Left empty so that the sqlite path follows data_dir.
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)

	v.SetDefault("activity.enabled", d.Activity.Enabled)
	v.SetDefault("activity.queue_size", d.Activity.QueueSize)
	v.SetDefault("activity.retention", d.Activity.Retention)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// LoadOptions locates the configuration sources.
type LoadOptions struct {
	// ConfigFile is an explicit config file path. When empty, scaley.yaml
	// is looked up in the working directory and in $HOME/.scaley.
	ConfigFile string
	// EnvFile is the dotenv file loaded before the environment is read.
	// Defaults to .env; a missing file is ignored.
	EnvFile string
}

// Prepare points v at the configuration sources and reads them. Values
// already present in the process environment win over the dotenv file.
func Prepare(v *viper.Viper, opts LoadOptions) error {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("scaley")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.scaley")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is Prepare on a fresh viper instance followed by FromViper.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	if err := Prepare(v, opts); err != nil {
		return nil, err
	}
	return FromViper(v)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if name, err := store.NormalizeDriver(c.Database.Driver); err == nil {
		c.Database.Driver = name
	}
	if c.Database.Driver == store.DialectSQLite && c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.DataDir, "scaley.db")
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("env must be one of development, production, test; got %q", c.Env))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535; got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize < 0 {
		errs = append(errs, errors.New("server.max_body_size must not be negative"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit.max and rate_limit.window must be positive when rate limiting is enabled"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	} else if c.Env == EnvProduction && c.Auth.JWTSecret == DefaultJWTSecret {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be changed from the default in production (set %s_AUTH_JWT_SECRET)", EnvPrefix))
	}
	if c.Auth.JWTExpiry <= 0 {
		errs = append(errs, errors.New("auth.jwt_expiry must be positive"))
	}

	if _, err := store.NormalizeDriver(c.Database.Driver); err != nil {
		errs = append(errs, fmt.Errorf("database.driver: %w", err))
	} else if c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("database.dsn is required for %s", c.Database.Driver))
	}

	if c.Activity.Enabled && c.Activity.QueueSize <= 0 {
		errs = append(errs, errors.New("activity.queue_size must be positive"))
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the development environment is selected.
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// IsProduction reports whether the production environment is selected.
func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// SlogLevel parses Level as a slog level name.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
