// Package config loads the gateauth-server configuration from a YAML file,
// an optional .env file and GATEAUTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/gormstore"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SecureCookie    bool          `yaml:"secure_cookie"`
}

// RedisConfig locates the token store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig locates the identity database.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig carries the engine settings an operator usually changes.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	Issuer        string        `yaml:"issuer"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	RetentionDays int           `yaml:"retention_days"`
	AdminRole     string        `yaml:"admin_role"`
	// CatalogPath names an extra transaction catalog imported at start.
	CatalogPath string `yaml:"catalog_path"`
}

// LoggingConfig selects the logrus level and formatter.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv exports the variables in the named .env files. Missing files
// are ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func defaultConfig() *Config {
	engine := gateAuth.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SecureCookie:    true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			AccessTTL:     engine.JWT.AccessTTL,
			RefreshTTL:    engine.Refresh.TTL,
			RetentionDays: engine.Refresh.RetentionDays,
			AdminRole:     engine.Accounts.AdminRole,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides applies GATEAUTH_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"GATEAUTH_SERVER_ADDR":         &cfg.Server.Addr,
		"GATEAUTH_SERVER_METRICS_ADDR": &cfg.Server.MetricsAddr,
		"GATEAUTH_REDIS_ADDR":          &cfg.Redis.Addr,
		"GATEAUTH_REDIS_PASSWORD":      &cfg.Redis.Password,
		"GATEAUTH_DATABASE_DSN":        &cfg.Database.DSN,
		"GATEAUTH_JWT_SECRET":          &cfg.Auth.JWTSecret,
		"GATEAUTH_AUTH_ISSUER":         &cfg.Auth.Issuer,
		"GATEAUTH_AUTH_CATALOG_PATH":   &cfg.Auth.CatalogPath,
		"GATEAUTH_LOG_LEVEL":           &cfg.Logging.Level,
		"GATEAUTH_LOG_FORMAT":          &cfg.Logging.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("GATEAUTH_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GATEAUTH_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	if v := os.Getenv("GATEAUTH_SERVER_SECURE_COOKIE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GATEAUTH_SERVER_SECURE_COOKIE: %w", err)
		}
		cfg.Server.SecureCookie = b
	}
	if v := os.Getenv("GATEAUTH_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GATEAUTH_AUTH_ACCESS_TTL: %w", err)
		}
		cfg.Auth.AccessTTL = d
	}

	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.MetricsAddr != "" && c.Server.MetricsAddr == c.Server.Addr {
		errs = append(errs, "server.metrics_addr must differ from server.addr")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required")
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required (set GATEAUTH_DATABASE_DSN)")
	}

	const minSecretLength = 32
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required (set GATEAUTH_JWT_SECRET)")
	} else if len(c.Auth.JWTSecret) < minSecretLength {
		errs = append(errs, "auth.jwt_secret must be at least 32 bytes")
	}
	if c.Auth.RetentionDays < 0 {
		errs = append(errs, "auth.retention_days must not be negative")
	} else if c.Auth.RetentionDays > 0 {
		ttl := c.Auth.RefreshTTL
		if ttl <= 0 {
			ttl = gateAuth.DefaultConfig().Refresh.TTL
		}
		if time.Duration(c.Auth.RetentionDays)*24*time.Hour < ttl {
			errs = append(errs, fmt.Sprintf("auth.retention_days must be 0 or span at least the refresh ttl (%s)", ttl))
		}
	}
	if strings.TrimSpace(c.Auth.AdminRole) == "" {
		errs = append(errs, "auth.admin_role is required")
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level %q is not a logrus level", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Engine maps the file settings onto the engine defaults.
func (c *Config) Engine() gateAuth.Config {
	cfg := gateAuth.DefaultConfig()
	cfg.JWT.Secret = []byte(c.Auth.JWTSecret)
	cfg.JWT.Issuer = c.Auth.Issuer
	if c.Auth.AccessTTL > 0 {
		cfg.JWT.AccessTTL = c.Auth.AccessTTL
	}
	if c.Auth.RefreshTTL > 0 {
		cfg.Refresh.TTL = c.Auth.RefreshTTL
	}
	cfg.Refresh.RetentionDays = c.Auth.RetentionDays
	cfg.Accounts.AdminRole = c.Auth.AdminRole
	return cfg
}

// Pool returns the connection pool settings for the identity database.
func (c *Config) Pool() gormstore.PoolConfig {
	return gormstore.PoolConfig{
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// Logger builds the process logger.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if c.Logging.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
