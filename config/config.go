package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	auth "github.com/goliatone/go-careauth"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "CAREAUTH"

// DevelopmentSigningKey is the placeholder secret. Load refuses it in production.
const DevelopmentSigningKey = "development-secret-change-me"

// Config holds all service configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

var _ auth.Config = (*Config)(nil)

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds persistence settings
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite or postgres
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	CreateSchema bool   `mapstructure:"create_schema"`
	Migrate      bool   `mapstructure:"migrate"` // run SQL migrations instead of create_schema
}

// AuthConfig holds session and credential settings
type AuthConfig struct {
	SigningKey      string        `mapstructure:"signing_key"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	Issuer          string        `mapstructure:"issuer"`
	SessionCookie   string        `mapstructure:"session_cookie"`
	ProfileCookie   string        `mapstructure:"profile_cookie"`
	SecureCookies   bool          `mapstructure:"secure_cookies"`
	LoginPath       string        `mapstructure:"login_path"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	HashidIDs       bool          `mapstructure:"hashid_ids"`
	PhoneRegion     string        `mapstructure:"phone_region"`
	LoginRateLimit  int           `mapstructure:"login_rate_limit"`
	LoginRateWindow time.Duration `mapstructure:"login_rate_window"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads an optional .env file, an optional config file at path and
// CAREAUTH_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load .env")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to bind config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "config validation failed")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "careauth")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:careauth.db?cache=shared")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.create_schema", true)
	v.SetDefault("database.migrate", false)

	v.SetDefault("auth.signing_key", DevelopmentSigningKey)
	v.SetDefault("auth.token_ttl", auth.DefaultTokenTTL.String())
	v.SetDefault("auth.issuer", "careauth")
	v.SetDefault("auth.session_cookie", auth.DefaultSessionCookie)
	v.SetDefault("auth.profile_cookie", auth.DefaultProfileCookie)
	v.SetDefault("auth.secure_cookies", false)
	v.SetDefault("auth.login_path", auth.DefaultLoginPath)
	v.SetDefault("auth.bcrypt_cost", auth.DefaultPasswordCost)
	v.SetDefault("auth.hashid_ids", false)
	v.SetDefault("auth.phone_region", auth.DefaultPhoneRegion)
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.login_rate_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

// Validate will run validation rules
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Name, validation.Required),
		validation.Field(&c.App.Environment, validation.Required, validation.In("development", "staging", "production", "test")),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&c.Database.DSN, validation.Required),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.SigningKey, validation.Required, validation.By(c.rejectPlaceholderKey)),
		validation.Field(&c.Auth.TokenTTL, validation.Required),
		validation.Field(&c.Auth.BcryptCost, validation.Min(4), validation.Max(31)),
		validation.Field(&c.Auth.LoginRateLimit, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	return nil
}

func (c *Config) rejectPlaceholderKey(value interface{}) error {
	key, _ := value.(string)
	if c.IsProduction() && key == DevelopmentSigningKey {
		return errors.New("must be set to a high entropy secret in production")
	}
	if c.IsProduction() && len(key) < 32 {
		return errors.New("must be at least 32 characters in production")
	}
	return nil
}

func (c *Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c *Config) GetTokenTTL() time.Duration {
	return c.Auth.TokenTTL
}

func (c *Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c *Config) GetSessionCookieName() string {
	return c.Auth.SessionCookie
}

func (c *Config) GetProfileCookieName() string {
	return c.Auth.ProfileCookie
}

// GetSecureCookies is always true in production
func (c *Config) GetSecureCookies() bool {
	return c.Auth.SecureCookies || c.IsProduction()
}

func (c *Config) GetLoginPath() string {
	return c.Auth.LoginPath
}

func (c *Config) GetBcryptCost() int {
	return c.Auth.BcryptCost
}
