// Package config provides configuration management for the ficticia identity service.
// Values come from environment variables (optionally seeded from a `.env` file) and are
// decoded with `caarlos0/env` struct tags. After decoding, LoadConfig runs a second
// validation pass and reports every problem at once instead of failing on the first.
// In Nest.js, the `@nestjs/config` module plays the same role.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	minPoolSize     = 5
	maxPoolSize     = 100
	minSecretLength = 32
	minBcryptCost   = 4
	maxBcryptCost   = 31
)

// DatabaseConfig represents configuration for the PostgreSQL connection pool.
type DatabaseConfig struct {
	// URL takes precedence over the discrete fields below when set.
	URL         string `env:"DATABASE_URL"`
	Host        string `env:"DB_HOST" envDefault:"localhost"`
	Port        int    `env:"DB_PORT" envDefault:"5432"`
	User        string `env:"DB_USER" envDefault:"postgres"`
	Password    string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"ficticia"`
	SSLMode     string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxSize     int    `env:"DB_POOL_SIZE" envDefault:"10"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// DSN returns the connection string used by both pgxpool and golang-migrate.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"ficticia"`
	TokenTTL        time.Duration `env:"JWT_TOKEN_TTL" envDefault:"1h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"60m"`
	DefaultRole     string        `env:"DEFAULT_ROLE" envDefault:"ROLE_USER"`
	FrontendBaseURL string        `env:"FRONTEND_BASE_URL" envDefault:"http://localhost:4200"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`
	// SweepInterval controls how often expired reset tokens are cleared. Zero disables the sweeper.
	SweepInterval time.Duration `env:"RESET_SWEEP_INTERVAL" envDefault:"15m"`
}

// MailConfig holds SMTP settings. An empty Host selects the logging mailer.
type MailConfig struct {
	Host       string        `env:"SMTP_HOST"`
	Port       int           `env:"SMTP_PORT" envDefault:"587"`
	Username   string        `env:"SMTP_USERNAME"`
	Password   string        `env:"SMTP_PASSWORD"`
	From       string        `env:"MAIL_FROM" envDefault:"no-reply@ficticia.local"`
	StartTLS   bool          `env:"SMTP_STARTTLS" envDefault:"true"`
	Timeout    time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
	MaxRetries uint64        `env:"SMTP_MAX_RETRIES" envDefault:"2"`
}

// Enabled reports whether an SMTP relay is configured.
func (c MailConfig) Enabled() bool {
	return c.Host != ""
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:4200" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
}

// SeedConfig describes the bootstrap administrator created by the `seed` command.
type SeedConfig struct {
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@ficticia.local"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Database DatabaseConfig
	Auth     AuthConfig
	Mail     MailConfig
	Server   ServerConfig
	Log      LogConfig
	Seed     SeedConfig
}

// LoadDotEnv loads variables from the given files into the process environment.
// Missing files are ignored; variables already set are never overwritten.
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

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
// It collects all errors encountered during loading and returns a single error if any exist.
func LoadConfig() (*AppConfig, error) {
	var cfg AppConfig
	var problems []string

	if err := env.Parse(&cfg); err != nil {
		var agg env.AggregateError
		if errors.As(err, &agg) {
			for _, e := range agg.Errors {
				problems = append(problems, e.Error())
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	problems = append(problems, cfg.validate()...)

	if len(problems) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(problems, "\n- "))
	}
	return &cfg, nil
}

// LoadDatabaseConfig reads only the database and logging settings. The migrate command
// uses it so schema changes do not require the auth secrets to be present.
func LoadDatabaseConfig() (DatabaseConfig, LogConfig, error) {
	db, err := env.ParseAs[DatabaseConfig]()
	if err != nil {
		return DatabaseConfig{}, LogConfig{}, fmt.Errorf("configuration errors: %w", err)
	}
	logCfg, err := env.ParseAs[LogConfig]()
	if err != nil {
		return DatabaseConfig{}, LogConfig{}, fmt.Errorf("configuration errors: %w", err)
	}
	return db, logCfg, nil
}

func (c *AppConfig) validate() []string {
	var problems []string

	if c.Database.MaxSize < minPoolSize || c.Database.MaxSize > maxPoolSize {
		problems = append(problems, fmt.Sprintf("DB_POOL_SIZE (%d) must be between %d and %d", c.Database.MaxSize, minPoolSize, maxPoolSize))
	}

	// A missing JWT_SECRET is already reported by env.Parse.
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minSecretLength {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, "JWT_TOKEN_TTL must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		problems = append(problems, "RESET_TOKEN_TTL must be positive")
	}
	if c.Auth.SweepInterval < 0 {
		problems = append(problems, "RESET_SWEEP_INTERVAL must not be negative")
	}
	if strings.TrimSpace(c.Auth.DefaultRole) == "" {
		problems = append(problems, "DEFAULT_ROLE must not be blank")
	}
	if c.Auth.BcryptCost < minBcryptCost || c.Auth.BcryptCost > maxBcryptCost {
		problems = append(problems, fmt.Sprintf("BCRYPT_COST (%d) must be between %d and %d", c.Auth.BcryptCost, minBcryptCost, maxBcryptCost))
	}
	if u, err := url.Parse(c.Auth.FrontendBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("FRONTEND_BASE_URL (%q) must be an absolute URL", c.Auth.FrontendBaseURL))
	}

	if c.Mail.Enabled() && c.Mail.From == "" {
		problems = append(problems, "MAIL_FROM is required when SMTP_HOST is set")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("LOG_FORMAT (%q) must be json or text", c.Log.Format))
	}

	return problems
}
