package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ROLE_USER", cfg.Auth.DefaultRole)
	assert.Equal(t, 60*time.Minute, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://localhost:4200", cfg.Auth.FrontendBaseURL)
	assert.Equal(t, 10, cfg.Database.MaxSize)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Mail.Enabled())
	assert.Equal(t, "admin", cfg.Seed.AdminUsername)
}

func TestLoadConfigCollectsAllErrors(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_POOL_SIZE", "500")
	t.Setenv("BCRYPT_COST", "2")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("FRONTEND_BASE_URL", "not a url")

	_, err := LoadConfig()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "JWT_SECRET must be at least 32 bytes")
	assert.Contains(t, msg, "DB_POOL_SIZE (500)")
	assert.Contains(t, msg, "BCRYPT_COST (2)")
	assert.Contains(t, msg, "LOG_FORMAT")
	assert.Contains(t, msg, "FRONTEND_BASE_URL")
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	// t.Setenv registers a restore of the original value; the unset lasts for the test.
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "app",
		Password: "p@ss word",
		DBName:   "ficticia",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5433/ficticia?sslmode=disable", cfg.DSN())

	cfg.URL = "postgres://override/db"
	assert.Equal(t, "postgres://override/db", cfg.DSN())
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9999\nDEFAULT_ROLE=ROLE_FROM_FILE\n"), 0o600))

	t.Setenv("PORT", "7000")
	t.Setenv("DEFAULT_ROLE", "")
	require.NoError(t, os.Unsetenv("DEFAULT_ROLE"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { _ = os.Unsetenv("DEFAULT_ROLE") })

	assert.Equal(t, "7000", os.Getenv("PORT"))
	assert.Equal(t, "ROLE_FROM_FILE", os.Getenv("DEFAULT_ROLE"))
}

func TestLoadDatabaseConfigWithoutAuthSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/ficticia?sslmode=disable")

	db, logCfg, err := LoadDatabaseConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/ficticia?sslmode=disable", db.DSN())
	assert.Equal(t, "json", logCfg.Format)
}
