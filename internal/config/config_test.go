package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_DefaultsAndFileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: pgx
  host: db.internal
jwt:
  secret: file-secret
outbox:
  poll_interval: 5s
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout())
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiry())
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "hospital.events", cfg.Redis.Channel)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.ClientTTL)
	assert.Equal(t, 7, cfg.Outbox.RetentionDays)
	assert.Equal(t, time.Hour, cfg.Outbox.CleanupInterval)
	assert.False(t, cfg.Outbox.Inline)

	wc := cfg.ToWorkerConfig()
	assert.Equal(t, "hospital.events", wc.Channel)
	assert.Equal(t, 5*time.Second, wc.PollInterval)
	assert.Equal(t, "redis://localhost:6379/0", cfg.ToBrokerConfig().URL)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: file-secret
`)
	t.Setenv("HOSPITAL_DB_DRIVER", "memory")
	t.Setenv("HOSPITAL_DB_PASSWORD", "s3cret")
	t.Setenv("HOSPITAL_JWT_SECRET", "env-secret")
	t.Setenv("HOSPITAL_SERVER_PORT", "7070")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadFile_Validation(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `
database:
  driver: mysql
jwt:
  secret: x
`))
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = LoadFile(writeConfig(t, "server:\n  port: 8080\n"))
	assert.ErrorContains(t, err, "jwt.secret")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=n sslmode=require", c.DSN())
}

func TestBookingConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, BookingConfig{}.Location())
	assert.Equal(t, time.UTC, BookingConfig{Timezone: "Not/AZone"}.Location())
}
