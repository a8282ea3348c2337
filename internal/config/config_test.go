package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "DATABASE_URL", "SQLITE_PATH", "KAFKA_BROKERS",
	"AI_THINK_DELAY", "SESSION_IDLE_TTL", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv empties every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/arcade")
	t.Setenv("SQLITE_PATH", "/tmp/arcade.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("AI_THINK_DELAY", "250ms")
	t.Setenv("SESSION_IDLE_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{
		Port:           "9000",
		DatabaseURL:    "postgres://localhost/arcade",
		SQLitePath:     "/tmp/arcade.db",
		KafkaBrokers:   []string{"k1:9092", "k2:9092"},
		AIThinkDelay:   250 * time.Millisecond,
		SessionIdleTTL: time.Hour,
		LogLevel:       "debug",
		LogFormat:      "json",
	}, cfg)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoadRejectsBadDurations(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"AI_THINK_DELAY", "soon"},
		{"AI_THINK_DELAY", "-1s"},
		{"SESSION_IDLE_TTL", "30"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestZeroIdleTTLDisablesReaper(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_IDLE_TTL", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.SessionIdleTTL)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	content := "# arcade settings\n" +
		"PORT=1234\n" +
		"export LOG_LEVEL=warn\n" +
		"SQLITE_PATH=\"/data/arcade.db\"\n" +
		"not a setting\n" +
		"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port, "existing variables are not overridden")
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/data/arcade.db", cfg.SQLitePath)
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}
