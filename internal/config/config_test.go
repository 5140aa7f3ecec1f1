package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firealert/internal/scoring"
)

var configKeys = []string{
	"HTTP_ADDR", "MODEL_PATH", "THRESHOLD", "IMPUTE_MODE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM", "ALERT_EMAIL", "SMTP_TIMEOUT",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID",
	"WORKERS", "BATCH_SIZE", "BATCH_TIMEOUT", "QUEUE_SIZE",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every key Load reads and points ENV_FILE at nothing.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8100", cfg.HTTP.Addr)
	assert.Equal(t, "model.json", cfg.Scoring.ModelPath)
	assert.Equal(t, 0.5, cfg.Scoring.Threshold)
	assert.Equal(t, scoring.ImputeBatch, cfg.Scoring.ImputeMode)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Empty(t, cfg.SMTP.Recipients)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Worker.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Notifier().Complete())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("THRESHOLD", "0.72")
	t.Setenv("IMPUTE_MODE", "fixed")
	t.Setenv("MODEL_PATH", "/models/fire.yaml")
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("SMTP_PASS", "pw")
	t.Setenv("ALERT_EMAIL", `"a@example.com", b@example.com ,`)
	t.Setenv("SMTP_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BATCH_TIMEOUT", "50ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.72, cfg.Scoring.Threshold)
	assert.Equal(t, scoring.ImputeFixed, cfg.Scoring.ImputeMode)
	assert.Equal(t, "/models/fire.yaml", cfg.Scoring.ModelPath)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.SMTP.Recipients)
	assert.Equal(t, 3*time.Second, cfg.SMTP.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 50*time.Millisecond, cfg.Worker.BatchTimeout)

	n := cfg.Notifier()
	assert.True(t, n.Complete())
	assert.Equal(t, "bot@example.com", n.Sender())
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("THRESHOLD=0.9\nSMTP_USER=dotenv@example.com\n"), 0o600))
	t.Setenv("ENV_FILE", path)

	// godotenv only fills unset variables, so drop the blanks set above
	require.NoError(t, os.Unsetenv("THRESHOLD"))
	require.NoError(t, os.Unsetenv("SMTP_USER"))
	t.Cleanup(func() {
		os.Unsetenv("THRESHOLD")
		os.Unsetenv("SMTP_USER")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Scoring.Threshold)
	assert.Equal(t, "dotenv@example.com", cfg.SMTP.Username)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"THRESHOLD", "1.5"},
		{"THRESHOLD", "high"},
		{"THRESHOLD", "NaN"},
		{"IMPUTE_MODE", "mean"},
		{"SMTP_PORT", "0"},
		{"SMTP_PORT", "smtp"},
		{"WORKERS", "-1"},
		{"BATCH_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseRecipients(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "ops@example.com", []string{"ops@example.com"}},
		{"spaces and quotes", ` "a@x.io" ,b@x.io,  "c@x.io"`, []string{"a@x.io", "b@x.io", "c@x.io"}},
		{"blank entries", "a@x.io,, ,\"\"", []string{"a@x.io"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRecipients(tt.in))
		})
	}
}
