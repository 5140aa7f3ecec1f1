package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"firealert/internal/alerts"
	"firealert/internal/scoring"
)

// Config holds runtime configuration for the service.
type Config struct {
	HTTP    HTTPConfig
	Scoring ScoringConfig
	SMTP    SMTPConfig
	Kafka   KafkaConfig
	Worker  WorkerConfig
	Log     LogConfig
}

// HTTPConfig configures the inference API listener.
type HTTPConfig struct {
	Addr        string
	MaxBodySize int64
}

// ScoringConfig locates the model and fixes the decision threshold.
type ScoringConfig struct {
	ModelPath  string
	Threshold  float64
	ImputeMode scoring.ImputeMode
}

// SMTPConfig configures emergency mail delivery.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
	Timeout    time.Duration
}

// KafkaConfig configures the detection stream consumer. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// WorkerConfig sizes the alerting workflow.
type WorkerConfig struct {
	Workers      int
	BatchSize    int
	BatchTimeout time.Duration
	QueueSize    int
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:        ":8100",
			MaxBodySize: 10 * 1024 * 1024,
		},
		Scoring: ScoringConfig{
			ModelPath:  "model.json",
			Threshold:  0.5,
			ImputeMode: scoring.ImputeBatch,
		},
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:   "fire-detections",
			GroupID: "firealert",
		},
		Worker: WorkerConfig{
			Workers:      4,
			BatchSize:    32,
			BatchTimeout: 200 * time.Millisecond,
			QueueSize:    1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the environment on top of Default. Variables
// from ENV_FILE (default .env) are applied first without overriding the real
// environment; a missing file is not an error.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Default()
	var errs []error

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Scoring.ModelPath = getEnv("MODEL_PATH", cfg.Scoring.ModelPath)
	cfg.Scoring.Threshold = getFloat("THRESHOLD", cfg.Scoring.Threshold, &errs)
	if mode, ok := scoring.ParseImputeMode(os.Getenv("IMPUTE_MODE")); ok {
		cfg.Scoring.ImputeMode = mode
	} else {
		errs = append(errs, fmt.Errorf("IMPUTE_MODE: unknown mode %q", os.Getenv("IMPUTE_MODE")))
	}

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getInt("SMTP_PORT", cfg.SMTP.Port, &errs)
	cfg.SMTP.Username = os.Getenv("SMTP_USER")
	cfg.SMTP.Password = os.Getenv("SMTP_PASS")
	cfg.SMTP.From = os.Getenv("SMTP_FROM")
	cfg.SMTP.Recipients = ParseRecipients(os.Getenv("ALERT_EMAIL"))
	cfg.SMTP.Timeout = getDuration("SMTP_TIMEOUT", cfg.SMTP.Timeout, &errs)

	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Worker.Workers = getInt("WORKERS", cfg.Worker.Workers, &errs)
	cfg.Worker.BatchSize = getInt("BATCH_SIZE", cfg.Worker.BatchSize, &errs)
	cfg.Worker.BatchTimeout = getDuration("BATCH_TIMEOUT", cfg.Worker.BatchTimeout, &errs)
	cfg.Worker.QueueSize = getInt("QUEUE_SIZE", cfg.Worker.QueueSize, &errs)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	if !(c.Scoring.Threshold >= 0 && c.Scoring.Threshold <= 1) {
		errs = append(errs, fmt.Errorf("THRESHOLD must be within [0, 1], got %v", c.Scoring.Threshold))
	}
	if c.Scoring.ModelPath == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT out of range: %d", c.SMTP.Port))
	}
	if c.Worker.Workers <= 0 || c.Worker.BatchSize <= 0 || c.Worker.QueueSize <= 0 {
		errs = append(errs, errors.New("WORKERS, BATCH_SIZE and QUEUE_SIZE must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	return errors.Join(errs...)
}

// Notifier returns the delivery configuration for the alerts package.
func (c *Config) Notifier() alerts.Config {
	return alerts.Config{
		Host:       c.SMTP.Host,
		Port:       c.SMTP.Port,
		Username:   c.SMTP.Username,
		Password:   c.SMTP.Password,
		From:       c.SMTP.From,
		Recipients: c.SMTP.Recipients,
	}
}

// ParseRecipients splits a comma-delimited address list, trimming whitespace
// and double quotes from each entry and dropping empty ones.
func ParseRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `"`))
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return f
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
