package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance. It discards everything until Init.
	Logger = zerolog.Nop()
)

// Init initializes the global logger. format is "json" or "console"; the
// console writer is also used when ENV=development.
func Init(level, format string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	var output io.Writer = os.Stdout
	if strings.EqualFold(format, "console") || os.Getenv("ENV") == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "firealert").
		Logger()

	Logger.Info().
		Str("level", logLevel.String()).
		Str("format", format).
		Msg("logger initialized")
}

// WithComponent returns a logger with a component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRequestID returns a logger with a request ID field
func WithRequestID(requestID string) zerolog.Logger {
	return Logger.With().Str("request_id", requestID).Logger()
}

// WithJob returns a component logger tagged with a video job ID
func WithJob(component, jobID string) zerolog.Logger {
	return Logger.With().
		Str("component", component).
		Str("job_id", jobID).
		Logger()
}
