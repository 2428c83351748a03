// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to emit: trace, debug, info, warn or
	// error. Unknown values fall back to info.
	Level string

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the destination writer (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Components
// derive their own tagged loggers from it via NewLogger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts a level name to a zerolog.Level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	parsed, err := zerolog.ParseLevel(name)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: detailed information for debugging
//   - Cache operations (hit/miss, key, TTL tier)
//   - Pagination progress (cursor advances, category exhaustion)
//   - Retry scheduling (backoff durations, server hints)
//
// Info: normal operation events
//   - Requests that succeeded after retrying
//   - Proxy startup/shutdown
//
// Warn: conditions that don't stop the request
//   - Cache backend errors (degraded to a miss)
//   - Non-retryable request failures
//   - Retry exhaustion
//
// Error: conditions requiring attention
//   - Proxy listen failures
//   - Configuration errors at startup
//
// Context Fields:
//   - component: which package emitted the event
//   - endpoint: catalogue path (/result, record paths)
//   - category: category code during pagination
//   - kind: error kind (validation, rate_limit, server, ...)
//   - ttl: cache entry lifetime
//   - attempt: retry attempt number
