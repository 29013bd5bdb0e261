// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := ParseLevel(string(cfg.Level))
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to zerolog.Level. Unknown names map to
// info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithMark returns a child logger that tags every line with the correlation
// mark of one logical operation.
func WithMark(logger zerolog.Logger, mark string) zerolog.Logger {
	return logger.With().Str("mark", mark).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Each request attempt and retry delay
//   - Admission waits and page fetches
//
// Info: Normal operation events
//   - Client construction
//   - Success after retry
//   - Search completion
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Non-2xx responses and SOAP faults
//   - Page size reductions after a timeout
//   - Cache errors (fallback to direct request)
//   - Retry exhaustion
//
// Error: Error conditions requiring attention
//   - Unexpected failures, logged with the full call context
//   - Configuration errors
//
// Context Fields:
//   - mark: correlation token of the logical operation
//   - operation: remote operation, e.g. search or get
//   - endpoint: REST path or SOAP endpoint
//   - status: HTTP status code
//   - attempt: attempt number, 1-based
//   - delay: wait before the next retry
//   - error_kind: transient_network, unauthorized, client_rejected, cancelled, unexpected
//   - search_id, page_index, page_size, total_pages: search cursor position
//
// Never logged: consumer and token secrets, signatures, Authorization headers.
