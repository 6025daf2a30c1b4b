package everytriv

import (
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is the structured sink for pipeline diagnostics. keyvals alternate
// key, value. Calls must not block or fail the request.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// DebugConfig selects which pipeline stages emit debug logs.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogDedup     bool
	LogAuth      bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a disabled config with every stage selected.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogDedup:     true,
		LogAuth:      true,
		RequestIDGen: uuid.NewString,
	}
}

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps l.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: l}
}

// NewConsoleLogger logs human readable lines to stderr.
func NewConsoleLogger() *ZerologLogger {
	return NewZerologLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger())
}

func (l *ZerologLogger) Debug(msg string, keyvals ...any) {
	l.log.Debug().Fields(keyvals).Msg(msg)
}

func (l *ZerologLogger) Info(msg string, keyvals ...any) {
	l.log.Info().Fields(keyvals).Msg(msg)
}

func (l *ZerologLogger) Warn(msg string, keyvals ...any) {
	l.log.Warn().Fields(keyvals).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, keyvals ...any) {
	l.log.Error().Fields(keyvals).Msg(msg)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
