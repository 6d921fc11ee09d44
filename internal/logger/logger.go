package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	output io.Writer = os.Stderr
)

// Initialize sets up the global console logger. Unknown levels fall back to info.
func Initialize(logLevel string) {
	InitializeWithWriter(logLevel, zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// InitializeWithWriter is Initialize with an explicit destination, e.g. plain JSON
// to stderr for the one-shot CLI whose stdout carries the result.
func InitializeWithWriter(logLevel string, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339

	output = out
	Logger = zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Replace standard log with zerolog
	log.Logger = Logger
}

// GetForComponent returns a logger with a component field for better filtering.
// Package-level component loggers are created before Initialize runs, so they write
// through the current destination instead of capturing it.
func GetForComponent(component string) zerolog.Logger {
	return zerolog.New(globalWriter{}).With().Timestamp().Str("component", component).Logger()
}

// globalWriter forwards to the destination chosen by the last Initialize call.
type globalWriter struct{}

func (globalWriter) Write(p []byte) (int, error) {
	return output.Write(p)
}
