package logger

import (
	"os"

	"github.com/rs/zerolog"
)

var Logger zerolog.Logger

// Init initializes the global logger from LOG_LEVEL / LOG_FORMAT.
func Init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	if os.Getenv("LOG_FORMAT") == "console" {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
			Timestamp().
			Logger().
			Level(logLevel)
	} else {
		Logger = zerolog.New(os.Stdout).With().
			Timestamp().
			Logger().
			Level(logLevel)
	}
}

// WithComponent returns a sub-logger tagged with a component name.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithRequestID returns a sub-logger tagged with a request id.
func WithRequestID(requestID string) zerolog.Logger {
	if requestID == "" {
		return Logger
	}
	return Logger.With().Str("request_id", requestID).Logger()
}
