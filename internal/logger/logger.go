package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the root logger. Services derive scoped loggers from it via
// logger.With().
func New(environment string) zerolog.Logger {
	// For Google Cloud Logging, the level field name should be "severity"
	// so the log level is parsed automatically.
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// ConsoleWriter for local development for more readable logs.
	if environment == "development" {
		return logger.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
	}
	return logger.Level(zerolog.InfoLevel)
}
