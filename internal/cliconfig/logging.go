package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/flightrec/pkg/log"
)

var logger = log.ConsoleLogger(os.Stderr)

// Logger returns the package logger.
func Logger() zerolog.Logger {
	return logger
}

// SetLogLevel sets the package logger level. An unknown level is an error.
func SetLogLevel(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	logger = logger.Level(l)
	return nil
}
