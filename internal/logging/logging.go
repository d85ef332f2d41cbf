// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logger type handed around the pipeline.
type Logger = *logrus.Logger

// Fields carries structured logging fields.
type Fields = logrus.Fields

// New builds a logger with the given level ("debug", "info", "warn",
// "error") and format ("text" or "json"). Unknown values fall back to
// info and text.
func New(level, format string) Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewNop returns a logger that discards everything, for tests and
// for components constructed without an explicit logger.
func NewNop() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
