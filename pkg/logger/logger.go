// Package logger provides structured logging configuration for the selmag services
// with support for different log levels, formats, output destinations and
// per-request correlation IDs.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/config"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// New creates a new configured logrus logger instance with the specified
// log level, format, and output destination.
func New(level, format, output string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(parseLevel(level))
	logger.SetFormatter(formatter(format))

	switch strings.ToLower(output) {
	case "stdout", "":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := openLogFile(output)
		if err != nil {
			logger.SetOutput(os.Stdout)
			logger.WithError(err).Warn("Failed to open log file, using stdout")
			return logger
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, file))
	}

	return logger
}

// NewWithConfig builds a logger from LoggingConfig. When dual output is enabled
// console lines use ConsoleFormat and the file receives FileFormat.
func NewWithConfig(cfg *config.LoggingConfig) *logrus.Logger {
	if !cfg.EnableDualOutput || cfg.FilePath == "" {
		return New(cfg.Level, cfg.Format, cfg.Output)
	}

	logger := New(cfg.Level, cfg.ConsoleFormat, "stdout")

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		logger.WithError(err).Warn("Failed to open log file, dual output disabled")
		return logger
	}

	logger.AddHook(&fileHook{
		writer:    file,
		formatter: formatter(cfg.FileFormat),
		levels:    levelsFrom(parseLevel(cfg.Level)),
	})

	return logger
}

// MaskToken hides all but the first four characters of a credential so that
// log lines can still be correlated without leaking the secret.
func MaskToken(token string) string {
	const visible = 4
	if len(token) <= visible*2 {
		return "****"
	}
	return token[:visible] + "****"
}

func parseLevel(level string) logrus.Level {
	logLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return logLevel
}

func formatter(format string) logrus.Formatter {
	switch strings.ToLower(format) {
	case "text":
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		}
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
	default:
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		}
	}
}

func openLogFile(path string) (*os.File, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, os.ErrPermission
	}

	// #nosec G304 -- path is cleaned and traversal is rejected above
	return os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

func levelsFrom(minLevel logrus.Level) []logrus.Level {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return levels
}

// fileHook mirrors log entries to a file with its own formatter.
type fileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}
