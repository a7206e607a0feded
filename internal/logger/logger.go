package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/productdevbook/whichport/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// New builds a logger from the log settings. Stdout is reserved for results,
// so output goes to stderr or a rotated file.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	return newWithStderr(cfg, os.Stderr)
}

func newWithStderr(cfg config.LogConfig, stderr io.Writer) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case config.FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	case config.FormatText, "":
		log.SetFormatter(&logrus.TextFormatter{TimestampFormat: timestampFormat, FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	switch strings.ToLower(cfg.Output) {
	case config.LogOutputStderr, "":
		log.SetOutput(stderr)
	case config.LogOutputFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	default:
		return nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}

	return log, nil
}
