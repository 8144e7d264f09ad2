package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error (default: info)
	Directory  string // Log file directory (empty = stdout only)
	MaxSize    int64  // Max size in bytes before rotation (default: 10MB)
	MaxBackups int    // Number of old log files to keep (default: 3)
	JSONFormat bool   // JSON output (default: text for terminals)
}

// New builds a logrus logger from config. When a directory is configured the
// logger writes to both stdout and a timestamped file, rotating by size. The
// returned closer owns the log file.
func New(cfg Config) (*logrus.Logger, io.Closer, error) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 10 * 1024 * 1024 // 10MB
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}

	logger := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("bad log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	if cfg.JSONFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Directory == "" {
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", cfg.Directory, err)
	}

	path := filepath.Join(cfg.Directory, fmt.Sprintf("phealth_%s.log", time.Now().Format("2006-01-02")))
	if err := rotateIfNeeded(path, cfg.MaxSize, cfg.MaxBackups); err != nil {
		return nil, nil, fmt.Errorf("failed to rotate logs: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	return logger, file, nil
}

// rotateIfNeeded shifts path to path.1, path.1 to path.2 and so on once the
// file grows past maxSize.
func rotateIfNeeded(path string, maxSize int64, maxBackups int) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // File doesn't exist yet
	}
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	if info.Size() < maxSize {
		return nil
	}

	for i := maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", path, i)
		newPath := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath) // Ignore error, file might not exist
		}
	}

	if err := os.Rename(path, fmt.Sprintf("%s.1", path)); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
