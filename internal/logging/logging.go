// Package logging builds the application's slog handler from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"pagewatch/internal/config"
)

// New returns a logger configured for the current environment: a text
// handler on stderr for development and tests, a JSON handler writing to a
// rotating file in production.
func New(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.GetLogLevel())

	var output io.Writer = os.Stderr
	if cfg.IsProduction() {
		output = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
			MaxSize:    cfg.LogsMaxSizeInMb,
			MaxBackups: cfg.LogsMaxBackups,
			MaxAge:     cfg.LogsMaxAgeInDays,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case string(config.LogLevelDebug):
		return slog.LevelDebug
	case string(config.LogLevelInfo):
		return slog.LevelInfo
	case string(config.LogLevelWarn):
		return slog.LevelWarn
	case string(config.LogLevelError):
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
