// Package logger installs the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BearBump/CargoTrack/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New собирает JSON-логгер в out; с cfg.File дублирует вывод в файл с ротацией.
// Возвращённый closer закрывает файл.
func New(cfg config.LogConfig, out io.Writer) (*slog.Logger, func() error) {
	closer := func() error { return nil }
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(out, lj)
		closer = lj.Close
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	return slog.New(h), closer
}

// Setup ставит логгер как slog.Default().
func Setup(cfg config.LogConfig) func() error {
	l, closer := New(cfg, os.Stdout)
	slog.SetDefault(l)
	return closer
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
