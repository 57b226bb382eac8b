// Package logger is the tagged console logger used across the toolkit.
// Every line carries a short component tag ("MC", "OPT", "DB", ...).
// Output goes through log/slog, optionally rotated to a file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and destination.
type Config struct {
	Level      string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" json:"format"` // text or json
	Output     string `mapstructure:"output" json:"output"` // console (stderr), file, both
	FilePath   string `mapstructure:"file_path" json:"file_path"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"` // days
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// console resolves os.Stderr at write time so redirections are honoured.
// Stdout is left to command output.
type console struct{}

func (console) Write(p []byte) (int, error) { return os.Stderr.Write(p) }

var (
	mu      sync.RWMutex
	current = slog.New(slog.NewTextHandler(console{}, nil))
	rotator *lumberjack.Logger
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init replaces the package logger. Call Close to flush a rotated file.
func Init(cfg Config) error {
	var out io.Writer = console{}
	var rot *lumberjack.Logger

	if cfg.Output == "file" || cfg.Output == "both" {
		if cfg.FilePath == "" {
			return fmt.Errorf("logger: output %q needs a file path", cfg.Output)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		rot = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "file" {
			out = rot
		} else {
			out = io.MultiWriter(console{}, rot)
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	mu.Lock()
	old := rotator
	current = slog.New(h)
	rotator = rot
	mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Close releases the rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

// Get returns the underlying structured logger.
func Get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Debug(tag, msg string, args ...any) {
	Get().Debug(msg, append([]any{"tag", tag}, args...)...)
}

func Info(tag, msg string, args ...any) {
	Get().Info(msg, append([]any{"tag", tag}, args...)...)
}

// Success logs a completed step at info level.
func Success(tag, msg string, args ...any) {
	Get().Info(msg, append([]any{"tag", tag, "status", "ok"}, args...)...)
}

func Warn(tag, msg string, args ...any) {
	Get().Warn(msg, append([]any{"tag", tag}, args...)...)
}

func Error(tag, msg string, args ...any) {
	Get().Error(msg, append([]any{"tag", tag}, args...)...)
}

// Banner prints the startup banner straight to the console.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Fprintln(os.Stderr, "  ┌────────────────────────────────┐")
	fmt.Fprintf(os.Stderr, "  │  risk-models %-17s │\n", version)
	fmt.Fprintln(os.Stderr, "  │  monte carlo · markowitz · var │")
	fmt.Fprintln(os.Stderr, "  └────────────────────────────────┘")
}

// Section prints a heading line between CLI report blocks.
func Section(title string) {
	fmt.Fprintf(os.Stderr, "\n── %s %s\n", title, strings.Repeat("─", max(0, 40-len(title))))
}

// Stats prints one aligned key/value line.
func Stats(key string, value any) {
	fmt.Fprintf(os.Stderr, "  %-24s %v\n", key, value)
}
