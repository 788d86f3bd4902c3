package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = []string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "INFO"
	}
	return levelNames[l]
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a Level. Unknown names
// fall back to LevelInfo.
func ParseLevel(name string) Level {
	for i, n := range levelNames {
		if strings.EqualFold(n, name) {
			return Level(i)
		}
	}
	return LevelInfo
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config holds logger configuration.
type Config struct {
	Level     string // DEBUG, INFO, WARN, ERROR
	Format    string // json, text
	AddSource bool
}

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	logger   = newLogger(os.Stderr, "text", false)
)

func newLogger(w io.Writer, format string, addSource bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelVar, AddSource: addSource}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init configures the package logger writing to stderr.
func Init(cfg Config) {
	InitWriter(os.Stderr, cfg)
}

// InitWriter configures the package logger writing to w.
func InitWriter(w io.Writer, cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	levelVar.Set(ParseLevel(cfg.Level).slog())
	logger = newLogger(w, cfg.Format, cfg.AddSource)
}

func SetLevel(level Level) {
	levelVar.Set(level.slog())
}

// Get returns the package logger.
func Get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Enabled reports whether records at level would be emitted.
func Enabled(level Level) bool {
	return Get().Enabled(context.Background(), level.slog())
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// With returns a logger carrying the given attributes, e.g. a scan run id.
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}
