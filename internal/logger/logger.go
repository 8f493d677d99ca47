// Package logger provides the structured logging every other package
// in the module uses. Grounded on the teacher's internal/logger: a
// package-level slog.Logger built from a handler factory that emits
// either JSON or a logfmt-ish text form, with severity levels TRACE
// and DEBUG layered below slog's built-in INFO/WARN/ERROR, and
// optional on-disk rotation via lumberjack when a file path is
// configured.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels below slog.LevelInfo, matching the spec's TRACE/DEBUG
// distinction (gcsfuse's logger does the same below slog.LevelDebug).
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.Level(-4)
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type loggerFactory struct {
	format string
	prefix string
}

func (f *loggerFactory) createJSONOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
			case slog.MessageKey:
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
			return a
		},
	}

	if f.format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

var (
	defaultLoggerFactory = &loggerFactory{format: FormatText}
	programLevel         = new(slog.LevelVar)
	defaultLogger        = slog.New(defaultLoggerFactory.createJSONOrTextHandler(os.Stderr, programLevel, ""))
)

// Config controls how Init builds the default logger.
type Config struct {
	// Format is "text" or "json".
	Format string
	// Level is one of "trace", "debug", "info", "warning", "error", "off".
	Level string
	// FilePath, if non-empty, routes output through a rotating
	// lumberjack writer instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init (re)configures the package-level logger. Safe to call once at
// startup; not safe for concurrent use with logging calls.
func Init(cfg Config) {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		const asyncBufSize = 256
		w = NewAsyncLogger(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		}, asyncBufSize)
	}

	format := cfg.Format
	if format == "" {
		format = FormatText
	}
	defaultLoggerFactory = &loggerFactory{format: format}

	setLevel(cfg.Level)
	defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(w, programLevel, ""))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func setLevel(level string) {
	switch level {
	case "trace":
		programLevel.Set(LevelTrace)
	case "debug":
		programLevel.Set(LevelDebug)
	case "warning":
		programLevel.Set(slog.LevelWarn)
	case "error":
		programLevel.Set(slog.LevelError)
	case "off":
		programLevel.Set(slog.Level(1 << 20))
	default:
		programLevel.Set(slog.LevelInfo)
	}
}

// Named returns a logger that tags every record with a "component"
// attribute, the way each core component (Index, Store, Scheduler, ...)
// should identify itself in logs.
func Named(component string) *slog.Logger {
	return defaultLogger.With("component", component)
}

func Tracef(format string, args ...any) { logf(context.Background(), LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(context.Background(), LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(context.Background(), slog.LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(context.Background(), slog.LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(context.Background(), slog.LevelError, format, args...) }

func logf(ctx context.Context, level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
