package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

const serviceName = "grayhub"

// Logger is an slog.Logger that also satisfies the four-method Logger
// interfaces the hub packages declare, so one value is handed everywhere.
type Logger struct {
	*slog.Logger

	// file is the rotating writer behind a file logger.
	file io.Closer
}

// New writes to the destination named by cfg.Output: stdout (default),
// stderr or a lumberjack-rotated file.
func New(cfg config.LoggingConfig, version string) *Logger {
	var (
		w    io.Writer = os.Stdout
		file io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		w = os.Stderr
	case "file":
		rotating := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		w, file = rotating, rotating
	}

	l := NewWithWriter(w, cfg, version)
	l.file = file
	return l
}

// NewWithWriter writes to w in the format and at the level of cfg; its
// Output is ignored. Tests pass a buffer.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

// Default logs JSON at info to stdout until the config is loaded.
func Default() *Logger {
	return NewWithWriter(os.Stdout, config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// parseLevel accepts debug, info, warn (or warning) and error in any case;
// anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child carrying args on every entry.
//
//	log.With("device", "arduino1").Info("connected", "port", "/dev/ttyACM0")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags a child with the subsystem name.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Close releases the log file. Children share it and must not outlive
// their parent's Close.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
