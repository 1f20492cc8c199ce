package backend

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger is the package-level structured logger.
// All backend code should use this instead of fmt.Printf.
var Logger = slog.Default()

// InitLogger initialises the slog default logger.
// logLevel should be one of: "debug", "info", "warn", "error".
// The LOG_LEVEL environment variable overrides the config value.
//
// Besides stderr, output is duplicated into a timestamped file under the
// app temp logs/ directory so a failed run can be diagnosed after the
// process exits. File setup failures are non-fatal.
func InitLogger(logLevel string) {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		logLevel = env
	}

	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	out := io.Writer(os.Stderr)
	if f := openLogFile(); f != nil {
		out = io.MultiWriter(os.Stderr, f)
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	Logger = logger
}

func openLogFile() *os.File {
	dir, err := LogsDir()
	if err != nil {
		return nil
	}
	name := fmt.Sprintf("mscradio_%s.log", time.Now().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return f
}
