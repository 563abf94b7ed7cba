// Package logging builds the console logger: slog with a tint handler, plus
// level parsing that accepts the bot's numeric verbosity.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a console logger writing to w at the given level. Colors are
// used only when w is a terminal-backed *os.File.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
	})

	return slog.New(handler)
}

// Init installs a stderr logger at level as the slog default.
func Init(level slog.Level) *slog.Logger {
	logger := New(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel accepts a numeric verbosity (0 fail, 1 warn, 2 note, 3 debug)
// or a level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "fail", "error":
		return slog.LevelError, nil
	case "1", "warn", "warning":
		return slog.LevelWarn, nil
	case "", "2", "note", "info":
		return slog.LevelInfo, nil
	case "3", "debug":
		return slog.LevelDebug, nil
	}

	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
