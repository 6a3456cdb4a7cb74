package logctx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// ErrorLogLayout names the daily error log file, e.g. 09-01-2024_error.log.
const ErrorLogLayout = "02-01-2006"

// Options configures the process logger.
type Options struct {
	Level  slog.Level
	Format string // "text" or "json"
	Output io.Writer

	// ErrorLogDir enables a JSON error log next to the console output. Empty disables it.
	ErrorLogDir   string
	ErrorLogLevel slog.Level
	Now           func() time.Time
}

// NewLogger builds the console logger, optionally fanned out to a daily error
// log file. The returned closer releases the file and is never nil.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var console slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		console = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		console = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	if opts.ErrorLogDir == "" {
		return slog.New(NewTraceHandler(console)), io.NopCloser(nil), nil
	}

	f, err := OpenErrorLog(opts.ErrorLogDir, opts.Now)
	if err != nil {
		return nil, nil, err
	}

	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.ErrorLogLevel, AddSource: true})

	return slog.New(NewTraceHandler(slogmulti.Fanout(console, fileHandler))), f, nil
}

// OpenErrorLog opens, for appending, today's error log inside dir.
func OpenErrorLog(dir string, now func() time.Time) (*os.File, error) {
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create error log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, now().Format(ErrorLogLayout)+"_error.log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log %s: %w", path, err)
	}

	return f, nil
}
