package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/italolelis/mosdac_downloader/internal/config"
	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/orchestrator"
	"github.com/italolelis/mosdac_downloader/internal/storage/sqlite"
	"github.com/italolelis/mosdac_downloader/internal/telemetry"
	"github.com/spf13/cobra"
)

var version = "dev"

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitInterrupted = 130
)

type rootFlags struct {
	configPath string
	logLevel   string
	yes        bool
}

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "mosdac_downloader",
		Short:         "Bulk downloader for the MOSDAC satellite data catalog",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDownload(cmd.Context(), flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config.json (defaults to ./config.json when present)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "download without asking for confirmation")

	rootCmd.AddCommand(newSearchCmd(&flags), newHistoryCmd(&flags))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		return exitCode(err)
	}

	return exitOK
}

func exitCode(err error) int {
	var cerr *config.ConfigError

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cerr):
		return exitConfig
	case errors.Is(err, orchestrator.ErrInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailure
	}
}

// app holds what every command shares.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	db     *sql.DB
	ledger *sqlite.InstrumentedDownloadRepository

	closers []io.Closer
}

type loader func(path string) (*config.Config, error)

// setup loads the configuration and starts logging, telemetry and the ledger.
func setup(ctx context.Context, flags rootFlags, load loader) (context.Context, *app, error) {
	cfg, err := load(flags.configPath)
	if err != nil {
		return ctx, nil, err
	}

	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	if flags.yes {
		cfg.Download.SkipUserInput = true
	}

	logger, logCloser, err := logctx.NewLogger(logctx.Options{
		Level:         cfg.SlogLevel(),
		Format:        cfg.LogFormat,
		ErrorLogDir:   cfg.ErrorLogDir(),
		ErrorLogLevel: cfg.ErrorSlogLevel(),
	})
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return ctx, nil, &config.ConfigError{Fields: []config.FieldError{{
				Field:  "error_logs_dir",
				Value:  cfg.Download.ErrorLogsDir,
				Reason: "no permission to write, update the directory permissions or use another directory",
			}}}
		}

		return ctx, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	slog.SetDefault(logger)
	ctx = logctx.WithLogger(ctx, logger)

	a := &app{cfg: cfg, closers: []io.Closer{logCloser}}

	a.tel, err = telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "mosdac_downloader",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		a.close(ctx)

		return ctx, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a.db, err = sqlite.InitDB(ctx, cfg.DBPath)
	if err != nil {
		a.close(ctx)

		return ctx, nil, fmt.Errorf("failed to open download ledger: %w", err)
	}

	a.ledger = sqlite.NewInstrumentedDownloadRepository(a.db, a.tel)

	return ctx, a, nil
}

func (a *app) close(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	if err := a.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("failed to shut down telemetry", "err", err)
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("failed to close download ledger", "err", err)
		}
	}

	for _, c := range a.closers {
		_ = c.Close()
	}
}
