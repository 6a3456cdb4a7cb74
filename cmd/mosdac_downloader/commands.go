package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/italolelis/mosdac_downloader/internal/cleanup"
	"github.com/italolelis/mosdac_downloader/internal/config"
	"github.com/italolelis/mosdac_downloader/internal/console"
	"github.com/italolelis/mosdac_downloader/internal/downloader"
	"github.com/italolelis/mosdac_downloader/internal/http/rest"
	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/mosdac"
	"github.com/italolelis/mosdac_downloader/internal/notifier"
	"github.com/italolelis/mosdac_downloader/internal/orchestrator"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runDownload(ctx context.Context, flags rootFlags) error {
	ctx, a, err := setup(ctx, flags, config.LoadConfig)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	cfg := a.cfg
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("mosdac downloader starting...", "version", version, "dataset_id", cfg.Search.DatasetID, "download_path", cfg.Download.Path)

	// =========================================================================
	// Start Cleanup
	if dir, ok := cfg.Layout().DatasetDir(cfg.Search.DatasetID); ok {
		if removed, err := cleanup.RemoveStaleParts(ctx, dir); err != nil {
			logger.Warn("failed to remove stale temporary files", "err", err)
		} else if removed > 0 {
			logger.Info("removed stale temporary files", "count", removed)
		}
	}

	// =========================================================================
	// Start API Client
	client := mosdac.NewClient(cfg.Endpoints(), mosdac.NewHTTPClient(cfg.API.RequestTimeout), a.tel)
	auth := mosdac.NewAuthSession(client, cfg.Credentials(), mosdac.WithLogoutTimeout(cfg.API.LogoutTimeout))
	con := console.New(os.Stdin, os.Stdout)

	// =========================================================================
	// Start Downloader
	dl := downloader.New(client.Endpoints().DownloadURL(), auth, cfg.Layout(),
		downloader.WithIdleTimeout(cfg.Download.StallTimeout),
		downloader.WithObserver(con),
		downloader.WithTelemetry(a.tel),
	)

	runner := orchestrator.NewRunner(mosdac.NewSearchClient(client), auth, dl, orchestrator.Options{
		SkipConfirm: cfg.Download.SkipUserInput,
		Telemetry:   a.tel,
		Ledger:      a.ledger,
		Confirmer:   con,
		Reporter:    con,
	})

	var (
		summary orchestrator.Summary
		runErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	runDone := make(chan struct{})

	g.Go(func() error {
		defer close(runDone)

		summary, runErr = runner.Run(gctx, cfg.Query())

		return nil
	})

	// =========================================================================
	// Start Status Server
	if cfg.Web.BindAddress != "" {
		server := setupServer(gctx, cfg, rest.NewStatusHandler(runner.Progress(), a.tel))

		g.Go(func() error {
			logger.Info("Initializing status server", "host", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			select {
			case <-runDone:
			case <-gctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to gracefully shutdown the server", "err", err)

				if err := server.Close(); err != nil {
					return fmt.Errorf("could not stop server gracefully: %w", err)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	notify(ctx, notifier.New(cfg.DiscordWebhookURL, nil), summary, runErr)

	if counts, err := a.ledger.CountByStatus(context.WithoutCancel(ctx), summary.RunID); err != nil {
		logger.Warn("failed to read run totals from ledger", "err", err)
	} else {
		logger.Info("run recorded in ledger", "run_id", summary.RunID, "counts", counts)
	}

	return runErr
}

// setupServer prepares the status server.
func setupServer(ctx context.Context, cfg *config.Config, h *rest.StatusHandler) *http.Server {
	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      h.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func notify(ctx context.Context, n notifier.Notifier, summary orchestrator.Summary, runErr error) {
	if summary.Declined || (runErr == nil && summary.Total == 0) {
		return
	}

	var content string
	if runErr != nil {
		content = fmt.Sprintf("❌ MOSDAC download failed for %s: %v (%d downloaded, %d skipped)",
			summary.DatasetID, runErr, summary.Downloaded, summary.Skipped)
	} else {
		content = fmt.Sprintf("✅ MOSDAC download finished for %s: %d downloaded, %d skipped in %s",
			summary.DatasetID, summary.Downloaded, summary.Skipped, console.FormatDuration(summary.Duration))
	}

	if err := n.Notify(context.WithoutCancel(ctx), content); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to send notification", "run_id", summary.RunID, "err", err)
	}
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Count the catalog entries matching the configured search without downloading",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := setup(cmd.Context(), *flags, loadForSearch)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			client := mosdac.NewClient(a.cfg.Endpoints(), mosdac.NewHTTPClient(a.cfg.API.RequestTimeout), a.tel)

			summary, err := mosdac.NewSearchClient(client).Count(ctx, a.cfg.Query())
			if err != nil {
				return fmt.Errorf("failed to count search results: %w", err)
			}

			console.New(os.Stdin, cmd.OutOrStdout()).Found(summary)

			return nil
		},
	}
}

func loadForSearch(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateSearch(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var (
		datasetID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded download outcomes, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := setup(cmd.Context(), *flags, config.Load)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			records, err := a.ledger.GetDownloads(ctx, datasetID, limit)
			if err != nil {
				return fmt.Errorf("failed to read download ledger: %w", err)
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No downloads recorded yet.")

				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					humanize.Time(r.RecordedAt),
					r.RunID,
					r.DatasetID,
					r.Identifier,
					r.Status,
					r.Reason,
				})
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("WHEN", "RUN", "DATASET", "FILE", "STATUS", "REASON").
				Rows(rows...)

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			fmt.Fprintf(cmd.OutOrStdout(), "%d record(s) as of %s\n", len(records), time.Now().Format(time.RFC1123))

			return nil
		},
	}

	cmd.Flags().StringVarP(&datasetID, "dataset", "d", "", "only show records for this dataset id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of records, 0 for all")

	return cmd
}
