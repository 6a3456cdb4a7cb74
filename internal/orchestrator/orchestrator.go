// Package orchestrator drives one batch: search, confirm, log in, page
// through results, download each item and always log out at the end.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/italolelis/mosdac_downloader/internal/downloader"
	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/mosdac"
	"github.com/italolelis/mosdac_downloader/internal/storage"
	"github.com/italolelis/mosdac_downloader/internal/telemetry"
)

// PageSize is how far startIndex advances between catalog pages.
const PageSize = 100

// ErrInterrupted is returned when the run's context is cancelled between items.
var ErrInterrupted = errors.New("download interrupted")

type Searcher interface {
	Count(ctx context.Context, q mosdac.SearchQuery) (mosdac.SearchSummary, error)
	Page(ctx context.Context, q mosdac.SearchQuery, startIndex int) ([]mosdac.DatasetItem, error)
	CheckReleased(ctx context.Context, datasetID string) (bool, error)
}

type Authenticator interface {
	Login(ctx context.Context) (mosdac.Session, error)
	Logout(ctx context.Context)
}

type Fetcher interface {
	Fetch(ctx context.Context, task downloader.Task) (downloader.Result, error)
}

// Metrics is the part of telemetry a run reports to. *telemetry.Telemetry
// satisfies it, including a nil one.
type Metrics interface {
	RecordSearchPage(entries int)
	RecordBytes(n int64)
	RecordSystemError(component, errorType string)
}

// Confirmer asks whether to go ahead once the size of the batch is known.
type Confirmer interface {
	Confirm(ctx context.Context, summary mosdac.SearchSummary) (bool, error)
}

// Reporter receives the user-facing milestones of a run.
type Reporter interface {
	Found(summary mosdac.SearchSummary)
	Finished(summary Summary)
}

// Summary is the outcome of a run.
type Summary struct {
	RunID      string
	DatasetID  string
	Total      int
	Downloaded int
	Skipped    int
	Duration   time.Duration
	// Complete is true when every reported item was processed, or the
	// catalog ran out of pages first.
	Complete bool
	Declined bool
	Err      error
}

// Options tunes a Runner.
type Options struct {
	RunID       string
	SkipConfirm bool
	Telemetry   Metrics
	Ledger      storage.DownloadWriteRepository
	Confirmer   Confirmer
	Reporter    Reporter
	Progress    *Progress
	Now         func() time.Time
}

// Runner executes batches.
type Runner struct {
	search Searcher
	auth   Authenticator
	fetch  Fetcher
	opts   Options
}

func NewRunner(search Searcher, auth Authenticator, fetch Fetcher, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.Telemetry == nil {
		opts.Telemetry = (*telemetry.Telemetry)(nil)
	}

	if opts.Progress == nil {
		opts.Progress = &Progress{}
	}

	if opts.RunID == "" {
		opts.RunID = storage.GenerateRunID()
	}

	return &Runner{search: search, auth: auth, fetch: fetch, opts: opts}
}

// Progress returns the live counters of the current run.
func (r *Runner) Progress() *Progress {
	return r.opts.Progress
}

// Run executes one batch for q. The returned error is nil for a completed,
// declined or empty batch. Once login has succeeded, logout is attempted
// exactly once however the run ends.
func (r *Runner) Run(ctx context.Context, q mosdac.SearchQuery) (Summary, error) {
	logger := logctx.LoggerFromContext(ctx).With("run_id", r.opts.RunID, "dataset_id", q.DatasetID)
	ctx = logctx.WithLogger(ctx, logger)

	start := r.opts.Now()
	summary := Summary{RunID: r.opts.RunID, DatasetID: q.DatasetID}

	finish := func(err error) (Summary, error) {
		summary.Duration = r.opts.Now().Sub(start)
		summary.Err = err
		r.opts.Progress.finish(err)

		if r.opts.Reporter != nil && !summary.Declined {
			r.opts.Reporter.Finished(summary)
		}

		return summary, err
	}

	found, err := r.search.Count(ctx, q)
	if err != nil {
		return finish(fmt.Errorf("failed to count search results: %w", err))
	}

	summary.Total = found.Total
	r.opts.Progress.start(r.opts.RunID, q.DatasetID, found.Total)

	if r.opts.Reporter != nil {
		r.opts.Reporter.Found(found)
	}

	if found.Total == 0 {
		logger.Info("no files found for the given search parameters")

		summary.Complete = true

		return finish(nil)
	}

	if r.opts.SkipConfirm {
		logger.Info("confirmation skipped, proceeding with download")
	} else if r.opts.Confirmer != nil {
		ok, err := r.opts.Confirmer.Confirm(ctx, found)
		if err != nil {
			return finish(fmt.Errorf("failed to read confirmation: %w", err))
		}

		if !ok {
			logger.Info("download declined by user")

			summary.Declined = true

			return finish(nil)
		}
	}

	if _, err := r.auth.Login(ctx); err != nil {
		return finish(err)
	}

	defer r.auth.Logout(context.WithoutCancel(ctx))

	if err := r.checkReleased(ctx, q.DatasetID); err != nil {
		return finish(err)
	}

	err = r.download(ctx, q, found.Total, &summary)

	return finish(err)
}

func (r *Runner) checkReleased(ctx context.Context, datasetID string) error {
	released, err := r.search.CheckReleased(ctx, datasetID)
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		logctx.LoggerFromContext(ctx).Error("failed to check whether the product is released, continuing", "err", err)

		return nil
	}

	if !released {
		return &downloader.FatalError{
			Kind:    downloader.FatalNotReleased,
			Message: "this product is not yet released on the internet, try a different dataset",
		}
	}

	return nil
}

func (r *Runner) download(ctx context.Context, q mosdac.SearchQuery, total int, summary *Summary) error {
	logger := logctx.LoggerFromContext(ctx)

	startIndex := q.StartIndex
	if startIndex < 1 {
		startIndex = 1
	}

	processed := 0

	for processed < total {
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		items, err := r.search.Page(ctx, q, startIndex)
		if err != nil {
			if ctx.Err() != nil {
				return ErrInterrupted
			}

			return fmt.Errorf("failed to fetch results page at %d: %w", startIndex, err)
		}

		r.opts.Telemetry.RecordSearchPage(len(items))

		if len(items) == 0 {
			logger.Info("no more results, stopping early", "processed", processed, "total", total)

			break
		}

		for _, item := range items {
			if processed >= total {
				break
			}

			if ctx.Err() != nil {
				return ErrInterrupted
			}

			processed++

			task := downloader.Task{DatasetID: q.DatasetID, Item: item, Index: processed, Total: total}

			result, err := r.fetch.Fetch(ctx, task)
			if err != nil {
				if ctx.Err() != nil {
					return ErrInterrupted
				}

				r.track(ctx, task, result, storage.StatusFailed, failureReason(err))
				r.opts.Telemetry.RecordSystemError("downloader", failureReason(err))

				return err
			}

			switch result.Outcome {
			case downloader.OutcomeCompleted:
				summary.Downloaded++
				r.opts.Progress.downloaded(result.Size)
				r.opts.Telemetry.RecordBytes(result.Size)
				r.track(ctx, task, result, storage.StatusDownloaded, "")
			default:
				summary.Skipped++
				r.opts.Progress.skipped()
				r.track(ctx, task, result, storage.StatusSkipped, string(result.Reason))
			}
		}

		startIndex += PageSize
	}

	summary.Complete = true

	return nil
}

func (r *Runner) track(ctx context.Context, task downloader.Task, result downloader.Result, status, reason string) {
	if r.opts.Ledger == nil {
		return
	}

	err := r.opts.Ledger.TrackDownload(ctx, storage.DownloadRecord{
		RunID:      r.opts.RunID,
		DatasetID:  task.DatasetID,
		RecordID:   task.Item.ID.String(),
		Identifier: task.Item.Identifier,
		FilePath:   result.Path,
		Status:     status,
		Reason:     reason,
		RecordedAt: r.opts.Now(),
	})
	if err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to record download in ledger", "identifier", task.Item.Identifier, "err", err)
	}
}

func failureReason(err error) string {
	if fatal, ok := downloader.IsFatal(err); ok {
		return string(fatal.Kind)
	}

	return "error"
}
