package downloader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/mosdac"
	"github.com/italolelis/mosdac_downloader/internal/organizer"
	"github.com/italolelis/mosdac_downloader/internal/retry"
	"github.com/italolelis/mosdac_downloader/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	dirPerm = 0755

	// ChunkSize is how many bytes arrive between progress reports.
	ChunkSize = 1 << 20

	defaultTimeout = 5 * time.Second
	partSuffix     = ".part"
)

// Session supplies the bearer token for downloads and renews it when the
// server rejects it.
type Session interface {
	oauth2.TokenSource
	Refresh(ctx context.Context) error
}

// Downloader fetches catalog items to disk one at a time.
type Downloader struct {
	downloadURL string
	session     Session
	layout      organizer.Layout
	client      *http.Client
	timer       retry.Timer
	idleTimeout time.Duration
	observer    Observer
	telemetry   *telemetry.Telemetry
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithTimer replaces the clock used for retry and rate-limit waits.
func WithTimer(t retry.Timer) Option {
	return func(d *Downloader) {
		d.timer = t
	}
}

// WithIdleTimeout sets how long a connection may go without delivering any
// bytes before the attempt counts as a network failure.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		d.idleTimeout = timeout
	}
}

// WithObserver registers a listener for transfer start and progress.
func WithObserver(o Observer) Option {
	return func(d *Downloader) {
		d.observer = o
	}
}

// WithTelemetry records download metrics and spans.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(d *Downloader) {
		d.telemetry = t
	}
}

// WithHTTPTransport replaces the base transport beneath the bearer token
// injection.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(d *Downloader) {
		d.client = newHTTPClient(d.session, rt)
	}
}

// New creates a Downloader fetching from downloadURL with tokens from session.
func New(downloadURL string, session Session, layout organizer.Layout, opts ...Option) *Downloader {
	d := &Downloader{
		downloadURL: downloadURL,
		session:     session,
		layout:      layout,
		idleTimeout: defaultTimeout,
		observer:    nopObserver{},
	}

	d.client = newHTTPClient(session, defaultTransport(defaultTimeout))

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func defaultTransport(timeout time.Duration) http.RoundTripper {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}
}

func newHTTPClient(session Session, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: session,
			Base:   otelhttp.NewTransport(base),
		},
	}
}

// Fetch downloads one item. Skips are reported through the Result with a nil
// error. Any returned error ends the batch: a *FatalError, the context's
// error, or an unexpected local filesystem failure.
func (d *Downloader) Fetch(ctx context.Context, task Task) (Result, error) {
	logger := logctx.LoggerFromContext(ctx).With(
		"identifier", task.Item.Identifier,
		"record_id", task.Item.ID.String(),
	)
	ctx = logctx.WithLogger(ctx, logger)

	if !organizer.ValidName(task.Item.Identifier) {
		logger.Warn("item identifier is not a usable file name, skipping download")
		d.telemetry.RecordDownloadOutcome(string(OutcomeSkipped), string(SkipInvalidName))

		return skipped("", SkipInvalidName, "identifier is not a valid file name"), nil
	}

	dest := d.layout.Path(ctx, task.DatasetID, task.Item)

	if _, err := os.Stat(dest); err == nil {
		logger.Info("file already exists, skipping download", "path", dest)
		d.telemetry.RecordDownloadOutcome(string(OutcomeSkipped), string(SkipAlreadyPresent))

		return skipped(dest, SkipAlreadyPresent, "file already exists"), nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return Result{}, fileError(err, "failed to create target directory")
	}

	var result Result

	err := d.telemetry.InstrumentDownload(ctx, func(ctx context.Context) error {
		var err error

		result, err = d.fetchWithRefresh(ctx, task, dest)

		return err
	})
	if err != nil {
		return Result{}, err
	}

	d.telemetry.RecordDownloadOutcome(string(result.Outcome), string(result.Reason))

	return result, nil
}

// fetchWithRefresh renews the token once when the server rejects it and
// retries the item. A second rejection skips the item.
func (d *Downloader) fetchWithRefresh(ctx context.Context, task Task, dest string) (Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	result, err := d.fetchWithRetry(ctx, task, dest)
	if !errors.Is(err, mosdac.ErrTokenInvalid) {
		return result, err
	}

	logger.Info("access token rejected, refreshing session")

	if err := d.session.Refresh(ctx); err != nil {
		d.telemetry.RecordTokenRefresh("error")

		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		return Result{}, &FatalError{Kind: FatalRefreshFailed, Message: "the access token could not be refreshed", Err: err}
	}

	d.telemetry.RecordTokenRefresh("success")

	result, err = d.fetchWithRetry(ctx, task, dest)
	if errors.Is(err, mosdac.ErrTokenInvalid) {
		logger.Error("access token rejected again after refresh, skipping file")

		return skipped(dest, SkipTokenRejected, "token rejected after refresh"), nil
	}

	return result, err
}

// fetchWithRetry runs attempts on the network schedule. Exhausting the
// schedule skips the item.
func (d *Downloader) fetchWithRetry(ctx context.Context, task Task, dest string) (Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	var result Result

	notify := func(err error, wait time.Duration) {
		logger.Warn("network error, retrying", "err", err, "retry_in", wait)
		d.telemetry.RecordRetry(string(retry.KindNetwork))
	}

	err := retry.Do(ctx, retry.NetworkPolicy(), d.timer, notify, func(ctx context.Context) error {
		r, err := d.attemptRateLimited(ctx, task, dest)
		if err == nil {
			result = r

			return nil
		}

		var netErr *networkError
		if errors.As(err, &netErr) {
			return err
		}

		return retry.Permanent(err)
	})
	if err != nil {
		var netErr *networkError
		if errors.As(err, &netErr) && ctx.Err() == nil {
			logger.Error("download stopped after repeated network errors, skipping file", "err", err)

			return skipped(dest, SkipNetwork, netErr.Error()), nil
		}

		return Result{}, err
	}

	return result, nil
}

// attemptRateLimited repeats an attempt for as long as the server reports the
// per-minute limit, pausing between tries.
func (d *Downloader) attemptRateLimited(ctx context.Context, task Task, dest string) (Result, error) {
	logger := logctx.LoggerFromContext(ctx)
	pauses := retry.RateLimitPolicy()

	for {
		result, err := d.attempt(ctx, task, dest)

		var limited *rateLimitError
		if !errors.As(err, &limited) {
			return result, err
		}

		wait, _ := pauses.Next()

		logger.Warn("rate limit reached, pausing", "message", limited.Message, "pause", wait)
		d.telemetry.RecordRetry(string(retry.KindRateLimit))

		if err := retry.Sleep(ctx, d.timer, wait); err != nil {
			return Result{}, err
		}
	}
}

func fileError(err error, msg string) error {
	if errors.Is(err, fs.ErrPermission) {
		return &FatalError{Kind: FatalPermissionDenied, Message: "no permission to write to the download directory", Err: err}
	}

	return fmt.Errorf("%s: %w", msg, err)
}
