package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/mosdac_downloader/internal/downloader/progress"
	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/mosdac"
)

const (
	codeNoAccessToken = "NO_ACCESS_TOKEN"
	codeInvalidToken  = "INVALID_TOKEN"
	codeNotReleased   = "NOT_RELEASED"

	limitMinute = "minute_limit"
	limitDaily  = "daily_limit"
)

// attempt performs a single request for the item and, on success, streams it
// to a temporary file that is renamed into place once complete.
func (d *Downloader) attempt(ctx context.Context, task Task, dest string) (Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, d.downloadURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build download request: %w", err)
	}

	q := req.URL.Query()
	q.Set("id", task.Item.ID.String())
	req.URL.RawQuery = q.Encode()

	resp, err := d.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, mosdac.ErrNotAuthenticated):
			return Result{}, &FatalError{Kind: FatalMissingAuth, Message: "no access token available, log in first", Err: err}
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		default:
			return Result{}, &networkError{Err: err}
		}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return d.classify(ctx, resp, dest)
	}

	if !strings.Contains(resp.Header.Get("Content-Disposition"), "filename=") {
		logger.Warn("file not available on the server, skipping")

		return skipped(dest, SkipNotAvailable, "response carried no file"), nil
	}

	return d.stream(ctx, task, resp, dest, cancel)
}

// classify maps a non-200 answer onto a skip, a fatal stop, a token refresh
// or a rate-limit pause.
func (d *Downloader) classify(ctx context.Context, resp *http.Response, dest string) (Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := mosdac.ParseAPIError(resp.StatusCode, body)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		logger.Error("validation error", "err", apiErr.Text())

		return skipped(dest, SkipValidation, apiErr.Text()), nil

	case http.StatusUnauthorized:
		switch apiErr.Code {
		case codeNoAccessToken:
			return Result{}, &FatalError{Kind: FatalMissingAuth, Message: "access token not found, log in and try again", Err: apiErr}
		case codeInvalidToken:
			return Result{}, fmt.Errorf("%w: %s", mosdac.ErrTokenInvalid, apiErr.Text())
		}

	case http.StatusNotFound:
		if apiErr.Code == codeNotReleased {
			return Result{}, &FatalError{Kind: FatalNotReleased, Message: "this product is not yet released", Err: apiErr}
		}

		logger.Warn("file not available on the server, skipping")

		return skipped(dest, SkipNotAvailable, apiErr.Text()), nil

	case http.StatusTooManyRequests:
		switch apiErr.Type {
		case limitMinute:
			return Result{}, &rateLimitError{Message: apiErr.Text()}
		case limitDaily:
			return Result{}, &FatalError{Kind: FatalQuotaExhausted, Message: apiErr.Text(), Err: apiErr}
		}
	}

	logger.Error("unexpected response from download endpoint", "status", resp.StatusCode, "err", apiErr.Text())

	return skipped(dest, SkipHTTPError, apiErr.Error()), nil
}

func (d *Downloader) stream(
	ctx context.Context,
	task Task,
	resp *http.Response,
	dest string,
	cancel context.CancelCauseFunc,
) (Result, error) {
	logger := logctx.LoggerFromContext(ctx)
	tmp := dest + partSuffix

	if err := os.Remove(tmp); err == nil {
		logger.Info("incomplete download found, restarting", "path", tmp)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Result{}, fileError(err, "failed to remove incomplete download")
	}

	out, err := os.Create(tmp)
	if err != nil {
		return Result{}, fileError(err, "failed to create temporary file")
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	logger.Info("downloading file", "path", dest, "size", humanize.IBytes(uint64(total)))
	d.observer.Started(task, dest, total)

	idle := time.AfterFunc(d.idleTimeout, func() { cancel(errStalled) })
	defer idle.Stop()

	body := &idleReader{r: resp.Body, timer: idle, timeout: d.idleTimeout}
	pr := progress.NewReader(body, total, ChunkSize, func(read, total int64) {
		d.observer.Progress(task, read, total)
	})

	written, copyErr := io.Copy(out, pr)
	closeErr := out.Close()

	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}

	if copyErr == nil && total > 0 && written != total {
		copyErr = &readError{Err: fmt.Errorf("received %d of %d bytes", written, total)}
	}

	if copyErr != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Warn("failed to remove incomplete download", "path", tmp, "err", rmErr)
		}

		var rerr *readError
		switch {
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		case errors.As(copyErr, &rerr):
			return Result{}, &networkError{Err: copyErr}
		default:
			return Result{}, fileError(copyErr, "failed to write file")
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		return Result{}, fileError(err, "failed to move download into place")
	}

	logger.Info("download completed", "path", dest, "size", humanize.IBytes(uint64(written)))

	return completed(dest, written), nil
}

// idleReader pushes the stall deadline forward every time bytes arrive.
// Read failures are tagged so they are not mistaken for disk errors.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}

	if err != nil && err != io.EOF {
		return n, &readError{Err: err}
	}

	return n, err
}
