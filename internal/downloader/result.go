package downloader

import "github.com/italolelis/mosdac_downloader/internal/mosdac"

// Outcome is the final state of one item.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
)

// SkipReason explains why an item was not downloaded. A skip never stops the batch.
type SkipReason string

const (
	SkipAlreadyPresent SkipReason = "already_present"
	SkipInvalidName    SkipReason = "invalid_name"
	SkipValidation     SkipReason = "validation"
	SkipNotAvailable   SkipReason = "not_available"
	SkipNetwork        SkipReason = "network"
	SkipHTTPError      SkipReason = "http_error"
	SkipTokenRejected  SkipReason = "token_rejected"
)

// Task is one item to fetch together with its position in the batch.
type Task struct {
	DatasetID string
	Item      mosdac.DatasetItem
	Index     int
	Total     int
}

// Result describes what happened to a task.
type Result struct {
	Outcome Outcome
	Path    string
	Reason  SkipReason
	Message string
	Size    int64
}

func completed(path string, size int64) Result {
	return Result{Outcome: OutcomeCompleted, Path: path, Size: size}
}

func skipped(path string, reason SkipReason, message string) Result {
	return Result{Outcome: OutcomeSkipped, Path: path, Reason: reason, Message: message}
}

// Observer is told about transfers as they happen. Implementations must be
// cheap; they run on the download goroutine.
type Observer interface {
	Started(task Task, path string, size int64)
	Progress(task Task, read, total int64)
}

type nopObserver struct{}

func (nopObserver) Started(Task, string, int64) {}
func (nopObserver) Progress(Task, int64, int64) {}
