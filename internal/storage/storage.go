// Package storage defines the download ledger: one record per item outcome per run.
package storage

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
)

// Ledger statuses.
const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// DownloadRecord is what happened to one catalog item during one run.
type DownloadRecord struct {
	RunID      string
	DatasetID  string
	RecordID   string
	Identifier string
	FilePath   string
	Status     string
	Reason     string
	RecordedAt time.Time
}

type DownloadReadRepository interface {
	// GetDownloads lists records, newest first. An empty datasetID lists every dataset.
	GetDownloads(ctx context.Context, datasetID string, limit int) ([]DownloadRecord, error)
	CountByStatus(ctx context.Context, runID string) (map[string]int, error)
}

type DownloadWriteRepository interface {
	TrackDownload(ctx context.Context, record DownloadRecord) error
}

// GenerateRunID returns a unique string for this run (hostname+random).
func GenerateRunID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "mosdac"
	}

	return host + "-" + uuid.NewString()[:8]
}
