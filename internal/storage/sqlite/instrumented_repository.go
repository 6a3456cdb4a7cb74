package sqlite

import (
	"context"
	"database/sql"

	"github.com/italolelis/mosdac_downloader/internal/storage"
	"github.com/italolelis/mosdac_downloader/internal/telemetry"
)

var (
	_ storage.DownloadReadRepository  = (*InstrumentedDownloadRepository)(nil)
	_ storage.DownloadWriteRepository = (*InstrumentedDownloadRepository)(nil)
)

// InstrumentedDownloadRepository wraps DownloadRepository with telemetry.
type InstrumentedDownloadRepository struct {
	repo      *DownloadRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedDownloadRepository creates a new instrumented download repository.
func NewInstrumentedDownloadRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedDownloadRepository {
	return &InstrumentedDownloadRepository{
		repo:      NewDownloadRepository(dbConn),
		telemetry: tel,
	}
}

// GetDownloads retrieves ledger records with telemetry.
func (r *InstrumentedDownloadRepository) GetDownloads(ctx context.Context, datasetID string, limit int) ([]storage.DownloadRecord, error) {
	var result []storage.DownloadRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_downloads", func(ctx context.Context) error {
		var err error

		result, err = r.repo.GetDownloads(ctx, datasetID, limit)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CountByStatus tallies a run with telemetry.
func (r *InstrumentedDownloadRepository) CountByStatus(ctx context.Context, runID string) (map[string]int, error) {
	var result map[string]int

	err := r.telemetry.InstrumentDBOperation(ctx, "count_by_status", func(ctx context.Context) error {
		var err error

		result, err = r.repo.CountByStatus(ctx, runID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// TrackDownload records an item outcome with telemetry.
func (r *InstrumentedDownloadRepository) TrackDownload(ctx context.Context, rec storage.DownloadRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "track_download", func(ctx context.Context) error {
		return r.repo.TrackDownload(ctx, rec)
	})
}
