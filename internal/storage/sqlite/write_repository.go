package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/mosdac_downloader/internal/storage"
)

// DownloadWriteRepository implements storage.DownloadWriteRepository
// and stores download records in SQLite.
type DownloadWriteRepository struct {
	db *sql.DB
}

func NewDownloadWriteRepository(db *sql.DB) *DownloadWriteRepository {
	return &DownloadWriteRepository{db: db}
}

func (r *DownloadWriteRepository) TrackDownload(ctx context.Context, rec storage.DownloadRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO downloads (run_id, dataset_id, record_id, identifier, file_path, status, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.DatasetID, rec.RecordID, rec.Identifier, rec.FilePath, rec.Status, rec.Reason,
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	)

	return err
}
