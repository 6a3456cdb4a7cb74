package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/italolelis/mosdac_downloader/internal/storage"
)

type DownloadReadRepository struct {
	db *sql.DB
}

func NewDownloadReadRepository(dbConn *sql.DB) *DownloadReadRepository {
	return &DownloadReadRepository{db: dbConn}
}

func (r *DownloadReadRepository) GetDownloads(ctx context.Context, datasetID string, limit int) ([]storage.DownloadRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT
			run_id,
			dataset_id,
			record_id,
			identifier,
			file_path,
			status,
			reason,
			recorded_at
		FROM downloads
		WHERE (? = '' OR dataset_id = ?)
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, datasetID, datasetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var downloads []storage.DownloadRecord

	for rows.Next() {
		var (
			record     storage.DownloadRecord
			recordID   sql.NullString
			filePath   sql.NullString
			reason     sql.NullString
			recordedAt string
		)

		if err := rows.Scan(&record.RunID, &record.DatasetID, &recordID, &record.Identifier,
			&filePath, &record.Status, &reason, &recordedAt); err != nil {
			return nil, err
		}

		record.RecordID = recordID.String
		record.FilePath = filePath.String
		record.Reason = reason.String

		record.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at %q: %w", recordedAt, err)
		}

		downloads = append(downloads, record)
	}

	return downloads, rows.Err()
}

// CountByStatus tallies the records of one run by status.
func (r *DownloadReadRepository) CountByStatus(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM downloads WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			status string
			n      int
		)

		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}

		counts[status] = n
	}

	return counts, rows.Err()
}
