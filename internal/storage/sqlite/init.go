package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// DefaultFile is the ledger location when none is configured.
const DefaultFile = "mosdac_downloads.db"

// InitDB opens the SQLite ledger at path and creates the downloads table if it doesn't exist.
func InitDB(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultFile
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		dataset_id TEXT NOT NULL,
		record_id TEXT,
		identifier TEXT NOT NULL,
		file_path TEXT,
		status TEXT NOT NULL,
		reason TEXT,
		recorded_at DATETIME NOT NULL
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create downloads table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_downloads_dataset ON downloads (dataset_id, recorded_at)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create downloads index: %w", err)
	}

	return db, nil
}
