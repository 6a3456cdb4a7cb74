package sqlite

import (
	"database/sql"
)

// DownloadRepository is the read and write side of the ledger over one connection.
type DownloadRepository struct {
	*DownloadReadRepository
	*DownloadWriteRepository
}

func NewDownloadRepository(dbConn *sql.DB) *DownloadRepository {
	return &DownloadRepository{
		DownloadReadRepository:  NewDownloadReadRepository(dbConn),
		DownloadWriteRepository: NewDownloadWriteRepository(dbConn),
	}
}
