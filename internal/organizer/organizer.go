// Package organizer decides where a catalog item lands on disk.
package organizer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/mosdac"
)

// Layout places downloads under a root directory, optionally grouped by
// dataset and acquisition date.
type Layout struct {
	Root   string
	ByDate bool
}

// Dir returns the directory for item. With date grouping the result is
// root/datasetId/YYYY/DDMON using the item's UTC timestamp; items without a
// usable timestamp fall back to root/datasetId.
func (l Layout) Dir(ctx context.Context, datasetID string, item mosdac.DatasetItem) string {
	if !l.ByDate {
		return l.Root
	}

	datasetDir := filepath.Join(l.Root, datasetID)

	ts, ok := item.UpdatedAt()
	if !ok {
		logctx.LoggerFromContext(ctx).Warn("item has no usable timestamp, storing under dataset directory",
			"identifier", item.Identifier,
			"updated", item.Updated,
		)

		return datasetDir
	}

	return filepath.Join(datasetDir, ts.Format("2006"), strings.ToUpper(ts.Format("02Jan")))
}

// DatasetDir returns the directory owned by datasetID. Only date grouping
// gives a dataset its own directory; a flat root is shared with other files.
func (l Layout) DatasetDir(datasetID string) (string, bool) {
	if !l.ByDate || !ValidName(datasetID) {
		return "", false
	}

	return filepath.Join(l.Root, datasetID), true
}

// ValidName reports whether a catalog identifier can be used as a file name
// directly inside the item's directory.
func ValidName(id string) bool {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return false
	}

	return filepath.Base(id) == id
}

// Path returns the final destination file for item. Callers check the
// identifier with ValidName first.
func (l Layout) Path(ctx context.Context, datasetID string, item mosdac.DatasetItem) string {
	return filepath.Join(l.Dir(ctx, datasetID, item), item.Identifier)
}
