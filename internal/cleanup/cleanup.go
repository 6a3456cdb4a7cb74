package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/italolelis/mosdac_downloader/internal/logctx"
)

// PartSuffix marks an in-flight download next to its destination.
const PartSuffix = ".part"

// RemoveStaleParts deletes temporary download files left anywhere under dir
// by an interrupted run. dir must belong to this tool alone. A missing dir is
// not an error.
func RemoveStaleParts(ctx context.Context, dir string) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	removed := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), PartSuffix) {
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error("Failed to delete stale temporary file", "file", path, "err", err)

			return err
		}

		logger.Info("Deleted stale temporary file", "file", path)

		removed++

		return nil
	})
	if err != nil {
		return removed, err
	}

	return removed, nil
}
