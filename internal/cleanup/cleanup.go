package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/italolelis/trackbot/internal/logctx"
)

// SweepStaleArtifacts deletes request directories older than keepFor from the
// downloads dir. The per-request cleanup already removes them on every normal
// path; this sweep catches directories orphaned by a crash or kill.
func SweepStaleArtifacts(ctx context.Context, dir string, keepFor time.Duration) error {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		logger.Error("failed to read downloads dir", "dir", dir, "err", err)

		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logger.Error("failed to stat request dir", "dir", path, "err", err)

			continue
		}

		if now.Sub(info.ModTime()) <= keepFor {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			logger.Error("failed to delete stale request dir", "dir", path, "err", err)

			return err
		}

		logger.Info("deleted stale request dir", "dir", path)
	}

	return nil
}
