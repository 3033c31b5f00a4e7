package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hlsbox/logger"

	"github.com/gofrs/flock"
)

const (
	archiveGlob  = "*_hls_*.zip"
	lockFileName = ".sweep.lock"
)

// SweepResult summarizes one retention pass.
type SweepResult struct {
	Removed int
	Kept    int
	Skipped bool // another sweeper held the lock
}

// Sweeper deletes archives that were never collected, e.g. after a crash mid-response.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

// NewSweeper creates a Sweeper for dir removing archives older than maxAge.
func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	return &Sweeper{dir: dir, maxAge: maxAge, now: time.Now}
}

// Sweep runs one pass. Only one sweeper per directory runs at a time, across processes.
func (s *Sweeper) Sweep() (SweepResult, error) {
	var res SweepResult
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return res, fmt.Errorf("failed to create archive dir %s: %w", s.dir, err)
	}

	lock := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return res, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !locked {
		res.Skipped = true
		return res, nil
	}
	defer lock.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, archiveGlob))
	if err != nil {
		return res, err
	}
	cutoff := s.now().Add(-s.maxAge)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.ModTime().After(cutoff) {
			res.Kept++
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove stale archive", logger.String("path", path), logger.ErrorField(err))
			continue
		}
		res.Removed++
	}
	return res, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Sweep()
			if err != nil {
				logger.Warn("archive sweep failed", logger.ErrorField(err))
				continue
			}
			if res.Removed > 0 {
				logger.Info("archive sweep removed stale archives",
					logger.Int("removed", res.Removed),
					logger.Int("kept", res.Kept))
			}
		}
	}
}
