package downloads

import (
	"context"
	"time"
)

const (
	pruneBatchSize  = 200
	pruneMaxBatches = 10
)

// PruneExpiredDedupes deletes dedupe rows older than the retention window in
// small batches so one run never holds a long transaction. At most
// pruneMaxBatches batches are deleted per run; a larger backlog drains over
// subsequent runs. Returns the number of rows removed.
func (s *Service) PruneExpiredDedupes(ctx context.Context) (int64, error) {
	cutoff := DayStart(s.now().Add(-s.cfg.DedupeRetention))

	var total int64
	for i := 0; i < pruneMaxBatches; i++ {
		deleted, err := s.stores.Dedupes.PruneBefore(ctx, cutoff, pruneBatchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < pruneBatchSize {
			break
		}
	}
	if total > 0 {
		s.log.Info("pruned download dedupes", "deleted", total)
	}
	s.metrics.PruneRun(total)
	return total, nil
}

// RunPruneLoop prunes on the configured interval until ctx is cancelled.
// Errors are logged and the loop keeps going; a failed run retries on the
// next tick.
func (s *Service) RunPruneLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.PruneExpiredDedupes(ctx); err != nil {
				s.log.Error("dedupe prune failed", "error", err)
			}
		}
	}
}
