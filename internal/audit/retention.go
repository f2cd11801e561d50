package audit

import (
	"context"
	"time"

	"hotel-directory/pkg/logger"
)

// DefaultHorizonDays is the retention horizon used by the cleanup endpoint.
const DefaultHorizonDays = 90

// PurgeLock serializes bulk purges across API instances.
// TryAcquire returns ok=false without error when another purge holds it.
type PurgeLock interface {
	TryAcquire(ctx context.Context) (PurgeLease, bool, error)
}

// PurgeLease is a held PurgeLock. Release must only free this holder's claim.
type PurgeLease interface {
	Release(ctx context.Context) error
}

// Sweeper hard-deletes entries past the retention horizon.
//
// The delete is a single statement, so a purge either removes every eligible
// row or none. There is no archival. Callers must gate it behind an explicit
// administrator confirmation.
type Sweeper struct {
	repo  Repository
	lock  PurgeLock
	clock func() time.Time
}

// NewSweeper builds a sweeper. lock may be nil.
func NewSweeper(repo Repository, lock PurgeLock) *Sweeper {
	return &Sweeper{repo: repo, lock: lock, clock: time.Now}
}

// PurgeOlderThan deletes entries with CreatedAt < now - horizonDays and
// returns how many were removed.
func (s *Sweeper) PurgeOlderThan(ctx context.Context, horizonDays int) (int64, error) {
	if horizonDays < 1 {
		return 0, invalidArgf("horizon must be at least 1 day, got %d", horizonDays)
	}

	if s.lock != nil {
		lease, ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			return 0, storeErr("acquire purge lock", err)
		}
		if !ok {
			return 0, ErrPurgeInProgress
		}
		defer func() {
			// An error here usually means the lease expired mid-purge.
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.From(ctx).Warn("purge lock release failed", "err", err)
			}
		}()
	}

	cutoff := s.clock().UTC().Add(-time.Duration(horizonDays) * 24 * time.Hour)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, storeErr("purge", err)
	}

	logger.From(ctx).Info("activity logs purged", "deleted", n, "horizon_days", horizonDays, "cutoff", cutoff)
	return n, nil
}
