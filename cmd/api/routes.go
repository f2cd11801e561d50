package main

import (
	"context"
	"database/sql"
	"time"

	"hotel-directory/internal/audit"
	"hotel-directory/internal/config"
	"hotel-directory/internal/httpapi"
	"hotel-directory/internal/reporting"
	"hotel-directory/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// A purge that outlives purgeLockTTL stops being exclusive; the sweeper logs it.
const (
	purgeLockKey = "activity-logs:purge"
	purgeLockTTL = 5 * time.Minute
)

// buildHandlers wires services to their stores.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func buildHandlers(cfg config.Config, db *sql.DB, rdb *redis.Client, pub audit.Publisher) httpapi.Handlers {
	repo := audit.NewPostgresRepo(db)

	return httpapi.Handlers{
		Activity: audit.NewService(repo, audit.Options{
			Publisher:   pub,
			MaxPageSize: cfg.Activity.MaxPageSize,
		}),
		Stats:   reporting.NewService(repo),
		Sweeper: audit.NewSweeper(repo, purgeLock{utils.NewLock(rdb, purgeLockKey, purgeLockTTL)}),
		DB:      db,

		DefaultPageSize: cfg.Activity.DefaultPageSize,
		RetentionDays:   cfg.Activity.RetentionDays,
	}
}

// purgeLock adapts the Redis lock to audit.PurgeLock.
type purgeLock struct{ *utils.Lock }

func (l purgeLock) TryAcquire(ctx context.Context) (audit.PurgeLease, bool, error) {
	lease, ok, err := l.Lock.TryAcquire(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	return lease, true, nil
}
