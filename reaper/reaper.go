// Package reaper deletes posts past their expiry time on a fixed interval,
// independent of request traffic.
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// A Store deletes expired posts from durable storage.
type Store interface {
	DeleteExpiredPosts(ctx context.Context, now time.Time) (int64, error)
}

// A Cache prunes expired posts from the cache layer.
type Cache interface {
	RemoveExpired(ctx context.Context, now time.Time) (int, error)
}

// Reaper periodically sweeps expired posts.
type Reaper struct {
	Logger *slog.Logger
	Store  Store
	Cache  Cache // optional

	// Interval between sweeps. Defaults to five minutes.
	Interval time.Duration
}

// Run sweeps on a fixed interval until ctx is cancelled and returns ctx's
// error. A failed sweep is logged and retried on the next tick; it never
// stops the loop.
func (rp *Reaper) Run(ctx context.Context) error {
	interval := rp.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			rp.Sweep(ctx, now)
		}
	}
}

// Sweep deletes every post whose expiry time has passed. It is idempotent: a
// second sweep with no intervening writes deletes nothing.
func (rp *Reaper) Sweep(ctx context.Context, now time.Time) {
	deleted, err := rp.Store.DeleteExpiredPosts(ctx, now)
	switch {
	case err != nil:
		rp.Logger.Error("Could not delete expired posts", "error", err.Error())
	case deleted > 0:
		rp.Logger.Info("Deleted expired posts", "count", deleted)
	}

	if rp.Cache == nil {
		return
	}
	if _, err := rp.Cache.RemoveExpired(ctx, now); err != nil {
		rp.Logger.Error("Could not prune expired posts from cache", "error", err.Error())
	}
}
