package share

import (
	"context"
	"log/slog"
	"time"

	"shared/internal/server/metrics"
)

// ContentDeleter is the slice of the content store the sweeper needs.
type ContentDeleter interface {
	Delete(ref string) error
}

// Sweeper periodically purges expired shares: registry entry first,
// then backing content, then the quota reservation. Each share goes
// through that sequence exactly once because TakeExpired hands it out
// exactly once.
type Sweeper struct {
	registry *Registry
	quota    *Quota
	store    ContentDeleter
	interval time.Duration
	done     chan struct{}
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(registry *Registry, quota *Quota, store ContentDeleter, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry: registry,
		quota:    quota,
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("sweeper started", "interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run once immediately on start
		s.sweep(time.Now())

		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now())
			case <-ctx.Done():
				slog.Info("sweeper stopping")
				close(s.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweep loop has fully stopped.
func (s *Sweeper) Wait() {
	<-s.done
}

// sweep performs one cleanup pass. A disk deletion failure is logged
// and skipped; it never aborts the rest of the pass and never holds
// back the quota release, so transient disk errors cannot leak quota.
func (s *Sweeper) sweep(now time.Time) {
	expired := s.registry.TakeExpired(now)
	if len(expired) == 0 {
		return
	}

	var freed int64
	var failed int
	for _, rec := range expired {
		for _, f := range rec.Files {
			if err := s.store.Delete(f.ContentRef); err != nil {
				slog.Error("failed to delete file content",
					"code", rec.Code,
					"file", f.OriginalName,
					"error", err,
				)
				failed++
			}
		}

		// Quota is released on registry removal, not on clean disk
		// deletion, and exactly once per share.
		s.quota.Release(rec.TotalBytes)
		freed += rec.TotalBytes

		slog.Info("removed expired share",
			"code", rec.Code,
			"files", len(rec.Files),
			"bytes", rec.TotalBytes,
			"expired_at", rec.ExpiresAt,
		)
	}

	if m := metrics.Get(); m != nil {
		m.SweptShares.Add(float64(len(expired)))
		m.ReclaimedBytes.Add(float64(freed))
		m.ActiveShares.Set(float64(s.registry.Len()))
		m.StorageUsedBytes.Set(float64(s.quota.Used()))
	}

	slog.Info("sweep complete",
		"removed", len(expired),
		"freed_bytes", freed,
		"delete_failures", failed,
		"used_bytes", s.quota.Used(),
	)
}
