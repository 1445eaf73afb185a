// Package expiration reclaims seats from reservations whose deadline passed.
package expiration

import (
	"context"
	"sync"
	"time"

	"boxoffice/internal/reservations"
	"boxoffice/pkg/logger"
)

// Stats summarizes one sweep pass
type Stats struct {
	StartedAt     time.Time     `json:"started_at"`
	Scanned       int           `json:"scanned"`
	Expired       int           `json:"expired"`
	SeatsReleased int64         `json:"seats_released"`
	Failed        int           `json:"failed"`
	Skipped       bool          `json:"skipped"`
	Duration      time.Duration `json:"duration_ns"`
}

// Sweeper expires due reservations in batches, one transaction per reservation
type Sweeper struct {
	system    reservations.SystemService
	lease     Lease
	batchSize int

	mu   sync.RWMutex
	last *Stats
}

// NewSweeper creates a sweeper. lease may be nil.
func NewSweeper(system reservations.SystemService, lease Lease, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		system:    system,
		lease:     lease,
		batchSize: batchSize,
	}
}

// Sweep runs one pass. Per-reservation failures are counted and logged, and
// the reservation is retried on the next pass.
func (s *Sweeper) Sweep(ctx context.Context) (Stats, error) {
	stats := Stats{StartedAt: time.Now().UTC()}
	log := logger.GetDefault()

	if s.lease != nil {
		acquired, err := s.lease.Acquire(ctx)
		switch {
		case err != nil:
			log.WarnContext(ctx, "sweep lease unavailable, sweeping anyway", "error", err)
		case !acquired:
			stats.Skipped = true
			s.record(stats)
			log.DebugContext(ctx, "sweep skipped, lease held elsewhere")
			return stats, nil
		default:
			defer func() {
				if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
					log.WarnContext(ctx, "sweep lease release failed", "error", err)
				}
			}()
		}
	}

	for {
		due, err := s.system.FindExpired(ctx, s.batchSize)
		if err != nil {
			stats.Duration = time.Since(stats.StartedAt)
			s.record(stats)
			return stats, err
		}
		stats.Scanned += len(due)

		progressed := 0
		for i := range due {
			if ctx.Err() != nil {
				break
			}
			result, err := s.system.Expire(ctx, &due[i])
			if err != nil {
				stats.Failed++
				log.ErrorWithContext(ctx, "failed to expire reservation", err, map[string]interface{}{
					"reservation_id": due[i].ID.String(),
				})
				continue
			}
			progressed++
			if result.Expired {
				stats.Expired++
				stats.SeatsReleased += result.SeatsReleased
			}
		}

		// A short batch means nothing else is due; no progress means only failures are left
		if len(due) < s.batchSize || progressed == 0 || ctx.Err() != nil {
			break
		}
	}

	stats.Duration = time.Since(stats.StartedAt)
	s.record(stats)
	log.LogSweepCompleted(ctx, stats.Scanned, stats.Expired, stats.SeatsReleased, stats.Failed, stats.Duration)
	return stats, nil
}

// LastRun returns the stats of the most recent pass, or nil before the first one
func (s *Sweeper) LastRun() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	last := *s.last
	return &last
}

func (s *Sweeper) record(stats Stats) {
	s.mu.Lock()
	s.last = &stats
	s.mu.Unlock()
}
