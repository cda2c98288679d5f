package history

import (
	"context"
	"log"
	"time"
)

// Purger deletes history older than a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper purges history older than the retention horizon on a fixed
// interval. It runs independently of the ingestion pipeline and never
// blocks it.
type Sweeper struct {
	purger   Purger
	horizon  time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates an hourly retention sweeper.
func NewSweeper(purger Purger, horizon time.Duration) *Sweeper {
	return &Sweeper{
		purger:   purger,
		horizon:  horizon,
		interval: time.Hour,
		now:      time.Now,
	}
}

// Run sweeps until ctx is done. A zero or negative horizon disables the
// sweeper entirely.
func (s *Sweeper) Run(ctx context.Context) {
	if s.horizon <= 0 {
		return
	}

	log.Printf("history: retention sweeper started, horizon=%v", s.horizon)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("history: retention sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs a single purge pass. Failures are logged and retried
// on the next tick.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.horizon)
	deleted, err := s.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		log.Printf("history: retention purge failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("history: purged %d rows older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}
