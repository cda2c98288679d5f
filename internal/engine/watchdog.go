package engine

import (
	"context"
	"log"
	"time"
)

// runWatchdog periodically forces devices without recent movement to
// off, independent of which ingestion adapter is active. The listener
// only fires on source-side changes, so a device that silently stops
// transmitting would otherwise keep its last reported status forever.
func (e *Engine) runWatchdog(ctx context.Context) {
	log.Printf("engine: watchdog started, interval=%v", e.cfg.WatchdogInterval)

	ticker := time.NewTicker(e.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("engine: watchdog stopped")
			return
		case <-ticker.C:
			e.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs a single watchdog pass.
func (e *Engine) sweepOnce(ctx context.Context) {
	commits := e.store.SweepStale(e.now(), e.cfg.MovementTimeout, e.cfg.PersistThrottleWindow)
	for _, c := range commits {
		e.emit(ctx, c.Event, c.Persist)
	}
}
