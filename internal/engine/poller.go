package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

var errNoSource = errors.New("no live source configured")

// runPoller fetches the full device tree on a fixed interval and runs
// the pipeline for every record. When the live source is empty or
// unreachable it falls back to the most recent history row per device
// within the lookback window.
func (e *Engine) runPoller(ctx context.Context) {
	log.Printf("engine: poll adapter started, interval=%v", e.cfg.PollInterval)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("engine: poll adapter stopped")
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

// pollOnce runs a single poll tick.
func (e *Engine) pollOnce(ctx context.Context) {
	tree, err := e.fetchTree(ctx)
	if err != nil {
		log.Printf("engine: poll fetch failed, using db fallback: %v", err)
		e.fallbackFromHistory(ctx)
		return
	}
	if len(tree) == 0 {
		e.fallbackFromHistory(ctx)
		return
	}

	e.processTree(ctx, tree, telemetry.SourcePoll)
}

func (e *Engine) fetchTree(ctx context.Context) (map[string]telemetry.RawRecord, error) {
	if e.source == nil {
		return nil, errNoSource
	}
	return e.source.FetchTree(ctx)
}

// fallbackFromHistory replays the latest history row per device within
// the lookback window through the pipeline, tagged db-fallback. Rows
// carry an authoritative stored status, so they re-enter as explicit
// raw status plus the stored observation time.
func (e *Engine) fallbackFromHistory(ctx context.Context) {
	if e.history == nil {
		return
	}

	cutoff := e.now().Add(-e.cfg.FallbackLookback)
	rows, err := e.history.LatestPerDeviceSince(ctx, cutoff)
	if err != nil {
		log.Printf("engine: db fallback query failed: %v", err)
		return
	}

	for _, row := range rows {
		snap := telemetry.Snapshot{
			DeviceID:     row.DeviceID,
			Latitude:     row.Latitude,
			Longitude:    row.Longitude,
			RawStatus:    telemetry.Status(row.Status),
			ObservedAtMs: row.Timestamp.UnixMilli(),
		}
		e.applySnapshot(ctx, snap, telemetry.SourceDBFallback)
	}
}
