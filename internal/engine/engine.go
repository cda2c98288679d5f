package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bhimonw/SobatNelayan/internal/config"
	"github.com/Bhimonw/SobatNelayan/internal/history"
	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

// Engine runs the live telemetry pipeline: ingestion adapter →
// normalizer → status inference → change detector → { throttled
// history write, broadcast }. One ingestion adapter (listener or poll)
// and the offline watchdog run concurrently; all state mutation funnels
// through the StateStore commit step.
type Engine struct {
	cfg         *config.Config
	store       *StateStore
	source      Source
	history     HistoryStore
	broadcaster Broadcaster

	// now is swappable for deterministic tests.
	now func() time.Time

	stats stats
	wg    sync.WaitGroup
}

// stats are process-local counters behind the optional metrics log.
type stats struct {
	processed uint64
	dropped   uint64
	changes   uint64
	persisted uint64
	throttled uint64
	writeErrs uint64
}

// New creates an engine. source may be nil in poll mode, in which case
// every tick falls back to the durable store.
func New(cfg *config.Config, source Source, hist HistoryStore, broadcaster Broadcaster) *Engine {
	return &Engine{
		cfg:         cfg,
		store:       NewStateStore(),
		source:      source,
		history:     hist,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// Store exposes the device state store (health reporting).
func (e *Engine) Store() *StateStore {
	return e.store
}

// Run starts the configured ingestion adapter, the offline watchdog,
// and the optional metrics logger, then blocks until ctx is done and
// all loops have drained.
func (e *Engine) Run(ctx context.Context) {
	if e.cfg.IngestMode == config.ModePoll {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runPoller(ctx)
		}()
	} else {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runListener(ctx)
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runWatchdog(ctx)
	}()

	if e.cfg.MetricsLogInterval > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runMetricsLog(ctx)
		}()
	}

	<-ctx.Done()
	e.wg.Wait()
}

// policy returns the inference thresholds from config.
func (e *Engine) policy() telemetry.Policy {
	return telemetry.Policy{
		MovementTimeout:          e.cfg.MovementTimeout,
		FreshnessWindow:          e.cfg.FreshnessWindow,
		AssumeOfflineNoTimestamp: e.cfg.AssumeOfflineNoTimestamp,
	}
}

// processTree runs the pipeline for every device record in a fetched
// or notified tree.
func (e *Engine) processTree(ctx context.Context, tree map[string]telemetry.RawRecord, tag telemetry.SourceTag) {
	for id, raw := range tree {
		e.processRecord(ctx, id, raw, tag)
	}
}

// processRecord runs the full pipeline for one raw record.
func (e *Engine) processRecord(ctx context.Context, deviceID string, raw telemetry.RawRecord, tag telemetry.SourceTag) {
	atomic.AddUint64(&e.stats.processed, 1)
	recordsProcessed.WithLabelValues(string(tag)).Inc()

	snap, ok := telemetry.Normalize(deviceID, raw)
	if !ok {
		// No resolvable coordinates: dropped before inference.
		atomic.AddUint64(&e.stats.dropped, 1)
		recordsDropped.Inc()
		return
	}

	e.applySnapshot(ctx, snap, tag)
}

// applySnapshot commits one normalized snapshot and emits its change
// event, if any.
func (e *Engine) applySnapshot(ctx context.Context, snap telemetry.Snapshot, tag telemetry.SourceTag) {
	event, res := e.store.Apply(snap, tag, e.now(), e.policy(), e.cfg.PersistThrottleWindow)
	if !res.Changed {
		return
	}
	e.emit(ctx, event, res.Persist)
}

// emit broadcasts a change event and, when due, appends it to history.
// Broadcast always happens; a skipped or failed durable write never
// rolls back live state.
func (e *Engine) emit(ctx context.Context, event telemetry.ChangeEvent, persist bool) {
	atomic.AddUint64(&e.stats.changes, 1)
	changeEvents.WithLabelValues(string(event.SourceTag)).Inc()

	e.broadcaster.Broadcast(event)

	if !persist {
		atomic.AddUint64(&e.stats.throttled, 1)
		throttledWrites.Inc()
		return
	}
	if e.history == nil {
		return
	}

	rec := history.Record{
		DeviceID:  event.DeviceID,
		Latitude:  event.Latitude,
		Longitude: event.Longitude,
		Status:    string(event.Status),
		Timestamp: e.recordTimestamp(event),
	}
	if err := e.history.Append(ctx, rec); err != nil {
		// A disabled store is a configuration, not a failure.
		if errors.Is(err, history.ErrDisabled) {
			return
		}
		atomic.AddUint64(&e.stats.writeErrs, 1)
		historyWriteFailures.Inc()
		log.Printf("engine: history write failed for %s: %v", event.DeviceID, err)
		return
	}
	atomic.AddUint64(&e.stats.persisted, 1)
	historyWrites.Inc()
}

// recordTimestamp picks the row timestamp: the observation time when
// one resolved, otherwise the processing time.
func (e *Engine) recordTimestamp(event telemetry.ChangeEvent) time.Time {
	if event.ObservedAtMs != 0 {
		return time.UnixMilli(event.ObservedAtMs)
	}
	return e.now()
}

// runMetricsLog periodically logs pipeline counters.
func (e *Engine) runMetricsLog(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("engine: devices=%d processed=%d dropped=%d changes=%d persisted=%d throttled=%d writeErrs=%d",
				e.store.Len(),
				atomic.LoadUint64(&e.stats.processed),
				atomic.LoadUint64(&e.stats.dropped),
				atomic.LoadUint64(&e.stats.changes),
				atomic.LoadUint64(&e.stats.persisted),
				atomic.LoadUint64(&e.stats.throttled),
				atomic.LoadUint64(&e.stats.writeErrs))
		}
	}
}
