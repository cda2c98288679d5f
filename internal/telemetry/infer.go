package telemetry

import "time"

// Policy carries the thresholds status inference runs against.
type Policy struct {
	MovementTimeout          time.Duration
	FreshnessWindow          time.Duration
	AssumeOfflineNoTimestamp bool
}

// Prior is the view of previously committed device state that inference
// needs. Nil means the device has never been seen.
type Prior struct {
	Latitude         float64
	Longitude        float64
	LastObservedAtMs int64 // 0 when the prior snapshot had no timestamp
	LastMovementAtMs int64 // 0 when movement has never been stamped
}

// Inference is the outcome of InferStatus: the effective status and the
// movement stamp the caller must commit alongside the snapshot.
type Inference struct {
	Status       Status
	MovementAtMs int64
	Moved        bool
}

// InferStatus derives the effective on/off status for a snapshot.
//
// Precedence: an explicit raw status seeds the result; otherwise a
// resolved timestamp is checked against the freshness window; otherwise
// the no-timestamp policy decides. The movement override runs last and
// always wins: coordinates unchanged for longer than the movement
// timeout force the device off even when it still reports "on". Raw
// status fields are frequently stale, and a device that has physically
// stopped moving past the timeout is presumed to have stopped
// transmitting meaningfully.
func InferStatus(snap Snapshot, prior *Prior, now time.Time, p Policy) Inference {
	nowMs := now.UnixMilli()

	status := snap.RawStatus
	if status == "" {
		switch {
		case snap.ObservedAtMs != 0:
			if nowMs-snap.ObservedAtMs > p.FreshnessWindow.Milliseconds() {
				status = StatusOff
			} else {
				status = StatusOn
			}
		case p.AssumeOfflineNoTimestamp:
			status = StatusOff
		default:
			status = StatusOn
		}
	}

	moved := prior == nil ||
		prior.Latitude != snap.Latitude ||
		prior.Longitude != snap.Longitude

	movementAt := nowMs
	if !moved {
		movementAt = prior.LastMovementAtMs

		// A device that predates movement tracking falls back to its
		// last observed timestamp; with neither the override is skipped.
		ref := prior.LastMovementAtMs
		if ref == 0 {
			ref = prior.LastObservedAtMs
		}
		if ref != 0 && nowMs-ref > p.MovementTimeout.Milliseconds() {
			status = StatusOff
		}
	}

	return Inference{Status: status, MovementAtMs: movementAt, Moved: moved}
}
