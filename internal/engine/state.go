package engine

import (
	"sync"
	"time"

	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

// DeviceState is the engine's last-known view of one device. Entries
// are created lazily on first sighting and live for the process
// lifetime. Fields are mutated only inside StateStore's commit step.
type DeviceState struct {
	Latitude     float64
	Longitude    float64
	Status       telemetry.Status
	ObservedAtMs int64
	MovementAtMs int64
	PersistAtMs  int64
}

// ApplyResult reports what a commit attempt did.
type ApplyResult struct {
	Changed bool
	Minor   bool // only the observation timestamp moved
	Persist bool // durable write due after throttling
}

// StaleCommit is one watchdog-forced offline transition.
type StaleCommit struct {
	Event   telemetry.ChangeEvent
	Persist bool
}

// StateStore is the keyed-by-device table of last-known state. It is
// the single serialization point for state mutation: inference, change
// detection, the commit, and the persistence-throttle decision all run
// under one lock so that concurrent adapters and the watchdog cannot
// interleave a read-infer-commit sequence.
type StateStore struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState
}

// NewStateStore creates an empty device state store.
func NewStateStore() *StateStore {
	return &StateStore{
		devices: make(map[string]*DeviceState),
	}
}

// Apply runs status inference and the change-detection commit for one
// normalized snapshot. It returns the change event (valid only when
// ApplyResult.Changed) and the commit outcome.
//
// Commit order follows detection order: a late-arriving record with an
// older source timestamp that is processed later still overwrites.
func (s *StateStore) Apply(snap telemetry.Snapshot, tag telemetry.SourceTag, now time.Time, pol telemetry.Policy, throttleWindow time.Duration) (telemetry.ChangeEvent, ApplyResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.devices[snap.DeviceID]

	var prior *telemetry.Prior
	if exists {
		prior = &telemetry.Prior{
			Latitude:         state.Latitude,
			Longitude:        state.Longitude,
			LastObservedAtMs: state.ObservedAtMs,
			LastMovementAtMs: state.MovementAtMs,
		}
	}

	inf := telemetry.InferStatus(snap, prior, now, pol)

	changed := !exists ||
		state.Latitude != snap.Latitude ||
		state.Longitude != snap.Longitude ||
		state.Status != inf.Status ||
		state.ObservedAtMs != snap.ObservedAtMs
	if !changed {
		return telemetry.ChangeEvent{}, ApplyResult{}
	}

	minor := exists &&
		state.Latitude == snap.Latitude &&
		state.Longitude == snap.Longitude &&
		state.Status == inf.Status

	if !exists {
		state = &DeviceState{}
		s.devices[snap.DeviceID] = state
	}

	state.Latitude = snap.Latitude
	state.Longitude = snap.Longitude
	state.Status = inf.Status
	state.ObservedAtMs = snap.ObservedAtMs
	state.MovementAtMs = inf.MovementAtMs

	persist := s.persistDecision(state, minor, now, throttleWindow)

	event := telemetry.ChangeEvent{
		DeviceID:     snap.DeviceID,
		Latitude:     snap.Latitude,
		Longitude:    snap.Longitude,
		Status:       inf.Status,
		ObservedAtMs: snap.ObservedAtMs,
		SourceTag:    tag,
	}

	return event, ApplyResult{Changed: true, Minor: minor, Persist: persist}
}

// SweepStale forces devices whose movement is older than the movement
// timeout to off, committing through the same serialized step. The
// synthesized update keeps the last-known coordinates and timestamp.
func (s *StateStore) SweepStale(now time.Time, movementTimeout, throttleWindow time.Duration) []StaleCommit {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	var commits []StaleCommit

	for id, state := range s.devices {
		if state.Status == telemetry.StatusOff {
			continue
		}
		lastMoved := state.MovementAtMs
		if lastMoved == 0 {
			lastMoved = state.ObservedAtMs
		}
		if lastMoved == 0 || nowMs-lastMoved <= movementTimeout.Milliseconds() {
			continue
		}

		// Status flips, so the change is never minor.
		state.Status = telemetry.StatusOff
		persist := s.persistDecision(state, false, now, throttleWindow)

		commits = append(commits, StaleCommit{
			Event: telemetry.ChangeEvent{
				DeviceID:     id,
				Latitude:     state.Latitude,
				Longitude:    state.Longitude,
				Status:       telemetry.StatusOff,
				ObservedAtMs: state.ObservedAtMs,
				SourceTag:    telemetry.SourceWatchdog,
			},
			Persist: persist,
		})
	}

	return commits
}

// persistDecision applies the minor-change throttle. Skipped writes do
// not advance PersistAtMs, so the next minor change is still measured
// against the last real write. Caller must hold s.mu.
func (s *StateStore) persistDecision(state *DeviceState, minor bool, now time.Time, throttleWindow time.Duration) bool {
	nowMs := now.UnixMilli()

	if minor && throttleWindow > 0 && nowMs-state.PersistAtMs < throttleWindow.Milliseconds() {
		return false
	}

	state.PersistAtMs = nowMs
	return true
}

// Get returns a copy of one device's state.
func (s *StateStore) Get(deviceID string) (DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.devices[deviceID]
	if !exists {
		return DeviceState{}, false
	}
	return *state, true
}

// Len returns the number of tracked devices.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
