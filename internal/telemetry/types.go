// Package telemetry defines the canonical telemetry model and the pure
// normalization and status-inference logic. Nothing in this package does
// I/O; time is always passed in by the caller.
package telemetry

import "time"

// Status is the inferred on/off classification of a device.
type Status string

const (
	StatusOn  Status = "on"
	StatusOff Status = "off"
)

// SourceTag identifies which path produced a change event.
type SourceTag string

const (
	SourceListener   SourceTag = "listener"
	SourcePoll       SourceTag = "poll"
	SourceDBFallback SourceTag = "db-fallback"
	SourceWatchdog   SourceTag = "watchdog"
)

// RawRecord is one untyped device record as the external store reports
// it. Field names and encodings vary between device firmware revisions;
// Normalize resolves them.
type RawRecord map[string]interface{}

// Snapshot is one normalized observation of a device.
type Snapshot struct {
	DeviceID     string
	Latitude     float64
	Longitude    float64
	RawStatus    Status // "" when the record carried no status field
	ObservedAtMs int64  // 0 when no timestamp resolved
}

// ChangeEvent is emitted for every materially changed snapshot and is
// the unit both the history writer and the broadcast channel consume.
type ChangeEvent struct {
	DeviceID     string    `json:"deviceId"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Status       Status    `json:"status"`
	ObservedAtMs int64     `json:"observedAtMs,omitempty"`
	SourceTag    SourceTag `json:"sourceTag"`
}

// ObservedAt returns the observation time, or the zero time when the
// record carried no resolvable timestamp.
func (e ChangeEvent) ObservedAt() time.Time {
	if e.ObservedAtMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.ObservedAtMs)
}
