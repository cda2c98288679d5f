package engine

import (
	"context"
	"time"

	"github.com/Bhimonw/SobatNelayan/internal/history"
	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

// Source is the inbound external telemetry store: a tree of raw device
// records keyed by device id.
type Source interface {
	// FetchTree reads the full current tree (poll adapter).
	FetchTree(ctx context.Context) (map[string]telemetry.RawRecord, error)

	// Stream subscribes to change notifications on the tree root and
	// invokes fn with the affected device records until ctx is done or
	// the subscription fails.
	Stream(ctx context.Context, fn func(map[string]telemetry.RawRecord)) error
}

// HistoryStore is the durable append-only history the engine writes to
// and the poll adapter falls back to.
type HistoryStore interface {
	Append(ctx context.Context, rec history.Record) error
	LatestPerDeviceSince(ctx context.Context, cutoff time.Time) ([]history.Record, error)
}

// Broadcaster fans change events out to the subscriber groups. It must
// never block: delivery failures stay on the broadcast side.
type Broadcaster interface {
	Broadcast(ev telemetry.ChangeEvent)
}
