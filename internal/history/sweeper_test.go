package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePurger struct {
	cutoffs []time.Time
	err     error
}

func (f *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestSweeperCutoff(t *testing.T) {
	purger := &fakePurger{}
	s := NewSweeper(purger, 30*24*time.Hour)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.sweepOnce(context.Background())

	if len(purger.cutoffs) != 1 {
		t.Fatalf("got %d purge calls, want 1", len(purger.cutoffs))
	}
	want := now.Add(-30 * 24 * time.Hour)
	if !purger.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", purger.cutoffs[0], want)
	}
}

func TestSweeperPurgeFailureIsNonFatal(t *testing.T) {
	purger := &fakePurger{err: errors.New("lock wait timeout")}
	s := NewSweeper(purger, 24*time.Hour)

	// Must not panic; the failure is retried on the next tick.
	s.sweepOnce(context.Background())
	s.sweepOnce(context.Background())

	if len(purger.cutoffs) != 2 {
		t.Errorf("got %d purge calls, want 2", len(purger.cutoffs))
	}
}

func TestSweeperDisabledByZeroHorizon(t *testing.T) {
	purger := &fakePurger{}
	s := NewSweeper(purger, 0)
	s.interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if len(purger.cutoffs) != 0 {
		t.Errorf("disabled sweeper purged %d times", len(purger.cutoffs))
	}
}

func TestDisabledStore(t *testing.T) {
	var d Disabled

	if err := d.Append(context.Background(), Record{DeviceID: "D1"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("Append error = %v, want ErrDisabled", err)
	}

	rows, err := d.LatestPerDeviceSince(context.Background(), time.Now())
	if err != nil || len(rows) != 0 {
		t.Errorf("LatestPerDeviceSince = (%v, %v), want (empty, nil)", rows, err)
	}

	n, err := d.PurgeBefore(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Errorf("PurgeBefore = (%d, %v), want (0, nil)", n, err)
	}
}
