package engine

import (
	"context"
	"log"
	"time"

	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

const (
	listenerBackoffInitial = time.Second
	listenerBackoffMax     = 30 * time.Second
)

// runListener subscribes to change notifications on the source tree
// root and runs the pipeline for every device in each notification.
// Subscription failures are logged and retried with backoff; they never
// crash the process.
func (e *Engine) runListener(ctx context.Context) {
	if e.source == nil {
		log.Println("engine: listener adapter disabled, no source configured")
		return
	}

	log.Println("engine: listener adapter started")

	backoff := listenerBackoffInitial
	for {
		err := e.source.Stream(ctx, func(tree map[string]telemetry.RawRecord) {
			e.processTree(ctx, tree, telemetry.SourceListener)
		})

		if ctx.Err() != nil {
			log.Println("engine: listener adapter stopped")
			return
		}
		if err != nil {
			log.Printf("engine: listener stream error, retrying in %v: %v", backoff, err)
		}

		select {
		case <-ctx.Done():
			log.Println("engine: listener adapter stopped")
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > listenerBackoffMax {
			backoff = listenerBackoffMax
		}
	}
}
