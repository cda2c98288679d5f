package broadcast

import (
	"log"

	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

// Dispatcher fans change events out to both subscriber groups.
// Delivery to each group is attempted independently: a failure in one
// group is logged and never affects the other group or future events.
type Dispatcher struct {
	hub *Hub
}

// NewDispatcher creates a dispatcher over a hub.
func NewDispatcher(hub *Hub) *Dispatcher {
	return &Dispatcher{hub: hub}
}

// Broadcast publishes one change event to the live and public groups.
func (d *Dispatcher) Broadcast(ev telemetry.ChangeEvent) {
	if err := d.hub.Publish(GroupLive, ev); err != nil {
		log.Printf("broadcast: live group publish failed for %s: %v", ev.DeviceID, err)
	}
	if err := d.hub.Publish(GroupPublic, ev); err != nil {
		log.Printf("broadcast: public group publish failed for %s: %v", ev.DeviceID, err)
	}
}
