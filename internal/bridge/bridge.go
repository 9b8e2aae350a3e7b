// Package bridge fans a supervised run's event stream out to any number
// of observers over a pubsub broker, so consumers subscribe without
// touching the supervisor.
package bridge

import (
	"context"

	"corral/internal/log"
	"corral/internal/pubsub"
	"corral/internal/supervisor"
)

// Bridge relays supervisor events onto a broker.
type Bridge struct {
	broker *pubsub.Broker[supervisor.StreamEvent]
}

// New creates a bridge with its own broker.
func New() *Bridge {
	return &Bridge{broker: pubsub.NewBroker[supervisor.StreamEvent]()}
}

// Subscribe registers an observer. The channel closes when ctx is
// cancelled or the bridge is closed.
func (b *Bridge) Subscribe(ctx context.Context) <-chan pubsub.Event[supervisor.StreamEvent] {
	return b.broker.Subscribe(ctx)
}

// Publish relays a single event to all subscribers. Delivery to a
// subscriber whose buffer is full is dropped, so subscribers are
// observers, never the primary consumer of a stream.
func (b *Bridge) Publish(event supervisor.StreamEvent) {
	b.broker.Publish(pubsub.CreatedEvent, event)
}

// Forward relays events until the stream closes or ctx is cancelled.
// Returns the number of events forwarded. Blocks; run it from the
// goroutine that owns the drain side of the handle.
func (b *Bridge) Forward(ctx context.Context, events <-chan supervisor.StreamEvent) int {
	count := 0
	for {
		select {
		case event, ok := <-events:
			if !ok {
				log.Debug(log.CatBridge, "Event stream closed", "forwarded", count)
				return count
			}
			b.Publish(event)
			count++
		case <-ctx.Done():
			log.Debug(log.CatBridge, "Forward cancelled", "forwarded", count)
			return count
		}
	}
}

// Close shuts down the broker and all subscriber channels.
func (b *Bridge) Close() {
	b.broker.Close()
}
