package realtime

import "context"

// Bus relays room events between service instances. Every instance,
// including the publisher, receives each event from Subscribe.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel that is closed when ctx is done or the
	// underlying subscription fails.
	Subscribe(ctx context.Context) (<-chan Event, error)
}
