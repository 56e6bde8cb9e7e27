// Package messagequeue defines the message queue port.
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue publishes and subscribes to cache lifecycle events.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers handler on subject. The returned function cancels
	// the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain processes pending messages, then closes.
	Drain() error

	Close() error

	IsConnected() bool
}

// Subjects. All live on the PADDOCK stream.
const (
	SubjectMaintenanceReport = "cache.maintenance.report"
	SubjectCacheInvalidated  = "cache.invalidated"
)

// Publisher is the subset of Queue the services need.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Subscriber is the subset of Queue event listeners need.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)
}
