// Package bus provides the publish/subscribe backbone that fans room events
// out to every listener of a room. One logical channel exists per room ID;
// the bus itself keeps no per-connection state and delivers best-effort,
// at-most-once, in publish order per channel.
package bus

import "context"

// Bus broadcasts opaque payloads on named channels. Publish succeeds whether
// or not anyone is currently subscribed.
type Bus interface {
	// Publish broadcasts payload on the given channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a stream of payloads published to channel from this
	// moment onward. No backlog is delivered. The stream ends only when the
	// consumer closes the subscription.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is one listener's view of a channel.
type Subscription interface {
	// C yields payloads in publish order. The channel is closed after Close.
	C() <-chan []byte

	// Close releases the subscription promptly. Safe to call more than once.
	Close() error
}
