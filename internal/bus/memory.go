package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// subBuffer is how many undelivered payloads a single subscriber may queue
// before further publishes to it are dropped.
const subBuffer = 64

// MemoryBus is an in-process Bus. Every subscriber gets its own buffered
// queue, so a slow consumer only loses its own messages.
type MemoryBus struct {
	mu       sync.RWMutex
	channels map[string]map[*memorySub]struct{}
	log      zerolog.Logger
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus(log zerolog.Logger) *MemoryBus {
	return &MemoryBus{
		channels: make(map[string]map[*memorySub]struct{}),
		log:      log.With().Str("component", "membus").Logger(),
	}
}

type memorySub struct {
	bus     *MemoryBus
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *memorySub) C() <-chan []byte { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		subs := s.bus.channels[s.channel]
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.bus.channels, s.channel)
		}
		// Closing under the lock keeps Publish from sending on a closed
		// channel: its non-blocking sends also run under the lock.
		close(s.ch)
		s.bus.mu.Unlock()
	})
	return nil
}

// Publish delivers payload to every current subscriber of channel, in
// publish order per subscriber. Subscribers with full queues miss this
// payload; the rest still receive it.
func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.channels[channel] {
		select {
		case sub.ch <- payload:
		default:
			b.log.Warn().Str("channel", channel).Msg("subscriber queue full; dropping payload")
		}
	}
	return nil
}

// Subscribe registers a new listener on channel.
func (b *MemoryBus) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySub{
		bus:     b,
		channel: channel,
		ch:      make(chan []byte, subBuffer),
	}

	b.mu.Lock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[*memorySub]struct{})
	}
	b.channels[channel][sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

// SubscriberCount reports how many listeners channel currently has. Intended
// for tests and diagnostics.
func (b *MemoryBus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}
