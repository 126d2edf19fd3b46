package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// subjectPrefix namespaces room channels inside a shared NATS server.
const subjectPrefix = "chat.room."

// NatsBus is a Bus backed by core NATS subjects, one subject per room.
// Delivery matches the relay's contract out of the box: at-most-once, in
// publish order per subject, no backlog for late subscribers.
type NatsBus struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NewNatsBus wraps an established NATS connection.
func NewNatsBus(nc *nats.Conn, log zerolog.Logger) *NatsBus {
	return &NatsBus{
		nc:  nc,
		log: log.With().Str("component", "natsbus").Logger(),
	}
}

func subjectFor(channel string) string {
	return subjectPrefix + channel
}

// Publish broadcasts payload on the channel's subject.
func (b *NatsBus) Publish(_ context.Context, channel string, payload []byte) error {
	if err := b.nc.Publish(subjectFor(channel), payload); err != nil {
		return fmt.Errorf("nats publish to %q: %w", channel, err)
	}
	return nil
}

// Subscribe opens a NATS subscription on the channel's subject and flushes
// the connection so the subscription is active before returning.
func (b *NatsBus) Subscribe(_ context.Context, channel string) (Subscription, error) {
	msgs := make(chan *nats.Msg, subBuffer)
	ns, err := b.nc.ChanSubscribe(subjectFor(channel), msgs)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe to %q: %w", channel, err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = ns.Unsubscribe()
		return nil, fmt.Errorf("nats flush after subscribe to %q: %w", channel, err)
	}

	sub := &natsSub{
		ns:     ns,
		msgs:   msgs,
		out:    make(chan []byte, subBuffer),
		closed: make(chan struct{}),
	}
	go sub.forward(b.log, channel)
	return sub, nil
}

type natsSub struct {
	ns     *nats.Subscription
	msgs   chan *nats.Msg
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func (s *natsSub) C() <-chan []byte { return s.out }

func (s *natsSub) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ns.Unsubscribe()
		close(s.closed)
	})
	return err
}

func (s *natsSub) forward(log zerolog.Logger, channel string) {
	defer close(s.out)

	for {
		select {
		case <-s.closed:
			return
		case msg := <-s.msgs:
			if msg == nil {
				return
			}
			select {
			case s.out <- msg.Data:
			case <-s.closed:
				return
			default:
				log.Warn().Str("channel", channel).Msg("subscriber queue full; dropping payload")
			}
		}
	}
}
