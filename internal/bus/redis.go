package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus is a Bus backed by Redis pub/sub. The Redis channel name is the
// room ID itself, so any process publishing to the same Redis server reaches
// every subscriber regardless of which relay node they are connected to.
type RedisBus struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisBus wraps an existing Redis client.
func NewRedisBus(client *redis.Client, log zerolog.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		log:    log.With().Str("component", "redisbus").Logger(),
	}
}

// Publish broadcasts payload on channel. Fire and forget: a zero subscriber
// count is not an error.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %q: %w", channel, err)
	}
	return nil
}

// Subscribe opens a Redis subscription on channel and returns once the
// server has confirmed it, so events published afterwards are never missed.
func (b *RedisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)

	// Wait for the subscription confirmation before handing out the stream.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe to %q: %w", channel, err)
	}

	sub := &redisSub{
		ps:     ps,
		out:    make(chan []byte, subBuffer),
		closed: make(chan struct{}),
	}
	go sub.forward(b.log, channel)
	return sub, nil
}

type redisSub struct {
	ps     *redis.PubSub
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func (s *redisSub) C() <-chan []byte { return s.out }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.ps.Close()
	})
	return err
}

// forward drains the underlying Redis message stream into the subscription
// channel until the subscription is closed.
func (s *redisSub) forward(log zerolog.Logger, channel string) {
	defer close(s.out)

	msgs := s.ps.Channel()
	for {
		select {
		case <-s.closed:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			case <-s.closed:
				return
			default:
				log.Warn().Str("channel", channel).Msg("subscriber queue full; dropping payload")
			}
		}
	}
}
