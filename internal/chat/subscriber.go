package chat

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/helpchat/relay/internal/bus"
)

// subscriberTask bridges one (connection, room) pair: it drains the bus
// subscription for the room and forwards every event to the connection's
// outbound stream until its owning session stops it.
type subscriberTask struct {
	room   string
	cancel context.CancelFunc
	done   chan struct{}
}

// startSubscriber subscribes to room and spawns the forwarding goroutine.
func (s *Session) startSubscriber(ctx context.Context, room string) (*subscriberTask, error) {
	sub, err := s.bus.Subscribe(ctx, room)
	if err != nil {
		return nil, err
	}

	// The task's lifetime is bound to the session, not to whatever deadline
	// the triggering frame carried.
	taskCtx, cancel := context.WithCancel(context.Background())
	task := &subscriberTask{
		room:   room,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go task.run(taskCtx, sub, s.outbound, s.log)
	return task, nil
}

// stop cancels the task and waits for it to finish, so the caller knows the
// bus subscription is released and nothing will write to the outbound stream
// on this room's behalf anymore.
func (t *subscriberTask) stop() {
	t.cancel()
	<-t.done
}

func (t *subscriberTask) run(ctx context.Context, sub bus.Subscription, outbound chan<- []byte, log zerolog.Logger) {
	defer close(t.done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.C():
			if !ok {
				return
			}

			ev, err := decodeBusPayload(payload)
			if err != nil {
				// Bad payloads are logged and dropped; the stream keeps going.
				log.Warn().Err(err).Str("room", t.room).Msg("invalid payload from bus")
				continue
			}

			// The bus payload carries no room tag; add it back for the client.
			ev.Room = t.room
			frame, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("room", t.room).Msg("could not encode outbound frame")
				continue
			}

			select {
			case outbound <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}
