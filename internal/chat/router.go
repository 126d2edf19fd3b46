package chat

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Router decodes inbound protocol frames and drives the session's
// transitions. One Router exists per connection and runs in its own
// goroutine; it is the only goroutine allowed to touch the session.
type Router struct {
	session *Session
	log     zerolog.Logger
}

// NewRouter creates the router for a session.
func NewRouter(session *Session) *Router {
	return &Router{
		session: session,
		log:     session.log.With().Str("component", "router").Logger(),
	}
}

// Session returns the session this router drives.
func (r *Router) Session() *Session {
	return r.session
}

// Run consumes raw frames until the stream is closed by the transport, then
// tears the session down. It never fails: every bad frame is dropped and the
// loop continues.
func (r *Router) Run(ctx context.Context, frames <-chan []byte) error {
	for frame := range frames {
		r.HandleFrame(ctx, frame)
	}

	r.session.Teardown(ctx)
	return nil
}

// HandleFrame decodes one client frame and dispatches it. Malformed frames,
// unknown kinds, and missing fields are logged and dropped; nothing here
// terminates the connection.
func (r *Router) HandleFrame(ctx context.Context, frame []byte) {
	ev, err := DecodeInbound(frame)
	if err != nil {
		var missing ErrMissingField
		switch {
		case errors.Is(err, ErrBadPayload):
			r.log.Warn().Str("frame", string(frame)).Msg("invalid JSON from chat client")
		case errors.As(err, &missing):
			r.log.Warn().Str("kind", string(missing.Kind)).Str("field", missing.Field).
				Msg("frame missing required field")
		default:
			r.log.Warn().Err(err).Msg("dropping frame")
		}
		return
	}

	switch ev.Kind {
	case KindNonce:
		r.session.Authenticate(ctx, ev.Nonce)
	case KindJoin:
		r.session.Join(ctx, ev.Room)
	case KindLeave:
		r.session.Leave(ctx, ev.Room)
	case KindSay:
		r.session.Say(ctx, ev.Room, ev.Message)
	}
}
