package chat

import (
	"context"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/helpchat/relay/internal/bus"
	"github.com/helpchat/relay/internal/directory"
)

// NonceResolver resolves a one-time token to a user ID. An unknown or
// expired nonce reports ok=false with no error.
type NonceResolver interface {
	Resolve(ctx context.Context, nonce string) (userID int64, ok bool, err error)
}

// Session is the per-connection state machine. It tracks the connection's
// identity and the set of joined rooms, and owns one subscriber task per
// joined room.
//
// A Session is confined to the router goroutine that drives it: nothing here
// is locked, and only that goroutine may call its methods. Subscriber tasks
// hold the outbound channel but never touch the room map or the identity.
type Session struct {
	id       string
	identity Identity
	rooms    map[string]*subscriberTask

	bus      bus.Bus
	nonces   NonceResolver
	users    directory.Directory
	outbound chan<- []byte

	scrub *bluemonday.Policy
	log   zerolog.Logger
}

// NewSession creates a session for one freshly established connection. It
// starts anonymous under a random nick; the client is expected to send a
// nonce frame right away if its user is logged in.
func NewSession(id string, b bus.Bus, nonces NonceResolver, users directory.Directory,
	outbound chan<- []byte, log zerolog.Logger) *Session {
	return &Session{
		id:       id,
		identity: Anonymous{Nick: RandomNick()},
		rooms:    make(map[string]*subscriberTask),
		bus:      b,
		nonces:   nonces,
		users:    users,
		outbound: outbound,
		scrub:    bluemonday.StrictPolicy(),
		log:      log.With().Str("conn", id).Logger(),
	}
}

// Identity returns the session's current identity.
func (s *Session) Identity() Identity {
	return s.identity
}

// Rooms returns the names of the rooms currently joined.
func (s *Session) Rooms() []string {
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Authenticate upgrades the session from anonymous to the user the nonce
// maps to. Every failure mode is a silent no-op toward the client: the
// session simply stays as it was.
func (s *Session) Authenticate(ctx context.Context, nonceToken string) {
	userID, ok, err := s.nonces.Resolve(ctx, nonceToken)
	if err != nil {
		s.log.Error().Err(err).Msg("nonce resolution failed")
		return
	}
	if !ok {
		s.log.Warn().Msg("unknown or expired nonce")
		return
	}

	user, found, err := s.users.Lookup(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("user lookup failed")
		return
	}
	if !found {
		// Just stay anonymous.
		s.log.Warn().Int64("user_id", userID).Msg("nonce mapped to a user that does not exist")
		return
	}

	s.identity = Authenticated{UserID: user.ID, Username: user.Username}
	s.log.Debug().Str("user", user.Username).Msg("mapped nonce to user")
}

// Join subscribes the connection to room and announces it. Joining a room
// twice is a no-op, which guards against duplicate subscriptions racing a
// kill-and-restart on the client side.
func (s *Session) Join(ctx context.Context, room string) {
	if _, joined := s.rooms[room]; joined {
		return
	}

	task, err := s.startSubscriber(ctx, room)
	if err != nil {
		s.log.Error().Err(err).Str("room", room).Msg("could not subscribe to room")
		return
	}
	s.rooms[room] = task

	s.tellRoom(ctx, room, Event{Kind: KindJoin, User: s.identity.DisplayName()})
}

// Leave stops the room's subscriber task and announces the departure. The
// task is fully stopped, not merely signaled, before Leave returns. Leaving
// a room the connection never joined is a no-op.
func (s *Session) Leave(ctx context.Context, room string) {
	task, joined := s.rooms[room]
	if !joined {
		return
	}

	task.stop()
	delete(s.rooms, room)

	s.tellRoom(ctx, room, Event{Kind: KindLeave, User: s.identity.DisplayName()})
}

// Say publishes a message to a joined room. Speaking into a room the
// connection is not in drops the message with a warning; the client is not
// told.
func (s *Session) Say(ctx context.Context, room, message string) {
	if _, joined := s.rooms[room]; !joined {
		s.log.Warn().Str("room", room).Str("user", s.identity.DisplayName()).
			Msg("said something in a room they weren't in")
		return
	}

	s.tellRoom(ctx, room, Event{
		Kind:    KindSay,
		Message: s.scrub.Sanitize(message),
		User:    s.identity.DisplayName(),
	})
}

// Teardown leaves every room still joined. Called once when the connection
// disconnects; afterwards no subscriber task of this session remains.
func (s *Session) Teardown(ctx context.Context) {
	// Leave mutates the map, so iterate over a snapshot of the keys.
	for _, room := range s.Rooms() {
		s.Leave(ctx, room)
	}
	s.log.Debug().Msg("session torn down")
}

// tellRoom throws an event at a room via the bus. The room field stays off
// the payload; it is implicit in the channel name.
func (s *Session) tellRoom(ctx context.Context, room string, ev Event) {
	payload, err := encodeBusPayload(ev)
	if err != nil {
		s.log.Error().Err(err).Str("room", room).Msg("could not encode event")
		return
	}
	if err := s.bus.Publish(ctx, room, payload); err != nil {
		s.log.Error().Err(err).Str("room", room).Msg("publish failed")
	}
}
