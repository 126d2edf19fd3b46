package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the event union on the wire.
type Kind string

// The four frame kinds of the chat protocol.
const (
	KindJoin  Kind = "join"
	KindLeave Kind = "leave"
	KindSay   Kind = "say"
	KindNonce Kind = "nonce"
)

// Frame decode errors. All of them are drop-and-continue from the router's
// point of view; none terminates a connection.
var (
	ErrBadPayload  = errors.New("chat: undecodable frame payload")
	ErrUnknownKind = errors.New("chat: unknown frame kind")
)

// ErrMissingField reports a frame that named a valid kind but omitted one of
// its required fields.
type ErrMissingField struct {
	Kind  Kind
	Field string
}

func (e ErrMissingField) Error() string {
	return fmt.Sprintf("chat: %s frame missing required field %q", e.Kind, e.Field)
}

// Event is one protocol frame. Which fields are meaningful depends on Kind:
// join/leave carry Room, say carries Room and Message, nonce carries Nonce.
// User is stamped by the server on outbound frames only and is never trusted
// from a client. Bus payloads are Events without Room, which is implicit in
// the channel name.
type Event struct {
	Kind    Kind   `json:"kind"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message,omitempty"`
	User    string `json:"user,omitempty"`
	Nonce   string `json:"nonce,omitempty"`
}

// DecodeInbound parses and validates one client frame. The required fields
// per kind are checked here so handlers downstream can trust the shape.
func DecodeInbound(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	switch ev.Kind {
	case KindJoin, KindLeave:
		if ev.Room == "" {
			return Event{}, ErrMissingField{Kind: ev.Kind, Field: "room"}
		}
	case KindSay:
		if ev.Room == "" {
			return Event{}, ErrMissingField{Kind: ev.Kind, Field: "room"}
		}
		if ev.Message == "" {
			return Event{}, ErrMissingField{Kind: ev.Kind, Field: "message"}
		}
	case KindNonce:
		if ev.Nonce == "" {
			return Event{}, ErrMissingField{Kind: ev.Kind, Field: "nonce"}
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}

	// Clients do not get to pick their own display name.
	ev.User = ""
	return ev, nil
}

// encodeBusPayload serializes an event for the bus, without the room field.
func encodeBusPayload(ev Event) ([]byte, error) {
	ev.Room = ""
	return json.Marshal(ev)
}

// decodeBusPayload parses an event received from the bus.
func decodeBusPayload(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return ev, nil
}
