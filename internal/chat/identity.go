// Package chat implements the relay core: the per-connection session state
// machine, the frame router, and the subscriber tasks that bridge bus events
// onto a connection's outbound stream.
package chat

import (
	"math/rand/v2"
	"strings"
)

// Identity is who a connection speaks as. A connection holds exactly one
// Identity at any instant; the only transition is the anonymous to
// authenticated upgrade on a successful nonce resolution.
type Identity interface {
	// DisplayName is the name stamped onto outbound events.
	DisplayName() string
}

// Anonymous is the identity every connection starts with.
type Anonymous struct {
	Nick string
}

// DisplayName returns the generated nick.
func (a Anonymous) DisplayName() string { return a.Nick }

// Authenticated is the identity of a connection that completed the nonce
// hand-off.
type Authenticated struct {
	UserID   int64
	Username string
}

// DisplayName returns the account username.
func (u Authenticated) DisplayName() string { return u.Username }

// Fun random names to distinguish anonymous users memorably.
var nickSyllables = []string{"nox", "frot", "gos", "ler", "jam", "rip", "kap"}

// RandomNick builds a three-syllable nick for an anonymous connection.
func RandomNick() string {
	var b strings.Builder
	for i := 0; i < 3; i++ {
		b.WriteString(nickSyllables[rand.IntN(len(nickSyllables))])
	}
	return b.String()
}
