package bus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupNats connects to a local NATS server, skipping the test when none is
// reachable.
func setupNats(t *testing.T) *nats.Conn {
	t.Helper()

	nc, err := nats.Connect(nats.DefaultURL, nats.Timeout(time.Second))
	if err != nil {
		t.Skipf("NATS not available at %s: %v", nats.DefaultURL, err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestNatsBusRoundTrip(t *testing.T) {
	nc := setupNats(t)
	b := NewNatsBus(nc, zerolog.Nop())
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "relay-test-room")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "relay-test-room", []byte(`{"kind":"join"}`)))

	select {
	case payload := <-sub.C():
		assert.JSONEq(t, `{"kind":"join"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload from NATS")
	}
}

func TestNatsBusCloseEndsStream(t *testing.T) {
	nc := setupNats(t)
	b := NewNatsBus(nc, zerolog.Nop())

	sub, err := b.Subscribe(context.Background(), "relay-test-close")
	require.NoError(t, err)

	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok, "stream should be closed after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close")
	}
}
