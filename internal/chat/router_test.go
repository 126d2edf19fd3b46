package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpchat/relay/internal/bus"
	"github.com/helpchat/relay/internal/directory"
)

func newRouterFixture(t *testing.T, b *bus.MemoryBus, nonces map[string]int64) (*Router, chan []byte) {
	t.Helper()

	users := directory.NewStaticDirectory(directory.User{ID: 42, Username: "erose"})
	outbound := make(chan []byte, 64)
	session := NewSession("conn", b, &stubNonces{table: nonces}, users, outbound, zerolog.Nop())
	t.Cleanup(func() { session.Teardown(context.Background()) })

	return NewRouter(session), outbound
}

func TestRouterDispatchesFrames(t *testing.T) {
	b := bus.NewMemoryBus(zerolog.Nop())
	router, _ := newRouterFixture(t, b, map[string]int64{"noncetoken": 42})
	ctx := context.Background()

	router.HandleFrame(ctx, []byte(`{"kind":"nonce","nonce":"noncetoken"}`))
	assert.Equal(t, "erose", router.Session().Identity().DisplayName())

	router.HandleFrame(ctx, []byte(`{"kind":"join","room":"help"}`))
	assert.Equal(t, []string{"help"}, router.Session().Rooms())

	router.HandleFrame(ctx, []byte(`{"kind":"leave","room":"help"}`))
	assert.Empty(t, router.Session().Rooms())
}

func TestRouterSurvivesGarbageFrames(t *testing.T) {
	b := bus.NewMemoryBus(zerolog.Nop())
	router, _ := newRouterFixture(t, b, nil)
	ctx := context.Background()

	garbage := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"kind":"teleport","room":"help"}`),
		[]byte(`{"kind":"join"}`),
		[]byte(`{}`),
		nil,
	}
	for _, frame := range garbage {
		router.HandleFrame(ctx, frame)
	}

	// The connection is still fully functional afterwards.
	router.HandleFrame(ctx, []byte(`{"kind":"join","room":"help"}`))
	assert.Equal(t, []string{"help"}, router.Session().Rooms())
}

func TestRouterRunTearsDownOnDisconnect(t *testing.T) {
	b := bus.NewMemoryBus(zerolog.Nop())
	router, _ := newRouterFixture(t, b, nil)

	frames := make(chan []byte, 4)
	frames <- []byte(`{"kind":"join","room":"alpha"}`)
	frames <- []byte(`{"kind":"join","room":"beta"}`)
	close(frames)

	require.NoError(t, router.Run(context.Background(), frames))

	assert.Empty(t, router.Session().Rooms())
	assert.Equal(t, 0, b.SubscriberCount("alpha"))
	assert.Equal(t, 0, b.SubscriberCount("beta"))
}

// TestTwoClientsRelay walks the protocol scenario end to end: one client
// joins a room, a second client says something, and the first client's
// outbound stream receives the stamped frame.
func TestTwoClientsRelay(t *testing.T) {
	b := bus.NewMemoryBus(zerolog.Nop())
	ctx := context.Background()

	first, firstOut := newRouterFixture(t, b, nil)
	second, secondOut := newRouterFixture(t, b, nil)

	first.HandleFrame(ctx, []byte(`{"kind":"join","room":"help"}`))
	second.HandleFrame(ctx, []byte(`{"kind":"join","room":"help"}`))

	// First client sees its own join, then the second client's.
	expectFrame(t, firstOut, Event{Kind: KindJoin, Room: "help", User: first.Session().Identity().DisplayName()})
	expectFrame(t, firstOut, Event{Kind: KindJoin, Room: "help", User: second.Session().Identity().DisplayName()})

	second.HandleFrame(ctx, []byte(`{"kind":"say","room":"help","message":"hi"}`))

	got := expectFrame(t, firstOut, Event{
		Kind:    KindSay,
		Room:    "help",
		Message: "hi",
		User:    second.Session().Identity().DisplayName(),
	})
	assert.Equal(t, "hi", got.Message)

	// The speaker hears itself too; drain its join frame first.
	expectFrame(t, secondOut, Event{Kind: KindJoin, Room: "help", User: second.Session().Identity().DisplayName()})
	expectFrame(t, secondOut, Event{Kind: KindSay, Room: "help", Message: "hi", User: second.Session().Identity().DisplayName()})
}

func expectFrame(t *testing.T, out <-chan []byte, want Event) Event {
	t.Helper()
	select {
	case frame := <-out:
		var ev Event
		require.NoError(t, json.Unmarshal(frame, &ev))
		assert.Equal(t, want, ev)
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s frame", want.Kind)
		return Event{}
	}
}
