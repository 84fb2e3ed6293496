package hub_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepsync/internal/hub"
)

func drain(t *testing.T, c *hub.Client) []byte {
	t.Helper()
	select {
	case frame := <-c.Outbound():
		return frame
	default:
		t.Fatal("expected a queued frame")
		return nil
	}
}

func TestRegisterAndBroadcast(t *testing.T) {
	h := hub.New()

	a := hub.NewClient(4)
	b := hub.NewClient(4)
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.Len())

	h.Broadcast([]byte("hello"))

	require.Equal(t, "hello", string(drain(t, a)))
	require.Equal(t, "hello", string(drain(t, b)))
}

func TestDeregisterIsIdempotent(t *testing.T) {
	h := hub.New()
	c := hub.NewClient(4)
	h.Register(c)

	h.Deregister(c)
	h.Deregister(c) // duplicate close events must be harmless
	require.Equal(t, 0, h.Len())

	select {
	case <-c.Done():
	default:
		t.Fatal("done must be closed after deregistration")
	}
}

func TestDeregisteredClientGetsNothing(t *testing.T) {
	h := hub.New()
	a := hub.NewClient(4)
	b := hub.NewClient(4)
	h.Register(a)
	h.Register(b)
	h.Deregister(a)

	h.Broadcast([]byte("x"))

	require.False(t, a.Send([]byte("direct")), "send after close must be a safe no-op")
	select {
	case <-a.Outbound():
		t.Fatal("deregistered client must not receive broadcasts")
	default:
	}
	require.Equal(t, "x", string(drain(t, b)))
}

func TestFullClientIsDroppedWithoutStallingOthers(t *testing.T) {
	h := hub.New()
	slow := hub.NewClient(1)
	fast := hub.NewClient(8)
	h.Register(slow)
	h.Register(fast)

	// Nobody drains slow's queue of one; the second broadcast overflows it.
	h.Broadcast([]byte("one"))
	h.Broadcast([]byte("two"))

	require.Equal(t, 1, h.Len(), "overflowing client must be deregistered")
	require.Equal(t, "one", string(drain(t, fast)))
	require.Equal(t, "two", string(drain(t, fast)))
}

func TestBroadcastOrderPerClient(t *testing.T) {
	h := hub.New()
	c := hub.NewClient(16)
	h.Register(c)

	for i := 0; i < 10; i++ {
		h.Broadcast([]byte(fmt.Sprintf("m%d", i)))
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, fmt.Sprintf("m%d", i), string(drain(t, c)))
	}
}

func TestShutdownReleasesAllClients(t *testing.T) {
	h := hub.New()
	a := hub.NewClient(4)
	b := hub.NewClient(4)
	h.Register(a)
	h.Register(b)

	h.Shutdown()

	require.Equal(t, 0, h.Len())
	for _, c := range []*hub.Client{a, b} {
		select {
		case <-c.Done():
		default:
			t.Fatal("shutdown must close every client")
		}
	}
}
