package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-system/pkg/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(logger.NewLogger("error", ""))
}

// attach wires a client into a room without a real connection so the queueing
// path can be exercised on its own, with no pump goroutines running.
func attach(h *Hub, electionID string, buffer int) *Client {
	c := &Client{
		hub:        h,
		electionID: electionID,
		send:       make(chan Message, buffer),
		done:       make(chan struct{}),
	}
	h.mu.Lock()
	room, ok := h.rooms[electionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[electionID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func TestBroadcastDropsBackloggedClient(t *testing.T) {
	h := newTestHub(t)
	slow := attach(h, "elec-1", 1)
	fast := attach(h, "elec-1", 4)
	require.Equal(t, 2, h.SubscriberCount("elec-1"))

	// First broadcast fills the slow client's buffer.
	h.Broadcast("elec-1", Message{Type: "results_update"})
	require.Equal(t, 2, h.SubscriberCount("elec-1"))

	// The second one finds it full and evicts it. Queueing must keep working
	// for the surviving client and stay quiet for the evicted one.
	h.Broadcast("elec-1", Message{Type: "results_update"})
	assert.Equal(t, 1, h.SubscriberCount("elec-1"))

	select {
	case <-slow.done:
	default:
		t.Fatal("evicted client was not signalled")
	}
	assert.False(t, slow.Send(Message{Type: "results_update"}))
	assert.True(t, fast.Send(Message{Type: "results_update"}))

	// A later broadcast must not revive or re-signal the dropped client.
	h.Broadcast("elec-1", Message{Type: "vote_recorded"})
	assert.Equal(t, 1, h.SubscriberCount("elec-1"))
}

func TestBroadcastAfterClose(t *testing.T) {
	h := newTestHub(t)
	a := attach(h, "elec-1", 1)
	b := attach(h, "elec-2", 1)

	h.Close()
	assert.Equal(t, 0, h.SubscriberCount("elec-1"))
	assert.Equal(t, 0, h.SubscriberCount("elec-2"))

	for _, c := range []*Client{a, b} {
		select {
		case <-c.done:
		default:
			t.Fatal("client was not signalled on close")
		}
		assert.False(t, c.Send(Message{Type: "results_update"}))
	}

	// Broadcasting into emptied rooms is a no-op, not a panic.
	h.Broadcast("elec-1", Message{Type: "results_update"})
}
