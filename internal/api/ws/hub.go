package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"election-system/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	clientBuffer   = 16
	maxMessageSize = 512
)

// Message is one payload pushed to subscribed clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Client is one websocket subscriber scoped to a single election. send is
// never closed; done is closed exactly once when the client leaves its
// room, so queueing a message can never hit a closed channel.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	electionID string
	send       chan Message
	done       chan struct{}
}

// Hub fans results updates out to live-results subscribers, grouped per
// election. Slow clients are dropped rather than blocking the broadcast.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	log     *logger.Logger
	closing bool
}

// NewHub creates a hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		log:   log.WithComponent("ws"),
	}
}

// Subscribe attaches a connection to an election's room and starts its pump
// goroutines. The hub owns the connection from here on.
func (h *Hub) Subscribe(conn *websocket.Conn, electionID string) *Client {
	client := &Client{
		hub:        h,
		conn:       conn,
		electionID: electionID,
		send:       make(chan Message, clientBuffer),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	room, ok := h.rooms[electionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[electionID] = room
	}
	room[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
	return client
}

// Send queues a message for one client. Only the write pump touches the
// connection itself.
func (c *Client) Send(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Broadcast pushes a message to every subscriber of one election.
func (h *Hub) Broadcast(electionID string, msg Message) {
	h.mu.RLock()
	room := h.rooms[electionID]
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.Send(msg) {
			// client is not keeping up
			h.remove(c)
		}
	}
}

// SubscriberCount reports the number of live subscribers for one election.
func (h *Hub) SubscriberCount(electionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[electionID])
}

// Close drops every client and stops accepting new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closing = true
	var clients []*Client
	for _, room := range h.rooms {
		for c := range room {
			clients = append(clients, c)
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
	}
}

// remove detaches a client from its room. done is closed only here and in
// Close, and only for a client still present in a room, so it closes once.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.electionID]
	if ok {
		if _, present := room[c]; present {
			delete(room, c)
			close(c.done)
			if len(room) == 0 {
				delete(h.rooms, c.electionID)
			}
		}
	}
	h.mu.Unlock()
}

// readPump discards inbound frames; the live feed is push-only. Its real job
// is noticing the peer going away.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
