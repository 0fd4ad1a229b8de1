package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"shelfmate/internal/models"
	"shelfmate/internal/service"
)

// ErrSlowClient is returned when a connection's send buffer is full.
var ErrSlowClient = errors.New("websocket client send buffer full")

// Client is a single notification stream for one member.
type Client struct {
	MemberID uint
	Send     chan []byte
	hub      *Hub
	mu       sync.Mutex
	closed   bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.hub != nil {
		c.hub.unregister(c)
	}
	close(c.Send)
}

// Hub tracks open notification streams by member. One member can have
// several connections.
type Hub struct {
	mu       sync.RWMutex
	byMember map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byMember: make(map[uint]map[*Client]struct{})}
}

// NewClient registers a client for memberID with the given buffer size.
func (h *Hub) NewClient(memberID uint, buffer int) *Client {
	c := &Client{MemberID: memberID, Send: make(chan []byte, buffer), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byMember[memberID] == nil {
		h.byMember[memberID] = make(map[*Client]struct{})
	}
	h.byMember[memberID][c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byMember[c.MemberID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byMember, c.MemberID)
		}
	}
}

func (h *Hub) Name() string { return "ws" }

type envelope struct {
	Type         string              `json:"type"`
	Notification service.PushMessage `json:"notification"`
}

// Push queues msg on every open stream of the recipient. A member with no
// open stream is not an error.
func (h *Hub) Push(_ context.Context, recipient *models.Member, msg service.PushMessage) error {
	data, err := json.Marshal(envelope{Type: "notification", Notification: msg})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	var errs error
	for c := range h.byMember[recipient.ID] {
		select {
		case c.Send <- data:
		default:
			errs = ErrSlowClient
		}
	}
	return errs
}

// ConnectionCount returns the number of open streams for memberID.
func (h *Hub) ConnectionCount(memberID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byMember[memberID])
}
