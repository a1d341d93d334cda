package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Notification is pushed to every socket of the order's owner.
type Notification struct {
	Username    string      `json:"-"`
	OrderID     string      `json:"orderId"`
	Status      string      `json:"status"`
	TotalAmount json.Number `json:"totalAmount"`
}

type Client struct {
	hub      *Hub
	conn     *Conn
	send     chan []byte
	username string
}

// Hub fans notifications out to the sockets of one user. All state is owned
// by the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan Notification
	clients    map[string]map[*Client]bool
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Notification, 64),
		clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.username]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.username] = set
			}
			set[c] = true
		case c := <-h.unregister:
			h.remove(c)
		case n := <-h.broadcast:
			set, ok := h.clients[n.Username]
			if !ok {
				continue
			}
			msg, err := json.Marshal(n)
			if err != nil {
				h.logger.Error("encode notification", "order_id", n.OrderID, "err", err)
				continue
			}
			for c := range set {
				select {
				case c.send <- msg:
				default:
					// slow reader
					h.remove(c)
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*Client]bool{}
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.username]
	if !ok {
		return
	}
	if _, exists := set[c]; exists {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.username)
	}
}

// Notify queues n for delivery. It returns without blocking once the hub has stopped.
func (h *Hub) Notify(n Notification) {
	select {
	case h.broadcast <- n:
	case <-h.done:
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
