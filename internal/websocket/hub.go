package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gozon/order-tracking/internal/order"
)

const broadcastBuffer = 256

type OrderUpdate struct {
	OrderID     string       `json:"order_id"`
	Status      order.Status `json:"status"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

type Client struct {
	hub     *Hub
	conn    *Conn
	send    chan []byte
	orderID string
}

// Hub fans order updates out to the websocket clients watching each order.
// The client map is owned by the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan OrderUpdate
	clients    map[string]map[*Client]bool
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan OrderUpdate, broadcastBuffer),
		clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.orderID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.orderID] = set
			}
			set[c] = true
		case c := <-h.unregister:
			h.remove(c)
		case upd := <-h.broadcast:
			msg, err := json.Marshal(upd)
			if err != nil {
				h.logger.Error("marshal order update", "order_id", upd.OrderID, "err", err)
				continue
			}
			for c := range h.clients[upd.OrderID] {
				select {
				case c.send <- msg:
				default:
					h.remove(c)
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.orderID]
	if !ok {
		return
	}
	if _, exists := set[c]; exists {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.orderID)
	}
}

// Broadcast queues u for delivery. Updates are dropped when the queue is
// full so the caller never blocks.
func (h *Hub) Broadcast(u OrderUpdate) {
	select {
	case h.broadcast <- u:
	default:
		h.logger.Warn("order update dropped, hub queue full", "order_id", u.OrderID)
	}
}

// NotifyStatusChanged implements order.Notifier.
func (h *Hub) NotifyStatusChanged(_ context.Context, o order.Order, _ order.Status) {
	h.Broadcast(OrderUpdate{OrderID: o.ID, Status: o.Status, ProcessedAt: o.ProcessedAt})
}
