package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gozon/order-tracking/internal/order"

	"github.com/go-chi/chi/v5"
	gw "github.com/gorilla/websocket"
)

type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub      *Hub
	orderSvc *order.Service
	logger   *slog.Logger
}

func NewHandler(hub *Hub, orderSvc *order.Service, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, orderSvc: orderSvc, logger: logger.With("component", "websocket")}
}

// ServeWS streams status updates for one order. An order that is not
// visible yet is still watched, so the client sees its first transition.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "order_id", orderID, "err", err)
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 16),
		orderID: orderID,
	}

	if view, err := h.orderSvc.Get(r.Context(), orderID); err == nil {
		upd := OrderUpdate{OrderID: view.OrderID, Status: view.Status, ProcessedAt: view.ProcessedAt}
		if b, err := json.Marshal(upd); err == nil {
			client.send <- b
		}
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		close(client.send)
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
