package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrdersTopic is the log every placed order is appended to.
const OrdersTopic = "orders"

const EventOrderStatusChanged = "orders.status_changed"

// OrderMessage is the value of a message on OrdersTopic. The message key is
// OrderID.
type OrderMessage struct {
	OrderID     string          `json:"order_id"`
	UserID      int             `json:"user_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at"`
}

type OrderStatusChangedEvent struct {
	EventID     string     `json:"event_id"`
	EventType   string     `json:"event_type"`
	OrderID     string     `json:"order_id"`
	UserID      int        `json:"user_id"`
	OldStatus   string     `json:"old_status"`
	NewStatus   string     `json:"new_status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}
