package order

import (
	"encoding/json"
	"fmt"

	"gozon/order-tracking/pkg/contracts"
)

func EncodeMessage(o Order) ([]byte, error) {
	o = o.Clone()
	msg := contracts.OrderMessage{
		OrderID:     o.ID,
		UserID:      o.UserID,
		ProductName: o.ProductName,
		Quantity:    o.Quantity,
		Price:       o.Price,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		ProcessedAt: o.ProcessedAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal order message: %w", err)
	}
	return payload, nil
}

// DecodeMessage parses a log value. A JSON null or a message without an
// order id yields ErrEmptyMessage.
func DecodeMessage(value []byte) (Order, error) {
	var msg *contracts.OrderMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return Order{}, fmt.Errorf("unmarshal order message: %w", err)
	}
	if msg == nil || msg.OrderID == "" {
		return Order{}, ErrEmptyMessage
	}

	status, ok := ParseStatus(msg.Status)
	if !ok {
		return Order{}, fmt.Errorf("order %s: unknown status %q", msg.OrderID, msg.Status)
	}

	return Order{
		ID:          msg.OrderID,
		UserID:      msg.UserID,
		ProductName: msg.ProductName,
		Quantity:    msg.Quantity,
		Price:       msg.Price,
		Status:      status,
		CreatedAt:   msg.CreatedAt,
		ProcessedAt: msg.ProcessedAt,
	}, nil
}
