package order

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gozon/order-tracking/pkg/contracts"
	"gozon/order-tracking/pkg/messaging"

	"github.com/google/uuid"
)

// Notifier is told about every transition after it has been persisted.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, o Order, previous Status)
}

type NopNotifier struct{}

func (NopNotifier) NotifyStatusChanged(context.Context, Order, Status) {}

type MultiNotifier []Notifier

func (m MultiNotifier) NotifyStatusChanged(ctx context.Context, o Order, previous Status) {
	for _, n := range m {
		n.NotifyStatusChanged(ctx, o.Clone(), previous)
	}
}

// EventNotifier publishes status changes as events. Failures are logged only.
type EventNotifier struct {
	publisher messaging.Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewEventNotifier(publisher messaging.Publisher, timeout time.Duration, logger *slog.Logger) *EventNotifier {
	return &EventNotifier{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger.With("component", "status_notifier"),
	}
}

func (n *EventNotifier) NotifyStatusChanged(ctx context.Context, o Order, previous Status) {
	evt := contracts.OrderStatusChangedEvent{
		EventID:     uuid.NewString(),
		EventType:   contracts.EventOrderStatusChanged,
		OrderID:     o.ID,
		UserID:      o.UserID,
		OldStatus:   string(previous),
		NewStatus:   string(o.Status),
		ProcessedAt: o.ProcessedAt,
		OccurredAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("marshal status event", "order_id", o.ID, "err", err)
		return
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.publisher.Publish(ctx, o.ID, payload); err != nil {
		n.logger.Warn("publish status event failed", "order_id", o.ID, "status", o.Status, "err", err)
	}
}
