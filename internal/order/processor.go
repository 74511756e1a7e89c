package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gozon/order-tracking/pkg/messaging"
)

type Store interface {
	Upsert(o Order)
	GetByID(id string) (Order, bool)
	GetAll() []Order
	GetByUser(userID int) []Order
	GetByStatus(status string) []Order
}

// Delay stands in for the work done between PROCESSING and COMPLETED. It
// must return ctx.Err() when ctx is cancelled.
type Delay func(ctx context.Context, o Order) error

func FixedDelay(d time.Duration) Delay {
	return func(ctx context.Context, _ Order) error {
		return messaging.Sleep(ctx, d)
	}
}

type ProcessorOption func(*Processor)

func WithDelay(d Delay) ProcessorOption {
	return func(p *Processor) { p.delay = d }
}

func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// Processor drives an order from PLACED to COMPLETED, writing each
// transition to the Store.
type Processor struct {
	store    Store
	delay    Delay
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

func NewProcessor(store Store, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:    store,
		delay:    FixedDelay(200 * time.Millisecond),
		notifier: NopNotifier{},
		now:      time.Now,
		logger:   logger.With("component", "order_processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleMessage is a messaging.Handler for the orders topic.
func (p *Processor) HandleMessage(ctx context.Context, msg messaging.Message) error {
	o, err := DecodeMessage(msg.Value)
	if err != nil {
		return &ProcessingError{OrderID: string(msg.Key), Step: "decode", Err: err}
	}
	return p.Handle(ctx, o)
}

// Handle advances o. A redelivered order that is already COMPLETED is
// skipped, and one stuck in PROCESSING resumes with its original
// processed_at.
func (p *Processor) Handle(ctx context.Context, o Order) error {
	resumed := false
	if current, ok := p.store.GetByID(o.ID); ok {
		switch current.Status {
		case StatusCompleted:
			p.logger.DebugContext(ctx, "order already completed, skipping", "order_id", o.ID)
			return nil
		case StatusProcessing:
			p.logger.InfoContext(ctx, "resuming order", "order_id", o.ID)
			o = current
			resumed = true
		}
	}

	if !resumed {
		if err := o.StartProcessing(p.now()); err != nil {
			return &ProcessingError{OrderID: o.ID, Step: "start processing", Err: err}
		}
		p.persist(ctx, o, StatusPlaced)
		p.logger.InfoContext(ctx, "processing order",
			"order_id", o.ID,
			"user_id", o.UserID,
			"product_name", o.ProductName,
			"quantity", o.Quantity,
			"amount", o.TotalAmount().String(),
		)
	}

	if err := p.delay(ctx, o); err != nil {
		return fmt.Errorf("processing order %s: %w", o.ID, err)
	}

	if err := o.Complete(); err != nil {
		return &ProcessingError{OrderID: o.ID, Step: "complete", Err: err}
	}
	p.persist(ctx, o, StatusProcessing)
	p.logger.InfoContext(ctx, "order completed", "order_id", o.ID)
	return nil
}

func (p *Processor) persist(ctx context.Context, o Order, previous Status) {
	p.store.Upsert(o.Clone())
	p.notifier.NotifyStatusChanged(ctx, o.Clone(), previous)
}
