package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPlaced     Status = "PLACED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
)

// ParseStatus matches s against the known statuses ignoring case.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusPlaced, StatusProcessing, StatusCompleted} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

type Order struct {
	ID          string
	UserID      int
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Status      Status
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func (o Order) TotalAmount() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// Clone returns a copy that shares no memory with o.
func (o Order) Clone() Order {
	if o.ProcessedAt != nil {
		t := *o.ProcessedAt
		o.ProcessedAt = &t
	}
	return o
}

// StartProcessing moves a placed order to PROCESSING and stamps processed_at.
func (o *Order) StartProcessing(now time.Time) error {
	if o.Status != StatusPlaced {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusProcessing}
	}
	stamp := now.UTC()
	o.Status = StatusProcessing
	o.ProcessedAt = &stamp
	return nil
}

func (o *Order) Complete() error {
	if o.Status != StatusProcessing {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusCompleted}
	}
	o.Status = StatusCompleted
	return nil
}

// View is the read model returned to callers.
type View struct {
	OrderID     string          `json:"order_id"`
	UserID      int             `json:"user_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at"`
}

func NewView(o Order) View {
	o = o.Clone()
	return View{
		OrderID:     o.ID,
		UserID:      o.UserID,
		ProductName: o.ProductName,
		Quantity:    o.Quantity,
		Price:       o.Price,
		TotalAmount: o.TotalAmount(),
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		ProcessedAt: o.ProcessedAt,
	}
}

func NewViews(orders []Order) []View {
	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, NewView(o))
	}
	return views
}
