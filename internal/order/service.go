package order

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxProductNameLen = 200
	maxQuantity       = 1000
)

var minPrice = decimal.RequireFromString("0.01")

type CreateRequest struct {
	UserID      int             `json:"user_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (r CreateRequest) Validate() error {
	if r.UserID < 1 {
		return &ValidationError{Field: "user_id", Reason: "must be greater than 0"}
	}
	name := strings.TrimSpace(r.ProductName)
	if name == "" || utf8.RuneCountInString(name) > maxProductNameLen {
		return &ValidationError{Field: "product_name", Reason: "must be between 1 and 200 characters"}
	}
	if r.Quantity < 1 || r.Quantity > maxQuantity {
		return &ValidationError{Field: "quantity", Reason: "must be between 1 and 1000"}
	}
	if r.Price.LessThan(minPrice) {
		return &ValidationError{Field: "price", Reason: "must be greater than 0"}
	}
	return nil
}

type OrderPublisher interface {
	Publish(ctx context.Context, o Order) error
}

// Service is the request-facing side of the pipeline: creation goes to the
// log, reads go to the Store.
type Service struct {
	store  Store
	events OrderPublisher
	now    func() time.Time
	logger *slog.Logger
}

func NewService(store Store, events OrderPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		now:    time.Now,
		logger: logger.With("component", "order_service"),
	}
}

// Create publishes a new PLACED order and returns its view. The order is
// not readable through Get until the consumer has processed it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (View, error) {
	if err := req.Validate(); err != nil {
		return View{}, err
	}

	o := Order{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		ProductName: strings.TrimSpace(req.ProductName),
		Quantity:    req.Quantity,
		Price:       req.Price,
		Status:      StatusPlaced,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.events.Publish(ctx, o); err != nil {
		return View{}, err
	}

	s.logger.InfoContext(ctx, "order created", "order_id", o.ID, "user_id", o.UserID)
	return NewView(o), nil
}

func (s *Service) Get(_ context.Context, orderID string) (View, error) {
	o, ok := s.store.GetByID(orderID)
	if !ok {
		return View{}, ErrOrderNotFound
	}
	return NewView(o), nil
}

func (s *Service) List(_ context.Context) []View {
	return NewViews(s.store.GetAll())
}

func (s *Service) ListByUser(_ context.Context, userID int) []View {
	return NewViews(s.store.GetByUser(userID))
}

func (s *Service) ListByStatus(_ context.Context, status string) []View {
	return NewViews(s.store.GetByStatus(status))
}
