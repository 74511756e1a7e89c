package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gozon/order-tracking/internal/httpapi"
	"gozon/order-tracking/internal/order"
	"gozon/order-tracking/internal/storage"
	"gozon/order-tracking/pkg/contracts"
	"gozon/order-tracking/pkg/messaging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte) error {
	return errors.New("broker unavailable")
}

func (failingPublisher) Close() error { return nil }

type fixture struct {
	store  *storage.MemoryStore
	log    *messaging.MemoryLog
	server http.Handler
}

func newFixture(t *testing.T, pub messaging.Publisher) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	log := messaging.NewMemoryLog(1)
	if pub == nil {
		pub = log.Publisher(contracts.OrdersTopic)
	}
	svc := order.NewService(store, order.NewEventPublisher(pub, logger), logger)
	return fixture{store: store, log: log, server: httpapi.NewServer(svc, nil, logger)}
}

func (f fixture) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func completedOrder(id string, userID int, age time.Duration) order.Order {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-age)
	processed := created.Add(time.Second)
	return order.Order{
		ID:          id,
		UserID:      userID,
		ProductName: "Widget",
		Quantity:    2,
		Price:       decimal.RequireFromString("9.99"),
		Status:      order.StatusCompleted,
		CreatedAt:   created,
		ProcessedAt: &processed,
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, http.MethodPost, "/api/orders/",
		`{"user_id":1,"product_name":"Widget","quantity":2,"price":9.99}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, "Order created and published successfully", env.Message)

	var view map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "PLACED", view["status"])
	assert.Equal(t, "19.98", view["total_amount"])
	assert.Nil(t, view["processed_at"])
	assert.NotEmpty(t, view["order_id"])

	assert.Zero(t, f.store.Len(), "creation only publishes")

	src := f.log.Source(contracts.OrdersTopic, "test")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, view["order_id"], string(msg.Key))

	code, env = f.do(t, http.MethodGet, "/api/orders/"+view["order_id"].(string), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Order not found", env.Message)
}

func TestCreateOrder_Rejected(t *testing.T) {
	tests := []struct {
		name string
		pub  messaging.Publisher
		body string
		code int
	}{
		{name: "malformed json", body: `{"user_id":`, code: http.StatusBadRequest},
		{name: "zero quantity", body: `{"user_id":1,"product_name":"Widget","quantity":0,"price":1}`, code: http.StatusBadRequest},
		{name: "blank product", body: `{"user_id":1,"product_name":"  ","quantity":1,"price":1}`, code: http.StatusBadRequest},
		{
			name: "broker failure",
			pub:  failingPublisher{},
			body: `{"user_id":1,"product_name":"Widget","quantity":1,"price":1}`,
			code: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.pub)
			code, env := f.do(t, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.code, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
			assert.Zero(t, f.store.Len())
		})
	}
}

func TestCreateOrder_BrokerFailureMessage(t *testing.T) {
	f := newFixture(t, failingPublisher{})
	_, env := f.do(t, http.MethodPost, "/api/orders",
		`{"user_id":1,"product_name":"Widget","quantity":1,"price":1}`)
	assert.True(t, strings.HasPrefix(env.Message, "Failed to create order: "), env.Message)
	assert.Contains(t, env.Message, "broker unavailable")
}

func TestQueries(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Upsert(completedOrder("old", 1, 2*time.Hour))
	f.store.Upsert(completedOrder("new", 1, time.Hour))
	f.store.Upsert(completedOrder("other", 2, 0))

	code, env := f.do(t, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Retrieved 3 orders", env.Message)

	code, env = f.do(t, http.MethodGet, "/api/orders/user/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Retrieved 2 orders for user 1", env.Message)
	var views []order.View
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 2)
	assert.Equal(t, "new", views[0].OrderID)
	assert.Equal(t, "old", views[1].OrderID)

	code, env = f.do(t, http.MethodGet, "/api/orders/status/completed", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Retrieved 3 orders with status 'completed'", env.Message)

	code, env = f.do(t, http.MethodGet, "/api/orders/status/PLACED", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Retrieved 0 orders with status 'PLACED'", env.Message)
	assert.JSONEq(t, `[]`, string(env.Data))

	code, env = f.do(t, http.MethodGet, "/api/orders/new", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Order retrieved successfully", env.Message)
	var view order.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, order.StatusCompleted, view.Status)
	assert.True(t, view.TotalAmount.Equal(decimal.RequireFromString("19.98")))
	require.NotNil(t, view.ProcessedAt)

	code, env = f.do(t, http.MethodGet, "/api/orders/user/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}
