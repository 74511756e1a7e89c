package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gozon/order-tracking/internal/config"
	"gozon/order-tracking/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	return config.Config{
		HTTPAddr:            "127.0.0.1:0",
		Broker:              config.BrokerMemory,
		MemoryPartitions:    1,
		KafkaGroupID:        "order-consumer-group",
		PublishTimeout:      time.Second,
		PollTimeout:         20 * time.Millisecond,
		ProcessingDelay:     10 * time.Millisecond,
		UnknownTopicBackoff: 50 * time.Millisecond,
		ConsumeBackoff:      50 * time.Millisecond,
		ShutdownGracePeriod: time.Second,
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func createOrder(t *testing.T, h http.Handler, body string) order.View {
	t.Helper()
	code, resp := call(t, h, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var view order.View
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	return view
}

func waitCompleted(t *testing.T, h http.Handler, id string) order.View {
	t.Helper()
	var view order.View
	require.Eventually(t, func() bool {
		code, resp := call(t, h, http.MethodGet, "/api/orders/"+id, "")
		if code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(resp.Data, &view); err != nil {
			return false
		}
		return view.Status == order.StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)
	return view
}

func startApp(t *testing.T) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), memoryConfig(), logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		a.Close(context.Background())
	})
	return a
}

func TestPipeline_OrderReachesCompleted(t *testing.T) {
	a := startApp(t)
	h := a.Handler()

	placed := createOrder(t, h, `{"user_id":1,"product_name":"Widget","quantity":2,"price":9.99}`)
	assert.Equal(t, order.StatusPlaced, placed.Status)
	assert.Nil(t, placed.ProcessedAt)

	done := waitCompleted(t, h, placed.OrderID)
	require.NotNil(t, done.ProcessedAt)
	assert.Equal(t, "19.98", done.TotalAmount.String())
	assert.True(t, placed.CreatedAt.Equal(done.CreatedAt))
	assert.False(t, done.ProcessedAt.Before(done.CreatedAt))

	code, resp := call(t, h, http.MethodGet, "/api/orders/status/completed", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Retrieved 1 orders with status 'completed'", resp.Message)
}

func TestPipeline_MalformedMessageIsSkipped(t *testing.T) {
	a := startApp(t)
	h := a.Handler()

	ctx := context.Background()
	require.NoError(t, a.publisher.Publish(ctx, "garbage", []byte("{not json")))
	require.NoError(t, a.publisher.Publish(ctx, "empty", []byte(`{"order_id":""}`)))

	first := createOrder(t, h, `{"user_id":7,"product_name":"Gadget","quantity":1,"price":"5.00"}`)
	second := createOrder(t, h, `{"user_id":7,"product_name":"Gizmo","quantity":3,"price":"1.50"}`)

	waitCompleted(t, h, first.OrderID)
	waitCompleted(t, h, second.OrderID)

	code, resp := call(t, h, http.MethodGet, "/api/orders/user/7", "")
	require.Equal(t, http.StatusOK, code)
	var views []order.View
	require.NoError(t, json.Unmarshal(resp.Data, &views))
	assert.Len(t, views, 2)
	assert.Equal(t, 2, a.store.Len())
}

func TestNew_UnknownBroker(t *testing.T) {
	cfg := memoryConfig()
	cfg.Broker = "carrier-pigeon"
	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}
