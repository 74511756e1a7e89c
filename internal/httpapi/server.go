package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gozon/order-tracking/internal/order"
	"gozon/order-tracking/pkg/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Server struct {
	orderSvc *order.Service
	watch    http.HandlerFunc
	logger   *slog.Logger
	router   chi.Router
}

// NewServer builds the API router. watch serves the per-order status stream
// and may be nil.
func NewServer(orderSvc *order.Service, watch http.HandlerFunc, logger *slog.Logger) *Server {
	s := &Server{
		orderSvc: orderSvc,
		watch:    watch,
		logger:   logger.With("component", "httpapi"),
		router:   chi.NewRouter(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.health)
	s.router.Route("/api/orders", func(r chi.Router) {
		r.Post("/", s.createOrder)
		r.Get("/", s.listOrders)
		r.Get("/user/{userID}", s.listUserOrders)
		r.Get("/status/{status}", s.listStatusOrders)
		r.Get("/{orderID}", s.getOrder)
		if s.watch != nil {
			r.Get("/{orderID}/ws", s.watch)
		}
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Healthy"})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.logger.InfoContext(r.Context(), "creating order", "user_id", req.UserID)

	view, err := s.orderSvc.Create(r.Context(), req)
	if err != nil {
		var pubErr *messaging.PublishError
		switch {
		case errors.Is(err, order.ErrInvalidOrder):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &pubErr):
			writeError(w, http.StatusBadGateway, "Failed to create order: "+err.Error())
		default:
			s.logger.ErrorContext(r.Context(), "create order", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Order created and published successfully",
		Data:    view,
	})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	views := s.orderSvc.List(r.Context())
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d orders", len(views)),
		Data:    views,
	})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	view, err := s.orderSvc.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "get order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Order retrieved successfully",
		Data:    view,
	})
}

func (s *Server) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	views := s.orderSvc.ListByUser(r.Context(), userID)
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d orders for user %d", len(views), userID),
		Data:    views,
	})
}

func (s *Server) listStatusOrders(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")
	views := s.orderSvc.ListByStatus(r.Context(), status)
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d orders with status '%s'", len(views), status),
		Data:    views,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Message: msg})
}
