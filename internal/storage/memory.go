package storage

import (
	"sort"
	"strings"
	"sync"

	"gozon/order-tracking/internal/order"
)

// MemoryStore keeps the latest state of every order in process memory.
// Every read returns copies.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]order.Order)}
}

// Upsert inserts o or replaces the existing record with the same id.
func (s *MemoryStore) Upsert(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
}

func (s *MemoryStore) GetByID(id string) (order.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, false
	}
	return o.Clone(), true
}

func (s *MemoryStore) GetAll() []order.Order {
	return s.collect(func(order.Order) bool { return true })
}

func (s *MemoryStore) GetByUser(userID int) []order.Order {
	return s.collect(func(o order.Order) bool { return o.UserID == userID })
}

// GetByStatus matches status ignoring case.
func (s *MemoryStore) GetByStatus(status string) []order.Order {
	return s.collect(func(o order.Order) bool { return strings.EqualFold(string(o.Status), status) })
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// collect returns matching orders, newest first.
func (s *MemoryStore) collect(match func(order.Order) bool) []order.Order {
	s.mu.RLock()
	result := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if match(o) {
			result = append(result, o.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
