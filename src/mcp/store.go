package mcp

import "sync"

// DeliveryStore keeps the latest delivery record per order id.
type DeliveryStore interface {
	Store(record DeliveryRecord)
	// Resolve replaces the stored record of the same submission. It reports
	// false if the order was submitted again since.
	Resolve(record DeliveryRecord) bool
	Get(orderID string) (DeliveryRecord, bool)
}

// InMemoryStore is a thread-safe in-memory DeliveryStore.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]DeliveryRecord // order_id -> latest record
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]DeliveryRecord)}
}

// Store saves record, replacing any earlier record of the same order.
func (s *InMemoryStore) Store(record DeliveryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.OrderID] = record
}

// Get returns the latest record of orderID.
func (s *InMemoryStore) Get(orderID string) (DeliveryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[orderID]
	return r, ok
}

// Resolve stores record only if the current record of its order belongs to
// the same submission.
func (s *InMemoryStore) Resolve(record DeliveryRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[record.OrderID]
	if !ok || current.SubmissionID != record.SubmissionID {
		return false
	}
	s.records[record.OrderID] = record
	return true
}
