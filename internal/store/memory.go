package store

import (
	"context"
	"sync"

	"github.com/signaldesk/triage-service/internal/domain"
)

// MemoryTicketStore keeps ticket states in a mutex-guarded map. States are
// cloned on the way in and out so callers never share mutable state.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.TicketState
	claims  map[string]bool
}

// NewMemoryTicketStore builds an empty in-memory store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{
		tickets: make(map[string]*domain.TicketState),
		claims:  make(map[string]bool),
	}
}

// GetOrCreate stores the ticket if new, otherwise returns the existing one.
func (s *MemoryTicketStore) GetOrCreate(_ context.Context, t *domain.TicketState) (*domain.TicketState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tickets[t.ID]; ok {
		return existing.Clone(), false, nil
	}
	s.tickets[t.ID] = t.Clone()
	return t.Clone(), true, nil
}

// Get returns a copy of the stored state.
func (s *MemoryTicketStore) Get(_ context.Context, id string) (*domain.TicketState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return existing.Clone(), nil
}

// Save replaces the stored state with a snapshot of t.
func (s *MemoryTicketStore) Save(_ context.Context, t *domain.TicketState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t.Clone()
	return nil
}

// ClaimRun takes the exclusive run claim for the ticket.
func (s *MemoryTicketStore) ClaimRun(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[id] {
		return false, nil
	}
	s.claims[id] = true
	return true, nil
}

// ReleaseRun returns the run claim.
func (s *MemoryTicketStore) ReleaseRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, id)
	return nil
}

// MemoryDeliveryLedger is the in-memory delivery ledger.
type MemoryDeliveryLedger struct {
	mu         sync.Mutex
	deliveries map[string]string
}

// NewMemoryDeliveryLedger builds an empty ledger.
func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{deliveries: make(map[string]string)}
}

// Record stores the key for a first delivery; later attempts are no-ops.
func (l *MemoryDeliveryLedger) Record(_ context.Context, ticketID, sink, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := ticketID + "|" + sink
	if _, ok := l.deliveries[id]; ok {
		return false, nil
	}
	l.deliveries[id] = key
	return true, nil
}

// Get returns the recorded delivery key, if any.
func (l *MemoryDeliveryLedger) Get(_ context.Context, ticketID, sink string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.deliveries[ticketID+"|"+sink]
	return key, ok, nil
}
