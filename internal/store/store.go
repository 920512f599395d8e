// Package store holds the ticket state registry and the delivery ledger.
// Both have an in-memory implementation used by default and a Redis-backed
// implementation for deployments where state must survive the process.
package store

import (
	"context"
	"errors"

	"github.com/signaldesk/triage-service/internal/domain"
)

// ErrNotFound is returned when a ticket id is unknown to the store.
var ErrNotFound = errors.New("ticket not found")

// TicketStore registers ticket states keyed by id. GetOrCreate is atomic so
// duplicate ingestion of one id can never produce two states, and the run
// claim guarantees at most one active pipeline run per ticket.
type TicketStore interface {
	// GetOrCreate stores the ticket if the id is new and reports whether it
	// did. When the id already exists the stored state is returned instead.
	GetOrCreate(ctx context.Context, t *domain.TicketState) (*domain.TicketState, bool, error)
	// Get returns a copy of the stored state, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.TicketState, error)
	// Save replaces the stored state. Only the orchestrator that holds the
	// ticket's run claim calls Save, one full snapshot per completed stage.
	Save(ctx context.Context, t *domain.TicketState) error
	// ClaimRun takes the exclusive run claim for a ticket. It reports false
	// when another run already holds it.
	ClaimRun(ctx context.Context, id string) (bool, error)
	// ReleaseRun gives the claim back once the run has finished.
	ReleaseRun(ctx context.Context, id string) error
}

// DeliveryLedger records the first successful delivery per ticket and sink
// so retries and duplicate runs stay idempotent. For the issue tracker the
// recorded value is the created issue key.
type DeliveryLedger interface {
	// Record stores the delivery key if the (ticket, sink) pair is unseen
	// and reports whether it did; an already-recorded delivery wins.
	Record(ctx context.Context, ticketID, sink, key string) (bool, error)
	// Get returns the recorded key and whether a delivery exists.
	Get(ctx context.Context, ticketID, sink string) (string, bool, error)
}

// Sink names used as ledger keys.
const (
	SinkNotifier     = "notifier"
	SinkIssueTracker = "issue_tracker"
)
