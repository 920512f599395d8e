// Package ports defines the capability interfaces the triage pipeline calls
// across its boundary: the language-understanding classifier, the human
// review notifier and the issue tracker. Implementations live in their own
// packages; the pipeline depends only on these contracts.
package ports

import (
	"context"

	"github.com/signaldesk/triage-service/internal/domain"
)

// Classifier turns raw ticket text into a classification. Implementations
// may call an external model and may fail or time out.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Notifier surfaces a ticket to a human review channel. Delivery must be
// idempotent under at-least-once retry for the same ticket.
type Notifier interface {
	NotifyForReview(ctx context.Context, t *domain.TicketState) error
}

// IssueTracker creates a tracker issue for a routed ticket and returns its
// key. Duplicate creation requests for the same ticket must return the
// already-created key.
type IssueTracker interface {
	CreateIssue(ctx context.Context, t *domain.TicketState) (string, error)
}
