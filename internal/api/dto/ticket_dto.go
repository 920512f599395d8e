package dto

import (
	"time"

	"github.com/signaldesk/triage-service/internal/domain"
)

// IngestRequest payload.
type IngestRequest struct {
	Channel  string            `json:"channel"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// IngestResponse acknowledges acceptance; it says nothing about the
// eventual outcome.
type IngestResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// ClassificationResponse mirrors the classifier output.
type ClassificationResponse struct {
	IssueType  string  `json:"issue_type"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// AuditEntryResponse is one audit log record.
type AuditEntryResponse struct {
	Stage     string         `json:"stage"`
	Rule      string         `json:"rule,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TicketStateResponse provides the full triage outcome.
type TicketStateResponse struct {
	TicketID            string                  `json:"ticket_id"`
	Channel             string                  `json:"channel"`
	Stage               string                  `json:"stage"`
	Classification      *ClassificationResponse `json:"classification,omitempty"`
	HumanReviewRequired bool                    `json:"human_review_required"`
	RoutedTeam          string                  `json:"routed_team,omitempty"`
	RoutedQueue         string                  `json:"routed_queue,omitempty"`
	IssueTrackerKey     string                  `json:"issue_tracker_key,omitempty"`
	Degraded            bool                    `json:"degraded"`
	LastError           string                  `json:"last_error,omitempty"`
	AuditLog            []AuditEntryResponse    `json:"audit_log"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// FromTicketState maps the domain state to its API shape.
func FromTicketState(t *domain.TicketState) TicketStateResponse {
	resp := TicketStateResponse{
		TicketID:            t.ID,
		Channel:             t.Channel,
		Stage:               string(t.Stage),
		HumanReviewRequired: t.HumanReviewRequired,
		RoutedTeam:          t.RoutedTeam,
		RoutedQueue:         t.RoutedQueue,
		IssueTrackerKey:     t.IssueKey,
		Degraded:            t.Degraded,
		LastError:           t.LastError,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if c := t.Classification; c != nil {
		resp.Classification = &ClassificationResponse{
			IssueType:  c.IssueType,
			Priority:   string(c.Priority),
			Confidence: c.Confidence,
			Reasoning:  c.Reasoning,
		}
	}
	resp.AuditLog = make([]AuditEntryResponse, 0, len(t.AuditLog))
	for _, entry := range t.AuditLog {
		resp.AuditLog = append(resp.AuditLog, AuditEntryResponse{
			Stage:     entry.Stage,
			Rule:      entry.Rule,
			Detail:    entry.Detail,
			Timestamp: entry.Timestamp,
		})
	}
	return resp
}
