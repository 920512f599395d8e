package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage enumerates lifecycle states for a triage run.
type Stage string

const (
	StageCreated          Stage = "CREATED"
	StageClassified       Stage = "CLASSIFIED"
	StagePolicyEvaluated  Stage = "POLICY_EVALUATED"
	StageRouted           Stage = "ROUTED"
	StageReviewDispatched Stage = "REVIEW_DISPATCHED"
	StageIssueCreated     Stage = "ISSUE_CREATED"
	StageCompleted        Stage = "COMPLETED"
)

// Priority enumerates ticket severity, highest first.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Valid reports whether the priority is one of the known severities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Critical reports whether the priority is one of the top two severities.
func (p Priority) Critical() bool {
	return p == PriorityP0 || p == PriorityP1
}

// Classification is the result produced by the classifier port.
type Classification struct {
	IssueType  string   `json:"issue_type"`
	Priority   Priority `json:"priority"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Route identifies the team and queue responsible for a ticket.
type Route struct {
	Team  string `json:"team"`
	Queue string `json:"queue"`
}

// AuditEntry is one append-only record in a ticket's audit log.
type AuditEntry struct {
	ID        string         `json:"id"`
	Stage     string         `json:"stage"`
	Rule      string         `json:"rule,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TicketState is the unit of work driven through the triage pipeline.
// Channel, Text and Metadata are immutable after creation; derived fields
// are written once each by the stage that owns them.
type TicketState struct {
	ID       string            `json:"ticket_id"`
	Channel  string            `json:"channel"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Stage          Stage           `json:"stage"`
	Classification *Classification `json:"classification,omitempty"`

	HumanReviewRequired bool   `json:"human_review_required"`
	RoutedTeam          string `json:"routed_team,omitempty"`
	RoutedQueue         string `json:"routed_queue,omitempty"`
	IssueKey            string `json:"issue_tracker_key,omitempty"`

	Degraded  bool   `json:"degraded"`
	LastError string `json:"last_error,omitempty"`

	AuditLog []AuditEntry `json:"audit_log"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTicketState builds a ticket in the CREATED stage.
func NewTicketState(id, channel, text string, metadata map[string]string) *TicketState {
	now := time.Now().UTC()
	return &TicketState{
		ID:        id,
		Channel:   channel,
		Text:      text,
		Metadata:  metadata,
		Stage:     StageCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendAudit appends a stage record to the audit log. The log only ever
// grows; nothing removes or rewrites entries.
func (t *TicketState) AppendAudit(stage string, detail map[string]any) {
	t.appendAudit(stage, "", detail)
}

// AppendRuleAudit appends a record for a triggered policy rule.
func (t *TicketState) AppendRuleAudit(stage, rule string, detail map[string]any) {
	t.appendAudit(stage, rule, detail)
}

func (t *TicketState) appendAudit(stage, rule string, detail map[string]any) {
	t.AuditLog = append(t.AuditLog, AuditEntry{
		ID:        uuid.NewString(),
		Stage:     stage,
		Rule:      rule,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
	t.UpdatedAt = time.Now().UTC()
}

// RequireHumanReview sets the review flag. The flag is one-way: once true it
// is never reset within a run.
func (t *TicketState) RequireHumanReview() {
	t.HumanReviewRequired = true
}

// Completed reports whether the run reached its terminal stage.
func (t *TicketState) Completed() bool {
	return t.Stage == StageCompleted
}

// Clone returns a deep copy so readers never share mutable state with the
// orchestrator that owns the ticket.
func (t *TicketState) Clone() *TicketState {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Metadata != nil {
		clone.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	if t.Classification != nil {
		c := *t.Classification
		clone.Classification = &c
	}
	if t.AuditLog != nil {
		clone.AuditLog = make([]AuditEntry, len(t.AuditLog))
		copy(clone.AuditLog, t.AuditLog)
	}
	return &clone
}
