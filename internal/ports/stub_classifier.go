package ports

import (
	"context"
	"strings"

	"github.com/signaldesk/triage-service/internal/domain"
)

// StubClassifier is a deterministic classifier used when no model endpoint
// is configured, and by tests. It mirrors the behaviour of the demo model:
// "error" marks a bug, "urgent" raises the priority.
type StubClassifier struct{}

// NewStubClassifier returns the deterministic classifier.
func NewStubClassifier() *StubClassifier {
	return &StubClassifier{}
}

// Classify derives a classification from keyword heuristics.
func (s *StubClassifier) Classify(_ context.Context, text string) (domain.Classification, error) {
	lower := strings.ToLower(text)

	issueType := "Other"
	if strings.Contains(lower, "error") {
		issueType = "Bug"
	}
	priority := domain.PriorityP3
	if strings.Contains(lower, "urgent") {
		priority = domain.PriorityP1
	}

	return domain.Classification{
		IssueType:  issueType,
		Priority:   priority,
		Confidence: 0.92,
		Reasoning:  "keyword heuristics: 'error' -> Bug, 'urgent' -> P1",
	}, nil
}
