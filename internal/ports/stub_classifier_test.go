package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaldesk/triage-service/internal/domain"
)

func TestStubClassifier(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantType     string
		wantPriority domain.Priority
	}{
		{"error marks a bug", "I get an Error on login", "Bug", domain.PriorityP3},
		{"urgent raises priority", "urgent: need access", "Other", domain.PriorityP1},
		{"both keywords", "URGENT error in checkout", "Bug", domain.PriorityP1},
		{"neither keyword", "how do I change my plan", "Other", domain.PriorityP3},
	}

	c := NewStubClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.IssueType)
			assert.Equal(t, tt.wantPriority, got.Priority)
			assert.InDelta(t, 0.92, got.Confidence, 1e-9)
			assert.NotEmpty(t, got.Reasoning)
		})
	}
}
