package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/signaldesk/triage-service/internal/config"
	"github.com/signaldesk/triage-service/internal/domain"
	"github.com/signaldesk/triage-service/internal/store"
)

func routedTicket() *domain.TicketState {
	t := domain.NewTicketState("a1b2c3d4-0000-0000-0000-000000000000", "email", "error exporting reports", nil)
	t.Classification = &domain.Classification{IssueType: "Bug", Priority: domain.PriorityP1, Confidence: 0.92, Reasoning: "mentions error"}
	t.RoutedTeam = "Backend"
	t.RoutedQueue = "engineering"
	return t
}

func TestJiraTrackerCreatesIssue(t *testing.T) {
	var calls int64
	var got jiraCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "api-token", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "SUP-314"})
	}))
	defer srv.Close()

	ledger := store.NewMemoryDeliveryLedger()
	j := NewJiraTracker(config.JiraConfig{
		BaseURL:    srv.URL,
		ProjectKey: "SUP",
		Email:      "bot@example.com",
		APIToken:   "api-token",
	}, srv.Client(), ledger, zap.NewNop())

	ticket := routedTicket()
	key, err := j.CreateIssue(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, "SUP-314", key)

	assert.Equal(t, "SUP", got.Fields.Project.Key)
	assert.Equal(t, "Bug", got.Fields.IssueType.Name)
	assert.Contains(t, got.Fields.Summary, "[Bug]")
	assert.Contains(t, got.Fields.Description, "Team: Backend")
	assert.Contains(t, got.Fields.Labels, "queue-engineering")

	// A replay returns the recorded key without another API call.
	key, err = j.CreateIssue(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, "SUP-314", key)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestJiraTrackerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ledger := store.NewMemoryDeliveryLedger()
	j := NewJiraTracker(config.JiraConfig{BaseURL: srv.URL, ProjectKey: "SUP"}, srv.Client(), ledger, zap.NewNop())

	_, err := j.CreateIssue(context.Background(), routedTicket())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")

	_, delivered, ledgerErr := ledger.Get(context.Background(), routedTicket().ID, store.SinkIssueTracker)
	require.NoError(t, ledgerErr)
	assert.False(t, delivered)
}

func TestJiraTrackerMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	j := NewJiraTracker(config.JiraConfig{BaseURL: srv.URL}, srv.Client(), store.NewMemoryDeliveryLedger(), zap.NewNop())
	_, err := j.CreateIssue(context.Background(), routedTicket())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no issue key")
}

func TestLogTrackerMintsStableKey(t *testing.T) {
	ledger := store.NewMemoryDeliveryLedger()
	l := NewLogTracker(ledger, zap.NewNop())

	ticket := routedTicket()
	key, err := l.CreateIssue(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, "LOCAL-A1B2C3D4", key)

	again, err := l.CreateIssue(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestIssueTypeName(t *testing.T) {
	ticket := routedTicket()
	assert.Equal(t, "Bug", issueTypeName(ticket))

	ticket.Classification.IssueType = "Billing"
	assert.Equal(t, "Task", issueTypeName(ticket))

	ticket.Classification = nil
	assert.Equal(t, "Task", issueTypeName(ticket))
}
