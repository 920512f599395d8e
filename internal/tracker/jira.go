// Package tracker implements the issue tracker port against the Jira REST
// API.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/signaldesk/triage-service/internal/config"
	"github.com/signaldesk/triage-service/internal/domain"
	"github.com/signaldesk/triage-service/internal/store"
)

// JiraTracker creates issues over the Jira REST API. The delivery ledger
// makes creation duplicate-tolerant: a replay for a ticket that already has
// an issue returns the recorded key without another API call.
type JiraTracker struct {
	baseURL    string
	projectKey string
	email      string
	apiToken   string
	client     *http.Client
	ledger     store.DeliveryLedger
	logger     *zap.Logger
}

// NewJiraTracker builds the tracker.
func NewJiraTracker(cfg config.JiraConfig, client *http.Client, ledger store.DeliveryLedger, logger *zap.Logger) *JiraTracker {
	if client == nil {
		client = http.DefaultClient
	}
	return &JiraTracker{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		projectKey: cfg.ProjectKey,
		email:      cfg.Email,
		apiToken:   cfg.APIToken,
		client:     client,
		ledger:     ledger,
		logger:     logger,
	}
}

type jiraCreateRequest struct {
	Fields jiraFields `json:"fields"`
}

type jiraFields struct {
	Project     jiraProject   `json:"project"`
	Summary     string        `json:"summary"`
	Description string        `json:"description"`
	IssueType   jiraIssueType `json:"issuetype"`
	Labels      []string      `json:"labels,omitempty"`
}

type jiraProject struct {
	Key string `json:"key"`
}

type jiraIssueType struct {
	Name string `json:"name"`
}

type jiraCreateResponse struct {
	Key string `json:"key"`
}

// CreateIssue files a Jira issue for the routed ticket and returns its key.
func (j *JiraTracker) CreateIssue(ctx context.Context, t *domain.TicketState) (string, error) {
	if key, delivered, err := j.ledger.Get(ctx, t.ID, store.SinkIssueTracker); err != nil {
		return "", err
	} else if delivered {
		j.logger.Debug("issue already created", zap.String("ticket_id", t.ID), zap.String("issue_key", key))
		return key, nil
	}

	payload, err := json.Marshal(jiraCreateRequest{
		Fields: jiraFields{
			Project:     jiraProject{Key: j.projectKey},
			Summary:     summary(t),
			Description: description(t),
			IssueType:   jiraIssueType{Name: issueTypeName(t)},
			Labels:      []string{"triage", "queue-" + t.RoutedQueue},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode jira request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/rest/api/2/issue", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build jira request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(j.email, j.apiToken)

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("jira call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read jira response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jira returned status %d", resp.StatusCode)
	}

	var created jiraCreateResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode jira response: %w", err)
	}
	if created.Key == "" {
		return "", fmt.Errorf("jira response has no issue key")
	}

	if _, err := j.ledger.Record(ctx, t.ID, store.SinkIssueTracker, created.Key); err != nil {
		return "", err
	}
	return created.Key, nil
}

func summary(t *domain.TicketState) string {
	issueType := "Other"
	if t.Classification != nil {
		issueType = t.Classification.IssueType
	}
	text := strings.TrimSpace(t.Text)
	if len(text) > 80 {
		text = text[:77] + "..."
	}
	return fmt.Sprintf("[%s] %s", issueType, text)
}

func description(t *domain.TicketState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket: %s\nChannel: %s\nTeam: %s\nQueue: %s\n", t.ID, t.Channel, t.RoutedTeam, t.RoutedQueue)
	if c := t.Classification; c != nil {
		fmt.Fprintf(&b, "Priority: %s\nConfidence: %.2f\nReasoning: %s\n", c.Priority, c.Confidence, c.Reasoning)
	}
	fmt.Fprintf(&b, "\n%s", t.Text)
	return b.String()
}

func issueTypeName(t *domain.TicketState) string {
	if t.Classification != nil && t.Classification.IssueType == "Bug" {
		return "Bug"
	}
	return "Task"
}

// LogTracker is the fallback when no Jira instance is configured. It mints a
// local key so downstream consumers still see a stable identifier.
type LogTracker struct {
	ledger store.DeliveryLedger
	logger *zap.Logger
}

// NewLogTracker builds the fallback tracker.
func NewLogTracker(ledger store.DeliveryLedger, logger *zap.Logger) *LogTracker {
	return &LogTracker{ledger: ledger, logger: logger}
}

// CreateIssue records the issue locally and returns its key.
func (l *LogTracker) CreateIssue(ctx context.Context, t *domain.TicketState) (string, error) {
	if key, delivered, err := l.ledger.Get(ctx, t.ID, store.SinkIssueTracker); err != nil {
		return "", err
	} else if delivered {
		return key, nil
	}
	key := localIssueKey(t.ID)
	l.logger.Info("issue recorded locally",
		zap.String("ticket_id", t.ID),
		zap.String("issue_key", key),
		zap.String("team", t.RoutedTeam))
	if _, err := l.ledger.Record(ctx, t.ID, store.SinkIssueTracker, key); err != nil {
		return "", err
	}
	return key, nil
}

func localIssueKey(ticketID string) string {
	id := strings.ReplaceAll(ticketID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "LOCAL-" + strings.ToUpper(id)
}
