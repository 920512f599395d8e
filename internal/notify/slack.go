// Package notify implements the human review notifier port against a Slack
// incoming webhook.
package notify

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

// SlackNotifier posts a review request message to a Slack webhook. The
// delivery ledger makes retries idempotent: a ticket that was already
// notified is never posted twice.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
	ledger     store.DeliveryLedger
	logger     *zap.Logger
}

// NewSlackNotifier builds the notifier.
func NewSlackNotifier(cfg config.SlackConfig, client *http.Client, ledger store.DeliveryLedger, logger *zap.Logger) *SlackNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackNotifier{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		client:     client,
		ledger:     ledger,
		logger:     logger,
	}
}

type slackMessage struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// NotifyForReview posts the ticket summary for human triage.
func (n *SlackNotifier) NotifyForReview(ctx context.Context, t *domain.TicketState) error {
	if _, delivered, err := n.ledger.Get(ctx, t.ID, store.SinkNotifier); err != nil {
		return err
	} else if delivered {
		n.logger.Debug("review notification already delivered", zap.String("ticket_id", t.ID))
		return nil
	}

	payload, err := json.Marshal(slackMessage{
		Channel: n.channel,
		Text:    reviewText(t),
	})
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack call: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	if _, err := n.ledger.Record(ctx, t.ID, store.SinkNotifier, "sent"); err != nil {
		return err
	}
	return nil
}

func reviewText(t *domain.TicketState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s needs human review\n", t.ID)
	if c := t.Classification; c != nil {
		fmt.Fprintf(&b, "Type: %s | Priority: %s | Confidence: %.2f\n", c.IssueType, c.Priority, c.Confidence)
	}
	fmt.Fprintf(&b, "Routed to %s (%s)\n", t.RoutedTeam, t.RoutedQueue)
	for _, entry := range t.AuditLog {
		if entry.Rule != "" {
			fmt.Fprintf(&b, "Rule: %s\n", entry.Rule)
		}
	}
	fmt.Fprintf(&b, "> %s", preview(t.Text, 200))
	return b.String()
}

func preview(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max-3] + "..."
}

// LogNotifier is the fallback when no webhook is configured; it records the
// review request in the service log only.
type LogNotifier struct {
	ledger store.DeliveryLedger
	logger *zap.Logger
}

// NewLogNotifier builds the fallback notifier.
func NewLogNotifier(ledger store.DeliveryLedger, logger *zap.Logger) *LogNotifier {
	return &LogNotifier{ledger: ledger, logger: logger}
}

// NotifyForReview logs the review request.
func (n *LogNotifier) NotifyForReview(ctx context.Context, t *domain.TicketState) error {
	if _, delivered, err := n.ledger.Get(ctx, t.ID, store.SinkNotifier); err != nil {
		return err
	} else if delivered {
		return nil
	}
	n.logger.Info("human review requested",
		zap.String("ticket_id", t.ID),
		zap.String("team", t.RoutedTeam),
		zap.String("queue", t.RoutedQueue))
	_, err := n.ledger.Record(ctx, t.ID, store.SinkNotifier, "logged")
	return err
}
