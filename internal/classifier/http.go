// Package classifier implements the classifier port against a
// chat-completions style model endpoint.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/signaldesk/triage-service/internal/config"
	"github.com/signaldesk/triage-service/internal/domain"
)

const systemPrompt = `You triage customer support tickets. Respond with a JSON object containing:
issue_type (one of Bug, Billing, Feature Request, Account, Other),
priority (one of P0, P1, P2, P3),
confidence (number between 0 and 1),
reasoning (short explanation).`

// HTTPClassifier calls an OpenAI-compatible chat completion endpoint and
// parses the JSON classification out of the first choice.
type HTTPClassifier struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewHTTPClassifier builds the classifier. The http.Client should not carry
// its own timeout; the pipeline bounds each call through context.
func NewHTTPClassifier(cfg config.ClassifierConfig, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClassifier{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify sends the ticket text to the model and decodes the result.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classifier call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Classification{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Classification{}, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return domain.Classification{}, fmt.Errorf("classifier response has no choices")
	}

	var classification domain.Classification
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &classification); err != nil {
		return domain.Classification{}, fmt.Errorf("decode classification payload: %w", err)
	}
	return classification, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
