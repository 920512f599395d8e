package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaldesk/triage-service/internal/config"
	"github.com/signaldesk/triage-service/internal/domain"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClassifierParsesClassification(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		content, _ := json.Marshal(domain.Classification{
			IssueType:  "Billing",
			Priority:   domain.PriorityP2,
			Confidence: 0.81,
			Reasoning:  "mentions an invoice",
		})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": string(content)}},
			},
		})
	})

	c := NewHTTPClassifier(config.ClassifierConfig{
		Endpoint: srv.URL,
		Model:    "test-model",
		APIKey:   "sk-test",
	}, srv.Client())

	classification, err := c.Classify(context.Background(), "invoice was charged twice")
	require.NoError(t, err)

	assert.Equal(t, "Billing", classification.IssueType)
	assert.Equal(t, domain.PriorityP2, classification.Priority)
	assert.InDelta(t, 0.81, classification.Confidence, 1e-9)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "invoice was charged twice", gotReq.Messages[1].Content)
}

func TestHTTPClassifierErrorStatus(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	c := NewHTTPClassifier(config.ClassifierConfig{Endpoint: srv.URL}, srv.Client())
	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestHTTPClassifierEmptyChoices(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	c := NewHTTPClassifier(config.ClassifierConfig{Endpoint: srv.URL}, srv.Client())
	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestHTTPClassifierMalformedContent(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "sorry, I cannot help"}},
			},
		})
	})

	c := NewHTTPClassifier(config.ClassifierConfig{Endpoint: srv.URL}, srv.Client())
	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
}

func TestHTTPClassifierContextCancelled(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	c := NewHTTPClassifier(config.ClassifierConfig{Endpoint: srv.URL}, srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Classify(ctx, "anything")
	require.Error(t, err)
}
