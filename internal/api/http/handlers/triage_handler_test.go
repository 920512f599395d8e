package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/signaldesk/triage-service/internal/api/http"
	"github.com/signaldesk/triage-service/internal/api/http/handlers"
	"github.com/signaldesk/triage-service/internal/auth"
	"github.com/signaldesk/triage-service/internal/notify"
	"github.com/signaldesk/triage-service/internal/observability"
	"github.com/signaldesk/triage-service/internal/ports"
	"github.com/signaldesk/triage-service/internal/service"
	"github.com/signaldesk/triage-service/internal/store"
	"github.com/signaldesk/triage-service/internal/tracker"
	"github.com/signaldesk/triage-service/internal/triage"
	"github.com/signaldesk/triage-service/internal/worker"
	"github.com/signaldesk/triage-service/pkg/resilience"
)

type testApp struct {
	app     *fiber.App
	service *service.TriageService
}

func newTestApp(t *testing.T, tokenManager *auth.TokenManager) *testApp {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	ticketStore := store.NewMemoryTicketStore()
	ledger := store.NewMemoryDeliveryLedger()

	pipeline := triage.NewPipeline(
		triage.PipelineDependencies{
			Classifier: ports.NewStubClassifier(),
			Notifier:   notify.NewLogNotifier(ledger, logger),
			Tracker:    tracker.NewLogTracker(ledger, logger),
			Store:      ticketStore,
			Policy:     triage.NewPolicyEngine(triage.PolicyConfig{}),
			Router:     triage.NewRouter(nil),
			Metrics:    metrics,
			Logger:     logger,
		},
		triage.PipelineTimeouts{Classify: time.Second, Delivery: time.Second},
		resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond},
	)

	pool := worker.NewPool(2, 16, logger)
	pool.Start(2)
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Stop(stopCtx)
	})

	triageService := service.NewTriageService(service.TriageDependencies{
		Store:    ticketStore,
		Pipeline: pipeline,
		Pool:     pool,
		Metrics:  metrics,
		Logger:   logger,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler("triage-test", "test", nil, nil, metrics),
		Triage:       handlers.NewTriageHandler(triageService),
		TokenManager: tokenManager,
	})

	return &testApp{app: app, service: triageService}
}

func postJSON(t *testing.T, app *fiber.App, path string, body string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestIngestAccepted(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := postJSON(t, ta.app, "/ingest", `{"channel":"email","text":"error when loading dashboard"}`, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	payload := decodeBody(t, resp)
	assert.Equal(t, "accepted", payload["status"])
	ticketID, _ := payload["ticket_id"].(string)
	require.NotEmpty(t, ticketID)

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := ta.service.WaitForCompletion(waitCtx, ticketID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, state.Completed())
	assert.True(t, strings.HasPrefix(state.IssueKey, "LOCAL-"))
}

func TestIngestHonoursTicketIDHeader(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := postJSON(t, ta.app, "/ingest", `{"channel":"email","text":"hello"}`, map[string]string{
		"X-Ticket-ID": "EXT-42",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.Equal(t, "EXT-42", payload["ticket_id"])
}

func TestIngestRejectsEmptyText(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := postJSON(t, ta.app, "/ingest", `{"channel":"email","text":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload := decodeBody(t, resp)
	errObj, _ := payload["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Equal(t, "VALIDATION_FAILED", errObj["code"])
}

func TestIngestRejectsMalformedBody(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := postJSON(t, ta.app, "/ingest", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTicketLifecycle(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := postJSON(t, ta.app, "/ingest", `{"channel":"chat","text":"urgent error in billing export"}`, map[string]string{
		"X-Ticket-ID": "T-lifecycle",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ta.service.WaitForCompletion(waitCtx, "T-lifecycle", 5*time.Millisecond)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tickets/T-lifecycle", nil)
	getResp, err := ta.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	payload := decodeBody(t, getResp)
	data, _ := payload["data"].(map[string]any)
	require.NotNil(t, data)
	assert.Equal(t, "COMPLETED", data["stage"])
	assert.Equal(t, "Backend", data["routed_team"])
	assert.Equal(t, "engineering", data["routed_queue"])

	classification, _ := data["classification"].(map[string]any)
	require.NotNil(t, classification)
	assert.Equal(t, "Bug", classification["issue_type"])
	assert.Equal(t, "P1", classification["priority"])

	auditLog, _ := data["audit_log"].([]any)
	assert.NotEmpty(t, auditLog)
}

func TestGetUnknownTicketReturns404(t *testing.T) {
	ta := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/tickets/unknown", nil)
	resp, err := ta.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	payload := decodeBody(t, resp)
	errObj, _ := payload["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestRetryDeliveryUnknownTicketReturns404(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := postJSON(t, ta.app, "/tickets/unknown/delivery/retry", ``, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIngestRequiresTokenWhenConfigured(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 5)
	ta := newTestApp(t, tm)

	resp := postJSON(t, ta.app, "/ingest", `{"channel":"email","text":"hello"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := tm.GenerateToken("intake-gateway")
	require.NoError(t, err)
	resp = postJSON(t, ta.app, "/ingest", `{"channel":"email","text":"hello"}`, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Reads stay open; only submission is gated.
	req := httptest.NewRequest(http.MethodGet, "/tickets/whatever", nil)
	getResp, err := ta.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	ta := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := ta.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.Equal(t, "alive", payload["status"])

	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp, err = ta.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "ready", payload["status"])
}
