package triage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/signaldesk/triage-service/internal/domain"
	"github.com/signaldesk/triage-service/internal/observability"
	"github.com/signaldesk/triage-service/internal/ports"
	"github.com/signaldesk/triage-service/internal/store"
	"github.com/signaldesk/triage-service/pkg/resilience"
)

// Audit log stage names.
const (
	AuditClassified           = "classified"
	AuditClassificationFailed = "classification_failed"
	AuditPolicyEvaluated      = "policy_evaluated"
	AuditRouted               = "routed"
	AuditRoutingFailed        = "routing_failed"
	AuditReviewDispatched     = "review_dispatched"
	AuditIssueCreated         = "issue_created"
	AuditDeliveryFailed       = "delivery_failed"
	AuditCompleted            = "completed"
)

// PipelineDependencies bundles collaborators for the pipeline.
type PipelineDependencies struct {
	Classifier ports.Classifier
	Notifier   ports.Notifier
	Tracker    ports.IssueTracker
	Store      store.TicketStore
	Policy     *PolicyEngine
	Router     *Router
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// PipelineTimeouts bounds the port calls, the only suspension points of a
// run. A timeout is a capability failure, not a special state.
type PipelineTimeouts struct {
	Classify time.Duration
	Delivery time.Duration
}

func (t PipelineTimeouts) withDefaults() PipelineTimeouts {
	if t.Classify <= 0 {
		t.Classify = 20 * time.Second
	}
	if t.Delivery <= 0 {
		t.Delivery = 10 * time.Second
	}
	return t
}

// Pipeline drives one ticket through classification, policy evaluation,
// routing and exactly one terminal action. Stages are strictly sequential
// within a run; the pipeline is safe to run for many tickets concurrently
// because all mutable state lives on the ticket it exclusively owns.
type Pipeline struct {
	classifier ports.Classifier
	notifier   ports.Notifier
	tracker    ports.IssueTracker
	store      store.TicketStore
	policy     *PolicyEngine
	router     *Router
	metrics    *observability.Metrics
	logger     *zap.Logger
	timeouts   PipelineTimeouts
	retry      resilience.RetryConfig
}

// NewPipeline constructs the pipeline.
func NewPipeline(deps PipelineDependencies, timeouts PipelineTimeouts, retry resilience.RetryConfig) *Pipeline {
	return &Pipeline{
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		tracker:    deps.Tracker,
		store:      deps.Store,
		policy:     deps.Policy,
		router:     deps.Router,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		timeouts:   timeouts.withDefaults(),
		retry:      retry,
	}
}

// Run executes the pipeline for the ticket id. The caller must hold the
// ticket's run claim. A ticket that already completed is returned as is, so
// replays are harmless. A returned SinkDeliveryFailure means the ticket
// still reached COMPLETED, in a degraded state.
func (p *Pipeline) Run(ctx context.Context, ticketID string) (*domain.TicketState, error) {
	state, err := p.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if state.Completed() {
		return state, nil
	}

	log := p.logger.With(zap.String("ticket_id", state.ID))

	if state.Stage == domain.StageCreated {
		if err := p.classify(ctx, state, log); err != nil {
			return state, err
		}
	}
	if state.Stage == domain.StageClassified {
		if err := p.evaluatePolicy(ctx, state, log); err != nil {
			return state, err
		}
	}
	if state.Stage == domain.StagePolicyEvaluated {
		if err := p.route(ctx, state, log); err != nil {
			return state, err
		}
	}

	var sinkErr error
	if state.Stage == domain.StageRouted {
		sinkErr = p.dispatch(ctx, state, log)
	}

	if err := p.complete(ctx, state, log); err != nil {
		return state, err
	}
	return state, sinkErr
}

// RetryDelivery re-attempts only the terminal delivery of a ticket that
// completed degraded. The pipeline decision is not recomputed.
func (p *Pipeline) RetryDelivery(ctx context.Context, ticketID string) (*domain.TicketState, error) {
	state, err := p.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !state.Completed() || !state.Degraded {
		return state, fmt.Errorf("ticket %s is not awaiting delivery retry", ticketID)
	}

	log := p.logger.With(zap.String("ticket_id", state.ID))
	if err := p.deliver(ctx, state); err != nil {
		state.LastError = err.Error()
		state.AppendAudit(AuditDeliveryFailed, map[string]any{"error": err.Error(), "retry": true})
		if saveErr := p.store.Save(ctx, state); saveErr != nil {
			return state, saveErr
		}
		return state, err
	}

	state.Degraded = false
	state.LastError = ""
	log.Info("delivery retried successfully")
	if err := p.store.Save(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// classify invokes the classifier port. On failure the ticket stays in
// CREATED so the caller can retry the whole run.
func (p *Pipeline) classify(ctx context.Context, state *domain.TicketState, log *zap.Logger) error {
	callCtx, cancel := context.WithTimeout(ctx, p.timeouts.Classify)
	defer cancel()

	classification, err := p.classifier.Classify(callCtx, state.Text)
	if err == nil {
		err = validateClassification(classification)
	}
	if err != nil {
		state.LastError = err.Error()
		state.AppendAudit(AuditClassificationFailed, map[string]any{"error": err.Error()})
		if saveErr := p.store.Save(ctx, state); saveErr != nil {
			log.Error("save after classification failure", zap.Error(saveErr))
		}
		log.Warn("classification failed", zap.Error(err))
		return &ClassificationFailure{Cause: err}
	}

	state.Classification = &classification
	state.Stage = domain.StageClassified
	state.AppendAudit(AuditClassified, map[string]any{
		"issue_type": classification.IssueType,
		"priority":   string(classification.Priority),
		"confidence": classification.Confidence,
		"reasoning":  classification.Reasoning,
	})
	p.metrics.RecordStage(AuditClassified)
	log.Info("classified",
		zap.String("issue_type", classification.IssueType),
		zap.String("priority", string(classification.Priority)),
		zap.Float64("confidence", classification.Confidence))
	return p.store.Save(ctx, state)
}

// evaluatePolicy applies the review rules. The stage cannot fail on valid
// classification data.
func (p *Pipeline) evaluatePolicy(ctx context.Context, state *domain.TicketState, log *zap.Logger) error {
	result := p.policy.Evaluate(state, state.Classification)
	reasons := make([]string, 0, len(result.Triggered))
	for _, rule := range result.Triggered {
		state.AppendRuleAudit(AuditPolicyEvaluated, rule.Reason, rule.Detail)
		p.metrics.RecordRuleHit(rule.Reason)
		reasons = append(reasons, rule.Reason)
		log.Info("policy rule triggered", zap.String("reason", rule.Reason))
	}
	if result.HumanReviewRequired {
		state.RequireHumanReview()
	}

	state.Stage = domain.StagePolicyEvaluated
	state.AppendAudit(AuditPolicyEvaluated, map[string]any{
		"human_review_required": state.HumanReviewRequired,
		"triggered_rules":       reasons,
	})
	p.metrics.RecordStage(AuditPolicyEvaluated)
	return p.store.Save(ctx, state)
}

// route resolves the responsible team and queue. A missing rule is a
// configuration defect and aborts the run loudly.
func (p *Pipeline) route(ctx context.Context, state *domain.TicketState, log *zap.Logger) error {
	classification := state.Classification
	route, err := p.router.Route(classification.IssueType, classification.Priority)
	if err != nil {
		state.LastError = err.Error()
		state.AppendAudit(AuditRoutingFailed, map[string]any{"error": err.Error()})
		if saveErr := p.store.Save(ctx, state); saveErr != nil {
			log.Error("save after routing failure", zap.Error(saveErr))
		}
		log.Error("routing configuration error", zap.Error(err))
		return err
	}

	state.RoutedTeam = route.Team
	state.RoutedQueue = route.Queue
	state.Stage = domain.StageRouted
	state.AppendAudit(AuditRouted, map[string]any{
		"team":      route.Team,
		"queue":     route.Queue,
		"reasoning": classification.Reasoning,
	})
	p.metrics.RecordStage(AuditRouted)
	log.Info("routed", zap.String("team", route.Team), zap.String("queue", route.Queue))
	return p.store.Save(ctx, state)
}

// dispatch performs the single terminal action. On sink failure the run is
// marked degraded but still completes; the returned SinkDeliveryFailure
// tells the caller a delivery retry is the correct recovery.
func (p *Pipeline) dispatch(ctx context.Context, state *domain.TicketState, log *zap.Logger) error {
	if err := p.deliver(ctx, state); err != nil {
		state.Degraded = true
		state.LastError = err.Error()
		state.AppendAudit(AuditDeliveryFailed, map[string]any{"error": err.Error()})
		if saveErr := p.store.Save(ctx, state); saveErr != nil {
			log.Error("save after delivery failure", zap.Error(saveErr))
		}
		log.Warn("sink delivery failed", zap.Error(err))
		return err
	}

	if state.HumanReviewRequired {
		state.Stage = domain.StageReviewDispatched
		p.metrics.RecordStage(AuditReviewDispatched)
		log.Info("review dispatched", zap.String("team", state.RoutedTeam))
	} else {
		state.Stage = domain.StageIssueCreated
		p.metrics.RecordStage(AuditIssueCreated)
		log.Info("issue created", zap.String("issue_key", state.IssueKey))
	}
	return p.store.Save(ctx, state)
}

// deliver calls exactly one sink, chosen by the review flag, with per-call
// timeouts and bounded retries. It appends the terminal audit entry on
// success but does not advance the stage.
func (p *Pipeline) deliver(ctx context.Context, state *domain.TicketState) error {
	if state.HumanReviewRequired {
		err := resilience.Retry(ctx, "notify_for_review", p.retry, p.logger, func() error {
			callCtx, cancel := context.WithTimeout(ctx, p.timeouts.Delivery)
			defer cancel()
			return p.notifier.NotifyForReview(callCtx, state)
		})
		if err != nil {
			p.metrics.RecordSinkFailure(store.SinkNotifier)
			return &SinkDeliveryFailure{Sink: store.SinkNotifier, Cause: err}
		}
		state.AppendAudit(AuditReviewDispatched, map[string]any{
			"team":  state.RoutedTeam,
			"queue": state.RoutedQueue,
		})
		return nil
	}

	var issueKey string
	err := resilience.Retry(ctx, "create_issue", p.retry, p.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.timeouts.Delivery)
		defer cancel()
		key, err := p.tracker.CreateIssue(callCtx, state)
		if err != nil {
			return err
		}
		issueKey = key
		return nil
	})
	if err != nil {
		p.metrics.RecordSinkFailure(store.SinkIssueTracker)
		return &SinkDeliveryFailure{Sink: store.SinkIssueTracker, Cause: err}
	}

	state.IssueKey = issueKey
	state.AppendAudit(AuditIssueCreated, map[string]any{"issue_key": issueKey})
	return nil
}

func (p *Pipeline) complete(ctx context.Context, state *domain.TicketState, log *zap.Logger) error {
	state.Stage = domain.StageCompleted
	state.AppendAudit(AuditCompleted, nil)
	p.metrics.RecordStage(AuditCompleted)
	log.Info("pipeline completed", zap.Bool("degraded", state.Degraded))
	return p.store.Save(ctx, state)
}

func validateClassification(c domain.Classification) error {
	if c.IssueType == "" {
		return fmt.Errorf("classifier returned empty issue type")
	}
	if !c.Priority.Valid() {
		return fmt.Errorf("classifier returned unknown priority %q", c.Priority)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("classifier returned confidence %v outside [0,1]", c.Confidence)
	}
	return nil
}
