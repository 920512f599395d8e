package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/signaldesk/triage-service/internal/domain"
	"github.com/signaldesk/triage-service/internal/observability"
	"github.com/signaldesk/triage-service/internal/repository"
	"github.com/signaldesk/triage-service/internal/store"
	"github.com/signaldesk/triage-service/internal/triage"
	"github.com/signaldesk/triage-service/internal/worker"
)

// ErrDeliveryBusy is returned when a delivery retry races an active run for
// the same ticket.
var ErrDeliveryBusy = errors.New("a run for this ticket is in progress")

// TriageService owns ticket intake and run scheduling. Acceptance is not
// completion: Ingest returns as soon as the run is queued, and callers read
// the outcome from the state store.
type TriageService struct {
	store    store.TicketStore
	pipeline *triage.Pipeline
	pool     *worker.Pool
	archive  repository.ArchiveRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// TriageDependencies bundles collaborators for the service.
type TriageDependencies struct {
	Store    store.TicketStore
	Pipeline *triage.Pipeline
	Pool     *worker.Pool
	Archive  repository.ArchiveRepository
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewTriageService constructs the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	return &TriageService{
		store:    deps.Store,
		pipeline: deps.Pipeline,
		pool:     deps.Pool,
		archive:  deps.Archive,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// IngestInput describes one raw ticket. TicketID is optional; callers that
// supply their own id get idempotent resubmission.
type IngestInput struct {
	TicketID string
	Channel  string
	Text     string
	Metadata map[string]string
}

// Ingest registers the ticket and schedules its pipeline run. Submitting an
// id that already exists joins the existing run instead of starting a
// second one. A worker.ErrQueueFull return means the ticket was not
// registered for a new run and the caller should retry later.
func (s *TriageService) Ingest(ctx context.Context, input IngestInput) (string, error) {
	id := strings.TrimSpace(input.TicketID)
	if id == "" {
		id = uuid.NewString()
	}

	state := domain.NewTicketState(id, input.Channel, input.Text, input.Metadata)
	current, created, err := s.store.GetOrCreate(ctx, state)
	if err != nil {
		return "", err
	}
	if !created && current.Stage != domain.StageCreated {
		// Ticket is past intake; the submitter observes the existing run.
		return id, nil
	}

	claimed, err := s.store.ClaimRun(ctx, id)
	if err != nil {
		return "", err
	}
	if !claimed {
		return id, nil
	}

	if err := s.pool.Submit(func(runCtx context.Context) {
		defer func() {
			if releaseErr := s.store.ReleaseRun(context.Background(), id); releaseErr != nil {
				s.logger.Error("release run claim", zap.String("ticket_id", id), zap.Error(releaseErr))
			}
		}()
		s.runPipeline(runCtx, id)
	}); err != nil {
		if releaseErr := s.store.ReleaseRun(ctx, id); releaseErr != nil {
			s.logger.Error("release run claim after rejection", zap.String("ticket_id", id), zap.Error(releaseErr))
		}
		s.metrics.RecordQueueRejection()
		return id, err
	}

	s.logger.Info("ticket accepted", zap.String("ticket_id", id), zap.String("channel", input.Channel))
	return id, nil
}

// runPipeline executes one run on a pool worker. The run context is
// detached from any caller, so an abandoned waiter never interrupts a
// ticket mid-state.
func (s *TriageService) runPipeline(ctx context.Context, id string) {
	state, err := s.pipeline.Run(ctx, id)
	switch {
	case err == nil:
	case triage.Retryable(err):
		s.logger.Warn("run finished with retryable failure", zap.String("ticket_id", id), zap.Error(err))
	default:
		s.logger.Error("run failed", zap.String("ticket_id", id), zap.Error(err))
	}

	if state != nil && state.Completed() && s.archive != nil {
		if archiveErr := s.archive.ArchiveCompleted(ctx, state); archiveErr != nil {
			s.logger.Error("archive completed ticket", zap.String("ticket_id", id), zap.Error(archiveErr))
		}
	}
}

// Get returns the current state for a ticket, falling back to the archive
// for tickets the live store no longer holds.
func (s *TriageService) Get(ctx context.Context, id string) (*domain.TicketState, error) {
	state, err := s.store.Get(ctx, id)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, store.ErrNotFound) && s.archive != nil {
		return s.archive.GetByID(ctx, id)
	}
	return nil, err
}

// RetryDelivery re-attempts the terminal delivery of a degraded-complete
// ticket. The run claim guards against racing an active run.
func (s *TriageService) RetryDelivery(ctx context.Context, id string) (*domain.TicketState, error) {
	claimed, err := s.store.ClaimRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrDeliveryBusy
	}
	defer func() {
		if releaseErr := s.store.ReleaseRun(ctx, id); releaseErr != nil {
			s.logger.Error("release run claim", zap.String("ticket_id", id), zap.Error(releaseErr))
		}
	}()

	state, err := s.pipeline.RetryDelivery(ctx, id)
	if err != nil {
		return state, err
	}
	if s.archive != nil {
		if archiveErr := s.archive.ArchiveCompleted(ctx, state); archiveErr != nil {
			s.logger.Error("archive after delivery retry", zap.String("ticket_id", id), zap.Error(archiveErr))
		}
	}
	return state, nil
}

// WaitForCompletion polls the store until the ticket completes or the
// context is done. Cancelling the context abandons only this wait; the
// pipeline run itself always proceeds to a deterministic end server-side.
func (s *TriageService) WaitForCompletion(ctx context.Context, id string, poll time.Duration) (*domain.TicketState, error) {
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		state, err := s.store.Get(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err == nil && state.Completed() {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
