package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/signaldesk/triage-service/internal/api/dto"
	"github.com/signaldesk/triage-service/internal/service"
	"github.com/signaldesk/triage-service/internal/store"
	"github.com/signaldesk/triage-service/internal/triage"
	"github.com/signaldesk/triage-service/internal/worker"
	apperrors "github.com/signaldesk/triage-service/pkg/util"
)

// TriageHandler manages ticket intake and state reads.
type TriageHandler struct {
	service *service.TriageService
}

// NewTriageHandler constructs handler.
func NewTriageHandler(triageService *service.TriageService) *TriageHandler {
	return &TriageHandler{service: triageService}
}

// Ingest POST /ingest. Always acknowledges synchronously; the pipeline runs
// in the background and failures surface through the ticket state only.
func (h *TriageHandler) Ingest(c *fiber.Ctx) error {
	var req dto.IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text required", nil)
	}

	input := service.IngestInput{
		TicketID: c.Get("X-Ticket-ID"),
		Channel:  req.Channel,
		Text:     req.Text,
		Metadata: req.Metadata,
	}
	ticketID, err := h.service.Ingest(c.UserContext(), input)
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrStopped) {
			return apperrors.NewUnavailable("QUEUE_FULL", "triage queue at capacity, retry later")
		}
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.IngestResponse{
		TicketID: ticketID,
		Status:   "accepted",
	})
}

// GetTicket GET /tickets/:id.
func (h *TriageHandler) GetTicket(c *fiber.Ctx) error {
	state, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewNotFound("ticket", fiber.Map{"ticket_id": c.Params("id")})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketState(state)})
}

// RetryDelivery POST /tickets/:id/delivery/retry. Re-attempts only the
// terminal sink delivery of a degraded-complete ticket.
func (h *TriageHandler) RetryDelivery(c *fiber.Ctx) error {
	state, err := h.service.RetryDelivery(c.UserContext(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return apperrors.NewNotFound("ticket", fiber.Map{"ticket_id": c.Params("id")})
		case errors.Is(err, service.ErrDeliveryBusy):
			return apperrors.NewConflict("a run for this ticket is in progress", nil)
		case triage.Retryable(err):
			return apperrors.NewUnavailable("SINK_DELIVERY_FAILED", "delivery failed again, retry later")
		default:
			return apperrors.NewValidationError(err.Error(), nil)
		}
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketState(state)})
}
