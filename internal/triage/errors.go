package triage

import (
	"errors"
	"fmt"

	"github.com/signaldesk/triage-service/internal/domain"
)

// ClassificationFailure indicates the classifier port was unavailable, timed
// out, or returned an unusable result. The run is aborted and the ticket
// stays in CREATED; retrying the whole run is the correct recovery.
type ClassificationFailure struct {
	Cause error
}

func (e *ClassificationFailure) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Cause)
}

func (e *ClassificationFailure) Unwrap() error {
	return e.Cause
}

// RoutingConfigurationError indicates no routing rule matched, including the
// fallback. This is a configuration defect, never a data problem, and must
// not be papered over with a default queue.
type RoutingConfigurationError struct {
	IssueType string
	Priority  domain.Priority
}

func (e *RoutingConfigurationError) Error() string {
	return fmt.Sprintf("no routing rule matches issue_type=%q priority=%q and no fallback is configured", e.IssueType, e.Priority)
}

// SinkDeliveryFailure indicates the notifier or issue tracker call failed
// after routing succeeded. The pipeline's decision output stands; only the
// delivery step needs retrying.
type SinkDeliveryFailure struct {
	Sink  string
	Cause error
}

func (e *SinkDeliveryFailure) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Sink, e.Cause)
}

func (e *SinkDeliveryFailure) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the caller can recover by retrying: the whole
// run for classification failures, just the delivery step for sink failures.
// Routing configuration errors are not retryable.
func Retryable(err error) bool {
	var cf *ClassificationFailure
	var sf *SinkDeliveryFailure
	return errors.As(err, &cf) || errors.As(err, &sf)
}
