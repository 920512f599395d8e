package triage

import (
	"github.com/signaldesk/triage-service/internal/domain"
)

// FallbackIssueType is the catch-all routing category.
const FallbackIssueType = "Other"

// RoutingRule maps an issue type, optionally narrowed by priority, to a
// team and queue. An empty Priority matches any priority.
type RoutingRule struct {
	IssueType string
	Priority  domain.Priority
	Route     domain.Route
}

// DefaultRoutingTable returns the standard prioritized rule set. Some
// categories route uniformly (billing goes to one queue whatever the
// severity) while defects split by severity.
func DefaultRoutingTable() []RoutingRule {
	return []RoutingRule{
		{IssueType: "Bug", Priority: domain.PriorityP0, Route: domain.Route{Team: "Backend", Queue: "engineering-high"}},
		{IssueType: "Bug", Priority: domain.PriorityP1, Route: domain.Route{Team: "Backend", Queue: "engineering"}},
		{IssueType: "Billing", Route: domain.Route{Team: "Billing", Queue: "billing"}},
		{IssueType: "Feature Request", Route: domain.Route{Team: "Product", Queue: "product"}},
		{IssueType: "Account", Route: domain.Route{Team: "Customer Success", Queue: "cs"}},
		{IssueType: FallbackIssueType, Route: domain.Route{Team: "Support", Queue: "support"}},
	}
}

// Router resolves classifications against an ordered rule list. The table is
// loaded once at startup and read concurrently without locking; nothing
// writes to it after construction.
type Router struct {
	rules []RoutingRule
}

// NewRouter builds a router over the given rules, or the default table when
// none are provided.
func NewRouter(rules []RoutingRule) *Router {
	if len(rules) == 0 {
		rules = DefaultRoutingTable()
	}
	return &Router{rules: rules}
}

// Route resolves the most specific matching rule: exact (issue_type,
// priority) first, then issue_type alone, then the Other fallback. When even
// the fallback is missing the lookup fails with a RoutingConfigurationError
// rather than inventing a destination.
func (r *Router) Route(issueType string, priority domain.Priority) (domain.Route, error) {
	for _, rule := range r.rules {
		if rule.IssueType == issueType && rule.Priority == priority && rule.Priority != "" {
			return rule.Route, nil
		}
	}
	for _, rule := range r.rules {
		if rule.IssueType == issueType && rule.Priority == "" {
			return rule.Route, nil
		}
	}
	for _, rule := range r.rules {
		if rule.IssueType == FallbackIssueType && rule.Priority == "" {
			return rule.Route, nil
		}
	}
	return domain.Route{}, &RoutingConfigurationError{IssueType: issueType, Priority: priority}
}
