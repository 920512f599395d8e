package triage

import (
	"strings"

	"github.com/signaldesk/triage-service/internal/domain"
)

// Default policy configuration, applied when values are missing or invalid.
const DefaultConfidenceThreshold = 0.7

// DefaultHighRiskKeywords force human review whenever they appear in ticket
// text, regardless of classification confidence.
func DefaultHighRiskKeywords() []string {
	return []string{"lawsuit", "security breach", "data leak"}
}

// Policy rule reasons recorded in the audit log.
const (
	ReasonHighRiskKeyword        = "high_risk_keyword"
	ReasonLowConfidence          = "low_confidence"
	ReasonEnterpriseHighPriority = "enterprise_high_priority"
)

// PolicyConfig tunes the review rules.
type PolicyConfig struct {
	ConfidenceThreshold float64
	HighRiskKeywords    []string
}

func (c PolicyConfig) withDefaults() PolicyConfig {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if len(c.HighRiskKeywords) == 0 {
		c.HighRiskKeywords = DefaultHighRiskKeywords()
	}
	return c
}

// PolicyRule is a named predicate over ticket, classification and config.
// Rules declare the metadata keys they read; the engine never inspects the
// metadata map beyond what a rule asks for.
type PolicyRule struct {
	Reason  string
	Matches func(t *domain.TicketState, c *domain.Classification, cfg PolicyConfig) bool
}

// TriggeredRule records a single rule firing for the audit trail.
type TriggeredRule struct {
	Reason string
	Detail map[string]any
}

// PolicyResult is the outcome of evaluating every rule.
type PolicyResult struct {
	HumanReviewRequired bool
	Triggered           []TriggeredRule
}

// PolicyEngine evaluates an ordered rule list against a classified ticket.
// It is a pure function of its inputs plus config with no short-circuiting:
// every rule is checked and every match is reported.
type PolicyEngine struct {
	cfg   PolicyConfig
	rules []PolicyRule
}

// NewPolicyEngine builds an engine with the standard rule set. Extra rules
// are appended after the standard ones and evaluated in order.
func NewPolicyEngine(cfg PolicyConfig, extra ...PolicyRule) *PolicyEngine {
	rules := []PolicyRule{
		{Reason: ReasonHighRiskKeyword, Matches: matchHighRiskKeyword},
		{Reason: ReasonLowConfidence, Matches: matchLowConfidence},
		{Reason: ReasonEnterpriseHighPriority, Matches: matchEnterpriseHighPriority},
	}
	rules = append(rules, extra...)
	return &PolicyEngine{cfg: cfg.withDefaults(), rules: rules}
}

// Evaluate runs every rule and returns the review decision plus one record
// per rule that fired.
func (e *PolicyEngine) Evaluate(t *domain.TicketState, c *domain.Classification) PolicyResult {
	result := PolicyResult{}
	for _, rule := range e.rules {
		if !rule.Matches(t, c, e.cfg) {
			continue
		}
		result.HumanReviewRequired = true
		result.Triggered = append(result.Triggered, TriggeredRule{
			Reason: rule.Reason,
			Detail: ruleDetail(rule.Reason, c, e.cfg),
		})
	}
	return result
}

func matchHighRiskKeyword(t *domain.TicketState, _ *domain.Classification, cfg PolicyConfig) bool {
	text := strings.ToLower(t.Text)
	for _, keyword := range cfg.HighRiskKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

func matchLowConfidence(_ *domain.TicketState, c *domain.Classification, cfg PolicyConfig) bool {
	confidence := 0.0
	if c != nil {
		confidence = c.Confidence
	}
	return confidence < cfg.ConfidenceThreshold
}

func matchEnterpriseHighPriority(t *domain.TicketState, c *domain.Classification, _ PolicyConfig) bool {
	if t.Metadata["account_tier"] != "enterprise" {
		return false
	}
	return c != nil && c.Priority.Critical()
}

func ruleDetail(reason string, c *domain.Classification, cfg PolicyConfig) map[string]any {
	switch reason {
	case ReasonLowConfidence:
		confidence := 0.0
		if c != nil {
			confidence = c.Confidence
		}
		return map[string]any{"confidence": confidence, "threshold": cfg.ConfidenceThreshold}
	case ReasonEnterpriseHighPriority:
		if c != nil {
			return map[string]any{"priority": string(c.Priority)}
		}
	}
	return nil
}
