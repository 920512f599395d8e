package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaldesk/triage-service/internal/domain"
)

func TestRouterDefaultTable(t *testing.T) {
	router := NewRouter(nil)

	tests := []struct {
		name      string
		issueType string
		priority  domain.Priority
		want      domain.Route
	}{
		{"critical bug", "Bug", domain.PriorityP0, domain.Route{Team: "Backend", Queue: "engineering-high"}},
		{"high bug", "Bug", domain.PriorityP1, domain.Route{Team: "Backend", Queue: "engineering"}},
		{"low bug falls through to catch-all", "Bug", domain.PriorityP3, domain.Route{Team: "Support", Queue: "support"}},
		{"billing ignores priority", "Billing", domain.PriorityP0, domain.Route{Team: "Billing", Queue: "billing"}},
		{"billing low priority same queue", "Billing", domain.PriorityP3, domain.Route{Team: "Billing", Queue: "billing"}},
		{"feature request", "Feature Request", domain.PriorityP2, domain.Route{Team: "Product", Queue: "product"}},
		{"account", "Account", domain.PriorityP1, domain.Route{Team: "Customer Success", Queue: "cs"}},
		{"unknown type falls back to Other", "Unknown", domain.PriorityP2, domain.Route{Team: "Support", Queue: "support"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := router.Route(tt.issueType, tt.priority)
			require.NoError(t, err)
			assert.Equal(t, tt.want, route)
		})
	}
}

func TestRouterExactMatchBeatsTypeOnly(t *testing.T) {
	router := NewRouter([]RoutingRule{
		{IssueType: "Bug", Route: domain.Route{Team: "Generalists", Queue: "bugs"}},
		{IssueType: "Bug", Priority: domain.PriorityP0, Route: domain.Route{Team: "Firefighters", Queue: "sev0"}},
		{IssueType: FallbackIssueType, Route: domain.Route{Team: "Support", Queue: "support"}},
	})

	route, err := router.Route("Bug", domain.PriorityP0)
	require.NoError(t, err)
	assert.Equal(t, "Firefighters", route.Team)

	route, err = router.Route("Bug", domain.PriorityP2)
	require.NoError(t, err)
	assert.Equal(t, "Generalists", route.Team)
}

func TestRouterMissingFallbackFailsLoudly(t *testing.T) {
	router := NewRouter([]RoutingRule{
		{IssueType: "Bug", Priority: domain.PriorityP0, Route: domain.Route{Team: "Backend", Queue: "engineering-high"}},
	})

	_, err := router.Route("Billing", domain.PriorityP2)
	require.Error(t, err)

	var cfgErr *RoutingConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Billing", cfgErr.IssueType)
	assert.False(t, Retryable(err))
}
