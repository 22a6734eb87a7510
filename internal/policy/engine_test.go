package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

func TestCheck_TaskCreation(t *testing.T) {
	tests := []struct {
		name    string
		ctx     domain.PolicyContext
		allowed bool
	}{
		{
			name:    "no justification blocks",
			ctx:     domain.PolicyContext{ActionType: domain.CategoryTask},
			allowed: false,
		},
		{
			name:    "client request allows",
			ctx:     domain.PolicyContext{ActionType: domain.CategoryTask, ClientRequestedTask: true},
			allowed: true,
		},
		{
			name:    "compliance deadline allows",
			ctx:     domain.PolicyContext{ActionType: domain.CategoryTask, ComplianceDeadline: true},
			allowed: true,
		},
		{
			name:    "safety escalation allows",
			ctx:     domain.PolicyContext{ActionType: domain.CategoryTask, SafetyEscalation: true},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(tt.ctx)
			assert.Equal(t, tt.allowed, res.Allowed)
			if !tt.allowed {
				assert.Equal(t, domain.PolicyTaskCreation, res.PolicyType)
				assert.NotEmpty(t, res.Reason)
			} else {
				assert.Equal(t, domain.PolicyNone, res.PolicyType)
			}
		})
	}
}

func TestCheck_ResearchGating(t *testing.T) {
	healthy := domain.PolicyContext{
		ActionType:      domain.CategoryResearch,
		GoalsOnTrack:    true,
		PipelineHealthy: true,
	}
	res := Check(healthy)
	assert.True(t, res.Allowed)

	withBacklog := healthy
	withBacklog.EngagementViolations = 3
	res = Check(withBacklog)
	assert.False(t, res.Allowed)
	assert.Equal(t, domain.PolicyResearchGate, res.PolicyType)

	offTrack := healthy
	offTrack.GoalsOnTrack = false
	res = Check(offTrack)
	assert.False(t, res.Allowed)
	assert.Equal(t, domain.PolicyResearchGate, res.PolicyType)

	sickPipeline := healthy
	sickPipeline.PipelineHealthy = false
	res = Check(sickPipeline)
	assert.False(t, res.Allowed)
}

func TestCheck_SpamGuardrail(t *testing.T) {
	base := domain.PolicyContext{ActionType: domain.CategoryEmail}

	res := Check(base)
	assert.True(t, res.Allowed)

	for name, mutate := range map[string]func(*domain.PolicyContext){
		"rate limit": func(c *domain.PolicyContext) { c.RateLimitExceeded = true },
		"opted out":  func(c *domain.PolicyContext) { c.RecipientOptedOut = true },
		"suppressed": func(c *domain.PolicyContext) { c.RecipientSuppressed = true },
		"bounced":    func(c *domain.PolicyContext) { c.RecipientBounced = true },
	} {
		t.Run(name, func(t *testing.T) {
			ctx := base
			mutate(&ctx)
			res := Check(ctx)
			assert.False(t, res.Allowed)
			assert.Equal(t, domain.PolicySpamGuardrail, res.PolicyType)
		})
	}
}

func TestCheck_NonGatedCategoriesAllowed(t *testing.T) {
	res := Check(domain.PolicyContext{ActionType: domain.CategoryOrderFollowup})
	assert.True(t, res.Allowed)
	assert.Equal(t, domain.PolicyNone, res.PolicyType)
}
