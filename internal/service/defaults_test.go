package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
	"github.com/diligince-ai/be-procurement-approvals/internal/engine"
)

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration("company-1")

	require.Len(t, cfg.Thresholds, 4)
	require.NoError(t, engine.ValidateConfiguration(cfg))

	bands := map[string]int{}
	for _, threshold := range cfg.Thresholds {
		bands[threshold.Name] = len(threshold.Stages)
		assert.Equal(t, "INR", threshold.Currency)
		assert.True(t, threshold.IsActive)
	}
	assert.Equal(t, map[string]int{
		"Low Budget":      2,
		"Medium Budget":   3,
		"High Budget":     4,
		"Critical Budget": 5,
	}, bands)

	// Band edges line up with the conventional rupee tiers.
	low, err := engine.ResolveThreshold(cfg.Thresholds, 50_000*100)
	require.NoError(t, err)
	assert.Equal(t, "Low Budget", low.Name)

	medium, err := engine.ResolveThreshold(cfg.Thresholds, 5*paisePerLakh)
	require.NoError(t, err)
	assert.Equal(t, "Medium Budget", medium.Name)

	high, err := engine.ResolveThreshold(cfg.Thresholds, 50*paisePerLakh)
	require.NoError(t, err)
	assert.Equal(t, "High Budget", high.Name)

	critical, err := engine.ResolveThreshold(cfg.Thresholds, 15*paisePerCrore)
	require.NoError(t, err)
	assert.Equal(t, "Critical Budget", critical.Name)

	// The board stage carries the majority policy with an explicit bar.
	board := critical.Stages[len(critical.Stages)-1]
	assert.Equal(t, domain.PolicyMajority, board.ApprovalType)
	require.NotNil(t, board.MinimumApprovals)
	assert.Equal(t, 3, *board.MinimumApprovals)
	assert.Equal(t, 168, board.MaxApprovalTime)

	// High and critical tiers require compliance review.
	assert.True(t, high.ComplianceRequired)
	assert.True(t, critical.ComplianceRequired)
	assert.False(t, low.ComplianceRequired)
}

func TestDefaultConfigurationIsUnassigned(t *testing.T) {
	cfg := DefaultConfiguration("company-1")

	for _, threshold := range cfg.Thresholds {
		for _, stage := range threshold.Stages {
			assert.Empty(t, stage.AssignedUsers)
		}
	}
	// Unassigned stages block activation until an administrator fills
	// them in.
	require.Error(t, engine.ValidateForActivation(cfg))
}
