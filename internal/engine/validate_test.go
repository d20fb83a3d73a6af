package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

func TestValidateConfigurationAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateConfiguration(testConfiguration()))
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *domain.ApprovalConfiguration)
		wantErr string
	}{
		{
			name:    "missing company id",
			mutate:  func(cfg *domain.ApprovalConfiguration) { cfg.CompanyID = "" },
			wantErr: "company id is required",
		},
		{
			name:    "no thresholds",
			mutate:  func(cfg *domain.ApprovalConfiguration) { cfg.Thresholds = nil },
			wantErr: "at least one threshold",
		},
		{
			name: "all thresholds inactive",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				for i := range cfg.Thresholds {
					cfg.Thresholds[i].IsActive = false
				}
			},
			wantErr: "must be active",
		},
		{
			name:    "dangling default threshold",
			mutate:  func(cfg *domain.ApprovalConfiguration) { cfg.DefaultThresholdID = "t-gone" },
			wantErr: "not part of the configuration",
		},
		{
			name:    "negative min amount",
			mutate:  func(cfg *domain.ApprovalConfiguration) { cfg.Thresholds[0].MinAmount = -1 },
			wantErr: "non-negative",
		},
		{
			name: "max below min",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[1].MaxAmount = int64Ptr(cfg.Thresholds[1].MinAmount - 1)
			},
			wantErr: "below min amount",
		},
		{
			name:    "threshold without stages",
			mutate:  func(cfg *domain.ApprovalConfiguration) { cfg.Thresholds[0].Stages = nil },
			wantErr: "at least one stage",
		},
		{
			name: "sparse stage orders",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[0].Stages[1].Order = 5
			},
			wantErr: "dense",
		},
		{
			name: "duplicate stage orders",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[0].Stages[1].Order = 1
			},
			wantErr: "dense",
		},
		{
			name: "majority without minimum approvals",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[3].Stages[4].MinimumApprovals = nil
			},
			wantErr: "majority policy requires minimum approvals",
		},
		{
			name: "unknown policy",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[0].Stages[0].ApprovalType = domain.ApprovalPolicy("consensus")
			},
			wantErr: "unknown approval policy",
		},
		{
			name: "minimum approvals above assigned pool",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[3].Stages[4].MinimumApprovals = intPtr(9)
			},
			wantErr: "exceeds assigned approvers",
		},
		{
			name: "required stage of active threshold without approvers",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[0].Stages[0].AssignedUsers = nil
			},
			wantErr: "no assigned approvers",
		},
		{
			name: "negative approval deadline",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[0].Stages[0].MaxApprovalTime = -24
			},
			wantErr: "max approval time",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfiguration()
			tt.mutate(cfg)

			err := ValidateConfiguration(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCoverage(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *domain.ApprovalConfiguration)
		wantErr string
	}{
		{
			name: "coverage does not start at zero",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[0].MinAmount = 100
			},
			wantErr: "amounts below 100",
		},
		{
			name: "gap between adjacent bands",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[1].MinAmount = lakh + 1
			},
			wantErr: "coverage gap",
		},
		{
			name: "overlapping bands",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[0].MaxAmount = int64Ptr(lakh + 500)
			},
			wantErr: "overlap",
		},
		{
			name: "bounded top band",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[3].MaxAmount = int64Ptr(100 * crore)
			},
			wantErr: "must be unbounded",
		},
		{
			name: "unbounded band below another",
			mutate: func(cfg *domain.ApprovalConfiguration) {
				cfg.Thresholds[2].MaxAmount = nil
			},
			wantErr: "unbounded but",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfiguration()
			tt.mutate(cfg)

			err := ValidateConfiguration(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("unassigned stages allowed while configuration is inactive", func(t *testing.T) {
		cfg := testConfiguration()
		cfg.IsActive = false
		cfg.Thresholds[0].Stages[0].AssignedUsers = nil
		cfg.Thresholds[3].Stages[4].AssignedUsers = nil

		require.NoError(t, ValidateConfiguration(cfg))

		err := ValidateForActivation(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "assigned approvers")
	})

	t.Run("inactive thresholds are exempt from coverage", func(t *testing.T) {
		cfg := testConfiguration()
		cfg.Thresholds = append(cfg.Thresholds, domain.Threshold{
			ID: "t-draft", Name: "Draft Band", MinAmount: 50, MaxAmount: int64Ptr(60),
			IsActive: false,
			Stages:   []domain.Stage{singleStage("initiator", 1)},
		})
		require.NoError(t, ValidateConfiguration(cfg))
	})
}
