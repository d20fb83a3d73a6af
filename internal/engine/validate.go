package engine

import (
	"sort"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// ValidateConfiguration rejects malformed approval matrices at save time
// so that defects surface when an administrator edits the configuration,
// not mid-approval. It checks:
//
//   - at least one active threshold, and a resolvable default threshold
//   - MinAmount <= MaxAmount on every threshold
//   - active thresholds partition the amount space without gaps or
//     overlaps (only the top threshold may be unbounded)
//   - stage orders form a dense 1..N sequence within each threshold
//   - majority stages carry an explicit MinimumApprovals >= 1
//   - MinimumApprovals never exceeds the assigned approver count
//   - required stages of active thresholds have at least one approver
//
// The approver-pool checks only bind once the configuration is active;
// an inactive configuration (a fresh default matrix, a draft clone) may
// carry unassigned stages until an administrator activates it.
func ValidateConfiguration(cfg *domain.ApprovalConfiguration) error {
	return validateConfiguration(cfg, cfg.IsActive)
}

// ValidateForActivation runs the full rule set including the approver
// pool checks, regardless of the configuration's current active flag.
// Activation must go through this.
func ValidateForActivation(cfg *domain.ApprovalConfiguration) error {
	return validateConfiguration(cfg, true)
}

func validateConfiguration(cfg *domain.ApprovalConfiguration, enforceApprovers bool) error {
	if cfg.CompanyID == "" {
		return apperrors.InvalidInput("company_id", "company id is required")
	}
	if len(cfg.Thresholds) == 0 {
		return apperrors.InvalidInput("thresholds", "at least one threshold is required")
	}

	var active []domain.Threshold
	defaultFound := false
	for _, t := range cfg.Thresholds {
		if t.ID == cfg.DefaultThresholdID {
			defaultFound = true
		}
		if err := validateThreshold(&t, enforceApprovers); err != nil {
			return err
		}
		if t.IsActive {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return apperrors.InvalidInput("thresholds", "at least one threshold must be active")
	}
	if cfg.DefaultThresholdID != "" && !defaultFound {
		return apperrors.InvalidInput("default_threshold_id",
			"default threshold is not part of the configuration")
	}

	return validateCoverage(active)
}

func validateThreshold(t *domain.Threshold, enforceApprovers bool) error {
	if t.Name == "" {
		return apperrors.InvalidInput("threshold.name", "threshold name is required")
	}
	if t.MinAmount < 0 {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold %q: min amount must be non-negative", t.Name)
	}
	if t.MaxAmount != nil && *t.MaxAmount < t.MinAmount {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold %q: max amount is below min amount", t.Name)
	}
	if len(t.Stages) == 0 {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold %q: at least one stage is required", t.Name)
	}

	stages := OrderedStages(t)
	for i, stage := range stages {
		if stage.Order != i+1 {
			return apperrors.Newf(apperrors.ErrCodeValidation,
				"threshold %q: stage orders must form a dense 1..%d sequence",
				t.Name, len(stages))
		}
		if err := validateStage(t, &stage, enforceApprovers); err != nil {
			return err
		}
	}
	return nil
}

func validateStage(t *domain.Threshold, stage *domain.Stage, enforceApprovers bool) error {
	switch stage.ApprovalType {
	case domain.PolicySingle, domain.PolicyJoint:
	case domain.PolicyMajority:
		if stage.MinimumApprovals == nil || *stage.MinimumApprovals < 1 {
			return apperrors.Newf(apperrors.ErrCodeValidation,
				"threshold %q stage %q: majority policy requires minimum approvals",
				t.Name, stage.Name)
		}
	default:
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold %q stage %q: unknown approval policy %q",
			t.Name, stage.Name, stage.ApprovalType)
	}

	if enforceApprovers {
		if stage.MinimumApprovals != nil && *stage.MinimumApprovals > len(stage.AssignedUsers) {
			return apperrors.Newf(apperrors.ErrCodeValidation,
				"threshold %q stage %q: minimum approvals (%d) exceeds assigned approvers (%d)",
				t.Name, stage.Name, *stage.MinimumApprovals, len(stage.AssignedUsers))
		}
		if t.IsActive && stage.IsRequired && len(stage.AssignedUsers) == 0 {
			return apperrors.Newf(apperrors.ErrCodeValidation,
				"threshold %q stage %q: required stage has no assigned approvers",
				t.Name, stage.Name)
		}
	}
	if stage.MaxApprovalTime < 0 {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold %q stage %q: max approval time must be non-negative",
			t.Name, stage.Name)
	}
	return nil
}

// validateCoverage checks that active thresholds cover all non-negative
// amounts exactly once.
func validateCoverage(active []domain.Threshold) error {
	sorted := make([]domain.Threshold, len(active))
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinAmount < sorted[j].MinAmount })

	if sorted[0].MinAmount != 0 {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold coverage gap: amounts below %d match no threshold", sorted[0].MinAmount)
	}

	for i := 0; i < len(sorted)-1; i++ {
		cur, next := &sorted[i], &sorted[i+1]
		if cur.MaxAmount == nil {
			return apperrors.Newf(apperrors.ErrCodeValidation,
				"threshold %q is unbounded but %q starts above it", cur.Name, next.Name)
		}
		if *cur.MaxAmount >= next.MinAmount {
			return apperrors.Newf(apperrors.ErrCodeValidation,
				"thresholds %q and %q overlap", cur.Name, next.Name)
		}
		if *cur.MaxAmount+1 != next.MinAmount {
			return apperrors.Newf(apperrors.ErrCodeValidation,
				"threshold coverage gap between %q and %q", cur.Name, next.Name)
		}
	}

	if top := &sorted[len(sorted)-1]; top.MaxAmount != nil {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"top threshold %q must be unbounded to cover all amounts", top.Name)
	}
	return nil
}
