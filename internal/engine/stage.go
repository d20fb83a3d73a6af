package engine

import (
	"sort"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// RequiredApprovals returns how many approvals satisfy a stage under its
// policy. The result is frozen into the StageExecution snapshot at
// workflow creation so mid-flight configuration edits cannot move the bar.
//
// A majority stage without MinimumApprovals is a malformed definition;
// ValidateConfiguration rejects it at save time. This function returns 0
// for that case so an unvalidated stage can never be satisfied by accident.
func RequiredApprovals(stage domain.Stage) int {
	switch stage.ApprovalType {
	case domain.PolicySingle:
		return 1
	case domain.PolicyJoint:
		if stage.MinimumApprovals != nil {
			return *stage.MinimumApprovals
		}
		return len(stage.AssignedUsers)
	case domain.PolicyMajority:
		if stage.MinimumApprovals != nil {
			return *stage.MinimumApprovals
		}
		return 0
	}
	return 0
}

// StageSatisfied reports whether a stage execution has collected enough
// approvals.
func StageSatisfied(exec *domain.StageExecution) bool {
	if exec.RequiredApprovals <= 0 {
		return false
	}
	return exec.ApprovalCount >= exec.RequiredApprovals
}

// OrderedStages returns the threshold's stages sorted by Order. The input
// is not mutated.
func OrderedStages(t *domain.Threshold) []domain.Stage {
	stages := make([]domain.Stage, len(t.Stages))
	copy(stages, t.Stages)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Order < stages[j].Order })
	return stages
}
