package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// WorkflowParams carries the per-requirement inputs to workflow creation.
type WorkflowParams struct {
	RequirementID   string
	CompanyID       string
	BudgetAmount    int64
	IsUrgent        bool
	SubmittedBy     string
	SubmissionNotes *string
	Now             time.Time
}

// NewWorkflow resolves the threshold for the budget amount and builds a
// workflow instance with a frozen snapshot of the threshold's stage chain.
// The first executable stage starts as "current"; when the threshold
// allows urgent bypass and the requirement is urgent, optional stages are
// recorded as "skipped" and do not count toward completion.
//
// The returned workflow is decoupled from the configuration: later edits
// to thresholds, stages or approver assignments never alter it.
func NewWorkflow(cfg *domain.ApprovalConfiguration, p WorkflowParams) (*domain.Workflow, error) {
	threshold, err := ResolveThreshold(cfg.Thresholds, p.BudgetAmount)
	if err != nil {
		return nil, err
	}

	stages := OrderedStages(threshold)
	if len(stages) == 0 {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold %q has no approval stages", threshold.Name)
	}

	wf := &domain.Workflow{
		ID:              uuid.NewString(),
		RequirementID:   p.RequirementID,
		CompanyID:       p.CompanyID,
		ConfigurationID: cfg.ID,
		ThresholdID:     threshold.ID,
		ThresholdName:   threshold.Name,
		WorkflowType:    "sequential",
		IsUrgent:        p.IsUrgent,
		Status:          domain.WorkflowPending,
		BudgetAmount:    p.BudgetAmount,
		Currency:        threshold.Currency,
		SubmittedBy:     p.SubmittedBy,
		SubmittedAt:     p.Now,
		SubmissionNotes: p.SubmissionNotes,
		CreatedAt:       p.Now,
		UpdatedAt:       p.Now,
	}

	bypass := p.IsUrgent && threshold.UrgentBypass
	for _, stage := range stages {
		exec := domain.StageExecution{
			ID:                uuid.NewString(),
			WorkflowID:        wf.ID,
			RequirementID:     p.RequirementID,
			CompanyID:         p.CompanyID,
			StageID:           stage.ID,
			StageName:         stage.DisplayName,
			Order:             stage.Order,
			Policy:            stage.ApprovalType,
			Status:            domain.StagePending,
			Approvers:         append([]string(nil), stage.AssignedUsers...),
			RequiredApprovals: RequiredApprovals(stage),
			MaxApprovalTime:   stage.MaxApprovalTime,
			CreatedAt:         p.Now,
			UpdatedAt:         p.Now,
		}
		if bypass && !stage.IsRequired {
			exec.Status = domain.StageSkipped
		} else {
			wf.TotalStages++
		}
		wf.Stages = append(wf.Stages, exec)
	}

	if wf.TotalStages == 0 {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"threshold %q has no required stages to execute", threshold.Name)
	}

	// Mark the first executable stage current.
	for i := range wf.Stages {
		if wf.Stages[i].Status != domain.StagePending {
			continue
		}
		started := p.Now
		wf.Stages[i].Status = domain.StageCurrent
		wf.Stages[i].StartedAt = &started
		wf.CurrentStageID = wf.Stages[i].StageID
		break
	}

	return wf, nil
}
