package service

import (
	"context"
	"time"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
	"github.com/diligince-ai/be-procurement-approvals/internal/engine"
	"github.com/diligince-ai/be-procurement-approvals/internal/logger"
	"github.com/diligince-ai/be-procurement-approvals/internal/metrics"
)

// ApprovalService orchestrates the approval workflow: it resolves the
// threshold for a submitted requirement, runs the engine router over the
// in-memory workflow, and persists exactly the delta the router reports.
// The engine computes every transition eagerly before the first write, so
// an invalid action leaves no partial state behind.
type ApprovalService struct {
	configs      ConfigurationStore
	workflows    WorkflowStore
	audit        AuditStore
	requirements RequirementStore
	publisher    EventPublisher
	log          *logger.Logger
	now          func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	configs ConfigurationStore,
	workflows WorkflowStore,
	audit AuditStore,
	requirements RequirementStore,
	publisher EventPublisher,
	log *logger.Logger,
) *ApprovalService {
	return &ApprovalService{
		configs:      configs,
		workflows:    workflows,
		audit:        audit,
		requirements: requirements,
		publisher:    publisher,
		log:          log,
		now:          time.Now,
	}
}

// ── Submission ────────────────────────────────────────────────────────────────

// SubmitForApproval routes a draft requirement into the approval matrix.
// Threshold resolution is fallible: a configuration gap blocks submission
// with a validation error instead of silently routing through the lowest
// chain.
func (s *ApprovalService) SubmitForApproval(
	ctx context.Context,
	requirementID, companyID, submittedBy string,
	notes *string,
) (*domain.Workflow, error) {
	req, err := s.requirements.GetByID(ctx, requirementID, companyID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequirementDraft {
		return nil, apperrors.Newf(apperrors.ErrCodeConflict,
			"requirement cannot be submitted from status %q", req.Status)
	}

	if existing, err := s.workflows.GetActiveByRequirementID(ctx, requirementID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperrors.Conflict("requirement already has an approval workflow in flight")
	}

	cfg, err := s.configs.GetActive(ctx, companyID)
	if err != nil {
		return nil, err
	}

	wf, err := engine.NewWorkflow(cfg, engine.WorkflowParams{
		RequirementID:   requirementID,
		CompanyID:       companyID,
		BudgetAmount:    req.BudgetAmount,
		IsUrgent:        req.IsUrgent,
		SubmittedBy:     submittedBy,
		SubmissionNotes: notes,
		Now:             s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, err
	}
	if err := s.requirements.UpdateStatus(ctx, requirementID, companyID,
		domain.RequirementDraft, domain.RequirementPendingApproval, submittedBy); err != nil {
		return nil, err
	}

	before, after := string(domain.RequirementDraft), string(domain.RequirementPendingApproval)
	s.appendAudit(ctx, &domain.AuditEntry{
		RequirementID: requirementID,
		WorkflowID:    &wf.ID,
		CompanyID:     companyID,
		Action:        "submitted",
		PerformedBy:   submittedBy,
		StatusBefore:  &before,
		StatusAfter:   &after,
		Metadata: map[string]any{
			"threshold":     wf.ThresholdName,
			"budget_amount": wf.BudgetAmount,
			"total_stages":  wf.TotalStages,
		},
	})

	metrics.WorkflowsCreated.WithLabelValues(wf.ThresholdName).Inc()
	s.log.Info().
		Str("requirement_id", requirementID).
		Str("workflow_id", wf.ID).
		Str("threshold", wf.ThresholdName).
		Int("total_stages", wf.TotalStages).
		Msg("Approval workflow created")

	s.publish(ctx, "requirement_submitted", wf, submittedBy, nil)
	if current := currentStage(wf); current != nil {
		s.publish(ctx, "approval_required", wf, submittedBy, current.Approvers)
	}
	return wf, nil
}

// ── Approver responses ────────────────────────────────────────────────────────

// SubmitResponse applies one approver decision to a workflow's current
// stage. Returns the updated workflow and whether it is now terminal.
func (s *ApprovalService) SubmitResponse(
	ctx context.Context,
	workflowID, stageID, approverID string,
	decision domain.Decision,
	comment *string,
) (*domain.Workflow, bool, error) {
	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, false, err
	}

	result, err := engine.SubmitResponse(wf, stageID, approverID, decision, comment, s.now())
	if err != nil {
		return nil, false, err
	}

	if err := s.workflows.AppendResponse(ctx, result.Response); err != nil {
		return nil, false, err
	}
	if err := s.workflows.UpdateStageExecution(ctx, result.Stage); err != nil {
		return nil, false, err
	}
	if result.NextStage != nil {
		if err := s.workflows.UpdateStageExecution(ctx, result.NextStage); err != nil {
			return nil, false, err
		}
	}
	if result.Terminal {
		if err := s.workflows.UpdateStatus(ctx, wf.ID, wf.Status, wf.CompletedAt); err != nil {
			return nil, false, err
		}
	}
	if err := s.workflows.AdvanceStage(ctx, wf.ID, wf.CurrentStageID, wf.CompletedStages, wf.Status); err != nil {
		return nil, false, err
	}

	s.recordResponseOutcome(ctx, wf, result, approverID, comment)
	return wf, result.Terminal, nil
}

// recordResponseOutcome handles requirement transitions, audit entries,
// metrics and notifications after a persisted response.
func (s *ApprovalService) recordResponseOutcome(
	ctx context.Context,
	wf *domain.Workflow,
	result *engine.RouteResult,
	approverID string,
	comment *string,
) {
	metrics.ResponsesRecorded.WithLabelValues(string(result.Response.Decision)).Inc()

	metadata := map[string]any{
		"stage":          result.Stage.StageName,
		"stage_order":    result.Stage.Order,
		"approval_count": result.Stage.ApprovalCount,
	}
	if comment != nil {
		metadata["comment"] = *comment
	}

	action := string(result.Response.Decision)
	before := string(domain.RequirementPendingApproval)
	after := before

	switch {
	case result.Terminal && wf.Status == domain.WorkflowApproved:
		after = string(domain.RequirementApproved)
		if err := s.requirements.UpdateStatus(ctx, wf.RequirementID, wf.CompanyID,
			domain.RequirementPendingApproval, domain.RequirementApproved, approverID); err != nil {
			s.log.Error().Err(err).Str("requirement_id", wf.RequirementID).
				Msg("Failed to mark requirement approved")
		}
		metrics.WorkflowsCompleted.WithLabelValues(string(wf.Status)).Inc()
		s.publish(ctx, "requirement_approved", wf, approverID, []string{wf.SubmittedBy})

	case result.Terminal && wf.Status == domain.WorkflowRejected:
		after = string(domain.RequirementRejected)
		if err := s.requirements.UpdateStatus(ctx, wf.RequirementID, wf.CompanyID,
			domain.RequirementPendingApproval, domain.RequirementRejected, approverID); err != nil {
			s.log.Error().Err(err).Str("requirement_id", wf.RequirementID).
				Msg("Failed to mark requirement rejected")
		}
		metrics.WorkflowsCompleted.WithLabelValues(string(wf.Status)).Inc()
		s.publish(ctx, "requirement_rejected", wf, approverID, []string{wf.SubmittedBy})

	case result.NextStage != nil:
		metadata["next_stage"] = result.NextStage.StageName
		s.publish(ctx, "approval_required", wf, approverID, result.NextStage.Approvers)
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		RequirementID: wf.RequirementID,
		WorkflowID:    &wf.ID,
		StageID:       &result.Stage.StageID,
		CompanyID:     wf.CompanyID,
		Action:        action,
		PerformedBy:   approverID,
		StatusBefore:  &before,
		StatusAfter:   &after,
		Metadata:      metadata,
	})
}

// ── Recall ────────────────────────────────────────────────────────────────────

// RecallWorkflow lets the original submitter withdraw an in-flight
// workflow, returning the requirement to draft.
func (s *ApprovalService) RecallWorkflow(ctx context.Context, workflowID, recalledBy string) error {
	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if err := engine.Recall(wf, recalledBy, s.now()); err != nil {
		return err
	}

	for i := range wf.Stages {
		if wf.Stages[i].Status != domain.StageRecalled {
			continue
		}
		if err := s.workflows.UpdateStageExecution(ctx, &wf.Stages[i]); err != nil {
			return err
		}
	}
	if err := s.workflows.UpdateStatus(ctx, wf.ID, wf.Status, wf.CompletedAt); err != nil {
		return err
	}
	if err := s.requirements.UpdateStatus(ctx, wf.RequirementID, wf.CompanyID,
		domain.RequirementPendingApproval, domain.RequirementDraft, recalledBy); err != nil {
		return err
	}

	before, after := string(domain.RequirementPendingApproval), string(domain.RequirementDraft)
	s.appendAudit(ctx, &domain.AuditEntry{
		RequirementID: wf.RequirementID,
		WorkflowID:    &wf.ID,
		CompanyID:     wf.CompanyID,
		Action:        "recalled",
		PerformedBy:   recalledBy,
		StatusBefore:  &before,
		StatusAfter:   &after,
	})
	metrics.WorkflowsCompleted.WithLabelValues(string(domain.WorkflowRecalled)).Inc()
	s.publish(ctx, "requirement_recalled", wf, recalledBy, nil)
	return nil
}

// ── Reassignment ──────────────────────────────────────────────────────────────

// ReassignApprover swaps one approver for another in an in-flight stage's
// snapshot. This is the audited escape hatch for personnel changes; the
// snapshot otherwise stays authoritative for the workflow's lifetime.
func (s *ApprovalService) ReassignApprover(
	ctx context.Context,
	workflowID, stageID, fromUser, toUser, actedBy string,
) error {
	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	exec, err := engine.ReassignApprover(wf, stageID, fromUser, toUser, s.now())
	if err != nil {
		return err
	}
	if err := s.workflows.UpdateStageExecution(ctx, exec); err != nil {
		return err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		RequirementID: wf.RequirementID,
		WorkflowID:    &wf.ID,
		StageID:       &exec.StageID,
		CompanyID:     wf.CompanyID,
		Action:        "reassigned",
		PerformedBy:   actedBy,
		Metadata: map[string]any{
			"stage":     exec.StageName,
			"from_user": fromUser,
			"to_user":   toUser,
		},
	})
	s.publish(ctx, "approval_required", wf, actedBy, []string{toUser})
	return nil
}

// ── Requirements ──────────────────────────────────────────────────────────────

// CreateRequirement stores a draft requirement.
func (s *ApprovalService) CreateRequirement(ctx context.Context, req *domain.Requirement) error {
	if req.Title == "" {
		return apperrors.InvalidInput("title", "title is required")
	}
	if req.BudgetAmount < 0 {
		return apperrors.InvalidInput("budget_amount", "budget must be non-negative")
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}
	req.Status = domain.RequirementDraft
	return s.requirements.Create(ctx, req)
}

// GetRequirement returns one requirement.
func (s *ApprovalService) GetRequirement(ctx context.Context, id, companyID string) (*domain.Requirement, error) {
	return s.requirements.GetByID(ctx, id, companyID)
}

// ListRequirements returns a page of requirements, optionally by status.
func (s *ApprovalService) ListRequirements(ctx context.Context, companyID string, status *domain.RequirementStatus, limit, offset int) ([]*domain.Requirement, error) {
	return s.requirements.List(ctx, companyID, status, limit, offset)
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetWorkflow returns a workflow with its stage executions and responses.
func (s *ApprovalService) GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	return s.workflows.GetByID(ctx, workflowID)
}

// GetActiveWorkflow returns the in-flight workflow for a requirement, or
// nil when none exists.
func (s *ApprovalService) GetActiveWorkflow(ctx context.Context, requirementID string) (*domain.Workflow, error) {
	return s.workflows.GetActiveByRequirementID(ctx, requirementID)
}

// GetPendingApprovals returns stage executions awaiting action from a user.
func (s *ApprovalService) GetPendingApprovals(ctx context.Context, companyID, userID string) ([]*domain.StageExecution, error) {
	return s.workflows.GetPendingForUser(ctx, companyID, userID)
}

// GetApprovalHistory returns the full audit trail for a requirement.
func (s *ApprovalService) GetApprovalHistory(ctx context.Context, requirementID, companyID string) ([]*domain.AuditEntry, error) {
	return s.audit.GetByRequirementID(ctx, requirementID, companyID)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// appendAudit writes an audit entry and logs a warning on failure. The
// audit trail must never block an approval operation that already
// happened.
func (s *ApprovalService) appendAudit(ctx context.Context, entry *domain.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("requirement_id", entry.RequirementID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func (s *ApprovalService) publish(ctx context.Context, eventType string, wf *domain.Workflow, actorID string, recipients []string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishApprovalEvent(ctx, eventType, wf.RequirementID, wf.CompanyID, actorID, recipients, map[string]any{
		"workflow_id":      wf.ID,
		"threshold":        wf.ThresholdName,
		"status":           string(wf.Status),
		"completed_stages": wf.CompletedStages,
		"total_stages":     wf.TotalStages,
	})
}

func currentStage(wf *domain.Workflow) *domain.StageExecution {
	for i := range wf.Stages {
		if wf.Stages[i].Status == domain.StageCurrent {
			return &wf.Stages[i]
		}
	}
	return nil
}
