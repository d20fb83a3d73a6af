package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// ErrInvalidApprovalAction is returned for responses to a non-current
// stage, from a non-assigned approver, or against a terminal workflow.
// The workflow is left untouched in every such case, so a corrected
// submission is always safe to retry.
var ErrInvalidApprovalAction = apperrors.New(apperrors.ErrCodeConflict,
	"invalid approval action")

func invalidAction(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidApprovalAction, fmt.Sprintf(format, args...))
}

// RouteResult describes the state delta produced by one accepted approver
// response, so callers can persist exactly what changed.
type RouteResult struct {
	// Terminal is true when the workflow reached approved or rejected.
	Terminal bool
	// Response is the recorded approver action.
	Response *domain.ApprovalResponse
	// Stage is the stage execution the response applied to.
	Stage *domain.StageExecution
	// NextStage is the newly current stage when the workflow advanced,
	// nil otherwise.
	NextStage *domain.StageExecution
}

// SubmitResponse applies one approver response to the workflow's current
// stage: validates, records the response, applies the stage policy, and
// advances or finalizes. All validation happens before any mutation.
func SubmitResponse(
	wf *domain.Workflow,
	stageID, approverID string,
	decision domain.Decision,
	comment *string,
	now time.Time,
) (*RouteResult, error) {
	if decision != domain.DecisionApproved && decision != domain.DecisionRejected {
		return nil, apperrors.InvalidInput("decision", fmt.Sprintf("unknown decision %q", decision))
	}
	if wf.Status.Terminal() {
		return nil, invalidAction("workflow %s is already %s", wf.ID, wf.Status)
	}
	if stageID != wf.CurrentStageID {
		return nil, invalidAction("stage %s is not the current stage", stageID)
	}

	exec := findStage(wf, stageID)
	if exec == nil || exec.Status != domain.StageCurrent {
		return nil, invalidAction("stage %s is not awaiting responses", stageID)
	}
	if !contains(exec.Approvers, approverID) {
		return nil, invalidAction("user %s is not an assigned approver for stage %s", approverID, exec.StageName)
	}
	for _, resp := range exec.Responses {
		if resp.ApproverID == approverID {
			return nil, invalidAction("user %s already responded to stage %s", approverID, exec.StageName)
		}
	}

	response := domain.ApprovalResponse{
		ID:               uuid.NewString(),
		WorkflowID:       wf.ID,
		StageExecutionID: exec.ID,
		ApproverID:       approverID,
		Decision:         decision,
		Comment:          comment,
		RespondedAt:      now,
	}
	exec.Responses = append(exec.Responses, response)
	exec.UpdatedAt = now
	wf.UpdatedAt = now

	result := &RouteResult{Response: &exec.Responses[len(exec.Responses)-1], Stage: exec}

	// A single rejection terminates the stage and the workflow regardless
	// of policy.
	if decision == domain.DecisionRejected {
		completed := now
		exec.Status = domain.StageRejected
		exec.CompletedAt = &completed
		wf.Status = domain.WorkflowRejected
		wf.CompletedAt = &completed
		result.Terminal = true
		return result, nil
	}

	exec.ApprovalCount++
	if wf.Status == domain.WorkflowPending {
		wf.Status = domain.WorkflowInProgress
	}

	if !StageSatisfied(exec) {
		return result, nil
	}

	completed := now
	exec.Status = domain.StageApproved
	exec.CompletedAt = &completed
	wf.CompletedStages++

	next := nextPendingStage(wf, exec.Order)
	if next == nil {
		wf.Status = domain.WorkflowApproved
		wf.CompletedAt = &completed
		result.Terminal = true
		return result, nil
	}

	started := now
	next.Status = domain.StageCurrent
	next.StartedAt = &started
	next.UpdatedAt = now
	wf.CurrentStageID = next.StageID
	result.NextStage = next
	return result, nil
}

// Recall terminates a non-terminal workflow on behalf of its submitter.
// The current and all pending stages are marked recalled.
func Recall(wf *domain.Workflow, recalledBy string, now time.Time) error {
	if wf.Status.Terminal() {
		return invalidAction("workflow %s is already %s", wf.ID, wf.Status)
	}
	if wf.SubmittedBy != recalledBy {
		return apperrors.New(apperrors.ErrCodeUnauthorized,
			"only the submitter can recall the workflow")
	}

	for i := range wf.Stages {
		switch wf.Stages[i].Status {
		case domain.StageCurrent, domain.StagePending:
			wf.Stages[i].Status = domain.StageRecalled
			wf.Stages[i].UpdatedAt = now
		}
	}
	completed := now
	wf.Status = domain.WorkflowRecalled
	wf.CompletedAt = &completed
	wf.UpdatedAt = now
	return nil
}

// ReassignApprover replaces one approver with another in a stage's frozen
// approver snapshot. This is the only supported way to reflect personnel
// changes in an in-flight workflow; configuration edits never do.
func ReassignApprover(wf *domain.Workflow, stageID, fromUser, toUser string, now time.Time) (*domain.StageExecution, error) {
	if wf.Status.Terminal() {
		return nil, invalidAction("workflow %s is already %s", wf.ID, wf.Status)
	}
	if toUser == "" {
		return nil, apperrors.InvalidInput("to_user", "replacement approver is required")
	}

	exec := findStage(wf, stageID)
	if exec == nil {
		return nil, apperrors.NotFound("stage", stageID)
	}
	if exec.Status != domain.StageCurrent && exec.Status != domain.StagePending {
		return nil, invalidAction("stage %s is already %s", exec.StageName, exec.Status)
	}
	if contains(exec.Approvers, toUser) {
		return nil, invalidAction("user %s is already an approver for stage %s", toUser, exec.StageName)
	}

	for i, user := range exec.Approvers {
		if user == fromUser {
			exec.Approvers[i] = toUser
			exec.UpdatedAt = now
			wf.UpdatedAt = now
			return exec, nil
		}
	}
	return nil, invalidAction("user %s is not an approver for stage %s", fromUser, exec.StageName)
}

func findStage(wf *domain.Workflow, stageID string) *domain.StageExecution {
	for i := range wf.Stages {
		if wf.Stages[i].StageID == stageID {
			return &wf.Stages[i]
		}
	}
	return nil
}

func nextPendingStage(wf *domain.Workflow, afterOrder int) *domain.StageExecution {
	var next *domain.StageExecution
	for i := range wf.Stages {
		exec := &wf.Stages[i]
		if exec.Status != domain.StagePending || exec.Order <= afterOrder {
			continue
		}
		if next == nil || exec.Order < next.Order {
			next = exec
		}
	}
	return next
}

func contains(users []string, id string) bool {
	for _, u := range users {
		if u == id {
			return true
		}
	}
	return false
}
