package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/database"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// WorkflowRepository manages workflow instances, their stage executions
// and approver responses. Workflow + stage-execution creation is always
// done together in one transaction.
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts a workflow and its stage execution snapshot in one
// transaction. IDs are generated by the engine, not the database, because
// the workflow references its current stage before the first insert.
func (r *WorkflowRepository) Create(ctx context.Context, wf *domain.Workflow) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		wfQuery := `
			INSERT INTO approval_workflows
			    (id, requirement_id, company_id, configuration_id,
			     threshold_id, threshold_name, workflow_type, is_urgent,
			     status, current_stage_id, total_stages, completed_stages,
			     budget_amount, currency, submitted_by, submitted_at,
			     submission_notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRow(ctx, wfQuery,
			wf.ID, wf.RequirementID, wf.CompanyID, wf.ConfigurationID,
			wf.ThresholdID, wf.ThresholdName, wf.WorkflowType, wf.IsUrgent,
			wf.Status, wf.CurrentStageID, wf.TotalStages, wf.CompletedStages,
			wf.BudgetAmount, wf.Currency, wf.SubmittedBy, wf.SubmittedAt,
			wf.SubmissionNotes,
		).Scan(&wf.CreatedAt, &wf.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create workflow")
		}

		execQuery := `
			INSERT INTO workflow_stage_executions
			    (id, workflow_id, requirement_id, company_id,
			     stage_id, stage_name, stage_order, policy, status,
			     started_at, approvers, approval_count, required_approvals,
			     max_approval_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING created_at, updated_at
		`

		for i := range wf.Stages {
			exec := &wf.Stages[i]
			approversJSON, err := json.Marshal(exec.Approvers)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal approvers")
			}

			err = tx.QueryRow(ctx, execQuery,
				exec.ID, exec.WorkflowID, exec.RequirementID, exec.CompanyID,
				exec.StageID, exec.StageName, exec.Order, exec.Policy, exec.Status,
				exec.StartedAt, approversJSON, exec.ApprovalCount, exec.RequiredApprovals,
				exec.MaxApprovalTime,
			).Scan(&exec.CreatedAt, &exec.UpdatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create stage execution")
			}
		}
		return nil
	})
}

// GetByID retrieves a workflow with its stage executions and responses.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	query := `
		SELECT id, requirement_id, company_id, configuration_id,
		       threshold_id, threshold_name, workflow_type, is_urgent,
		       status, current_stage_id, total_stages, completed_stages,
		       budget_amount, currency, submitted_by, submitted_at,
		       completed_at, submission_notes, created_at, updated_at
		FROM approval_workflows
		WHERE id = $1
	`

	wf, err := scanWorkflow(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval_workflow", id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadStages(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// GetActiveByRequirementID returns the most recent non-terminal workflow
// for a requirement, or nil when no workflow is in flight.
func (r *WorkflowRepository) GetActiveByRequirementID(ctx context.Context, requirementID string) (*domain.Workflow, error) {
	query := `
		SELECT id, requirement_id, company_id, configuration_id,
		       threshold_id, threshold_name, workflow_type, is_urgent,
		       status, current_stage_id, total_stages, completed_stages,
		       budget_amount, currency, submitted_by, submitted_at,
		       completed_at, submission_notes, created_at, updated_at
		FROM approval_workflows
		WHERE requirement_id = $1
		  AND status IN ('pending', 'in_progress')
		ORDER BY submitted_at DESC
		LIMIT 1
	`

	wf, err := scanWorkflow(r.db.QueryRow(ctx, query, requirementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadStages(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// UpdateStatus sets the workflow status and optionally stamps completed_at.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status domain.WorkflowStatus, completedAt *time.Time) error {
	query := `
		UPDATE approval_workflows
		SET status       = $2,
		    completed_at = $3,
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, completedAt).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("approval_workflow", id)
	}
	return err
}

// AdvanceStage moves the workflow pointer to the next stage and records
// progress counters.
func (r *WorkflowRepository) AdvanceStage(ctx context.Context, id, currentStageID string, completedStages int, status domain.WorkflowStatus) error {
	query := `
		UPDATE approval_workflows
		SET current_stage_id = $2,
		    completed_stages = $3,
		    status           = $4,
		    updated_at       = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, currentStageID, completedStages, status).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("approval_workflow", id)
	}
	return err
}

// UpdateStageExecution persists the mutable execution fields (status,
// timing, counters and the approver snapshot).
func (r *WorkflowRepository) UpdateStageExecution(ctx context.Context, exec *domain.StageExecution) error {
	approversJSON, err := json.Marshal(exec.Approvers)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal approvers")
	}

	query := `
		UPDATE workflow_stage_executions
		SET status         = $2,
		    started_at     = $3,
		    completed_at   = $4,
		    approvers      = $5,
		    approval_count = $6,
		    updated_at     = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query,
		exec.ID, exec.Status, exec.StartedAt, exec.CompletedAt,
		approversJSON, exec.ApprovalCount,
	).Scan(&exec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("stage_execution", exec.ID)
	}
	return err
}

// AppendResponse records one approver action against a stage execution.
func (r *WorkflowRepository) AppendResponse(ctx context.Context, resp *domain.ApprovalResponse) error {
	query := `
		INSERT INTO approval_responses
		    (id, workflow_id, stage_execution_id, approver_id, decision, comment, responded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		resp.ID, resp.WorkflowID, resp.StageExecutionID,
		resp.ApproverID, resp.Decision, resp.Comment, resp.RespondedAt,
	)
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to append response")
}

// GetPendingForUser returns current stage executions awaiting a response
// from the given user, oldest first.
func (r *WorkflowRepository) GetPendingForUser(ctx context.Context, companyID, userID string) ([]*domain.StageExecution, error) {
	query := `
		SELECT e.id, e.workflow_id, e.requirement_id, e.company_id,
		       e.stage_id, e.stage_name, e.stage_order, e.policy, e.status,
		       e.started_at, e.completed_at, e.approvers,
		       e.approval_count, e.required_approvals, e.max_approval_hours,
		       e.created_at, e.updated_at
		FROM workflow_stage_executions e
		WHERE e.company_id = $1
		  AND e.status = 'current'
		  AND e.approvers ? $2
		  AND NOT EXISTS (
		        SELECT 1 FROM approval_responses r
		        WHERE r.stage_execution_id = e.id AND r.approver_id = $2
		  )
		ORDER BY e.started_at ASC
	`

	rows, err := r.db.Query(ctx, query, companyID, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get pending approvals")
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// ListOverdueStages returns current stage executions whose deadline
// (started_at + max_approval_hours) has passed as of the given instant.
// Read-only: overdue handling never mutates workflow state.
func (r *WorkflowRepository) ListOverdueStages(ctx context.Context, asOf time.Time) ([]*domain.StageExecution, error) {
	query := `
		SELECT id, workflow_id, requirement_id, company_id,
		       stage_id, stage_name, stage_order, policy, status,
		       started_at, completed_at, approvers,
		       approval_count, required_approvals, max_approval_hours,
		       created_at, updated_at
		FROM workflow_stage_executions
		WHERE status = 'current'
		  AND max_approval_hours > 0
		  AND started_at + make_interval(hours => max_approval_hours) < $1
		ORDER BY started_at ASC
	`

	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list overdue stages")
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// loadStages attaches stage executions (with their responses) to a workflow.
func (r *WorkflowRepository) loadStages(ctx context.Context, wf *domain.Workflow) error {
	query := `
		SELECT id, workflow_id, requirement_id, company_id,
		       stage_id, stage_name, stage_order, policy, status,
		       started_at, completed_at, approvers,
		       approval_count, required_approvals, max_approval_hours,
		       created_at, updated_at
		FROM workflow_stage_executions
		WHERE workflow_id = $1
		ORDER BY stage_order ASC
	`

	rows, err := r.db.Query(ctx, query, wf.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get stage executions")
	}
	defer rows.Close()

	execs, err := scanExecutions(rows)
	if err != nil {
		return err
	}

	byExecID := make(map[string]*domain.StageExecution, len(execs))
	wf.Stages = make([]domain.StageExecution, len(execs))
	for i, exec := range execs {
		wf.Stages[i] = *exec
		byExecID[exec.ID] = &wf.Stages[i]
	}

	respQuery := `
		SELECT id, workflow_id, stage_execution_id, approver_id,
		       decision, comment, responded_at
		FROM approval_responses
		WHERE workflow_id = $1
		ORDER BY responded_at ASC
	`

	respRows, err := r.db.Query(ctx, respQuery, wf.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get responses")
	}
	defer respRows.Close()

	for respRows.Next() {
		var resp domain.ApprovalResponse
		err := respRows.Scan(
			&resp.ID, &resp.WorkflowID, &resp.StageExecutionID,
			&resp.ApproverID, &resp.Decision, &resp.Comment, &resp.RespondedAt,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan response")
		}
		if exec, ok := byExecID[resp.StageExecutionID]; ok {
			exec.Responses = append(exec.Responses, resp)
		}
	}
	return respRows.Err()
}

// ── scan helpers ─────────────────────────────────────────────────────────────

func scanWorkflow(row rowScanner) (*domain.Workflow, error) {
	wf := &domain.Workflow{}
	err := row.Scan(
		&wf.ID, &wf.RequirementID, &wf.CompanyID, &wf.ConfigurationID,
		&wf.ThresholdID, &wf.ThresholdName, &wf.WorkflowType, &wf.IsUrgent,
		&wf.Status, &wf.CurrentStageID, &wf.TotalStages, &wf.CompletedStages,
		&wf.BudgetAmount, &wf.Currency, &wf.SubmittedBy, &wf.SubmittedAt,
		&wf.CompletedAt, &wf.SubmissionNotes, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func scanExecutions(rows pgx.Rows) ([]*domain.StageExecution, error) {
	var execs []*domain.StageExecution
	for rows.Next() {
		exec := &domain.StageExecution{}
		var approversJSON []byte

		err := rows.Scan(
			&exec.ID, &exec.WorkflowID, &exec.RequirementID, &exec.CompanyID,
			&exec.StageID, &exec.StageName, &exec.Order, &exec.Policy, &exec.Status,
			&exec.StartedAt, &exec.CompletedAt, &approversJSON,
			&exec.ApprovalCount, &exec.RequiredApprovals, &exec.MaxApprovalTime,
			&exec.CreatedAt, &exec.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan stage execution")
		}
		if err := json.Unmarshal(approversJSON, &exec.Approvers); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to unmarshal approvers")
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}
