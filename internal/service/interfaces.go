package service

import (
	"context"
	"time"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// ConfigurationStore persists approval configurations. Save is expected
// to fail with a conflict when the configuration's last_modified stamp is
// stale.
type ConfigurationStore interface {
	Create(ctx context.Context, cfg *domain.ApprovalConfiguration) error
	GetByID(ctx context.Context, id, companyID string) (*domain.ApprovalConfiguration, error)
	GetActive(ctx context.Context, companyID string) (*domain.ApprovalConfiguration, error)
	List(ctx context.Context, companyID string) ([]*domain.ApprovalConfiguration, error)
	Save(ctx context.Context, cfg *domain.ApprovalConfiguration) error
	SetActive(ctx context.Context, id, companyID string) error
	Delete(ctx context.Context, id, companyID string) error
}

// WorkflowStore persists workflow instances, stage executions and responses.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id string) (*domain.Workflow, error)
	GetActiveByRequirementID(ctx context.Context, requirementID string) (*domain.Workflow, error)
	UpdateStatus(ctx context.Context, id string, status domain.WorkflowStatus, completedAt *time.Time) error
	AdvanceStage(ctx context.Context, id, currentStageID string, completedStages int, status domain.WorkflowStatus) error
	UpdateStageExecution(ctx context.Context, exec *domain.StageExecution) error
	AppendResponse(ctx context.Context, resp *domain.ApprovalResponse) error
	GetPendingForUser(ctx context.Context, companyID, userID string) ([]*domain.StageExecution, error)
	ListOverdueStages(ctx context.Context, asOf time.Time) ([]*domain.StageExecution, error)
}

// AuditStore records the immutable audit trail.
type AuditStore interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	GetByRequirementID(ctx context.Context, requirementID, companyID string) ([]*domain.AuditEntry, error)
	GetByWorkflowID(ctx context.Context, workflowID string) ([]*domain.AuditEntry, error)
}

// RequirementStore persists the approval-relevant slice of requirements.
type RequirementStore interface {
	Create(ctx context.Context, req *domain.Requirement) error
	GetByID(ctx context.Context, id, companyID string) (*domain.Requirement, error)
	List(ctx context.Context, companyID string, status *domain.RequirementStatus, limit, offset int) ([]*domain.Requirement, error)
	UpdateStatus(ctx context.Context, id, companyID string, from, to domain.RequirementStatus, updatedBy string) error
}

// EventPublisher emits approval events for the notification service.
// Implementations must be non-fatal: a publish failure never interrupts
// an approval operation.
type EventPublisher interface {
	PublishApprovalEvent(ctx context.Context, eventType, requirementID, companyID, actorID string, recipients []string, payload map[string]any)
}
