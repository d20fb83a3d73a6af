// Package domain holds the approval-matrix domain model shared by the
// engine, repositories and services. Monetary amounts are int64 minor
// units (paise for INR); all thresholds in one configuration carry the
// same currency — no conversion happens anywhere in this service.
package domain

import "time"

// ApprovalPolicy is the closed set of rules deciding when a stage is
// satisfied.
type ApprovalPolicy string

const (
	// PolicySingle is satisfied by the first approval regardless of how
	// many users are assigned.
	PolicySingle ApprovalPolicy = "single"
	// PolicyJoint requires MinimumApprovals approvals, defaulting to all
	// assigned users.
	PolicyJoint ApprovalPolicy = "joint"
	// PolicyMajority requires the explicitly configured MinimumApprovals;
	// a configuration without one is rejected at save time.
	PolicyMajority ApprovalPolicy = "majority"
)

// Stage is one step in a threshold's approval chain.
type Stage struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	DisplayName      string         `json:"display_name"`
	Order            int            `json:"order"`
	IsRequired       bool           `json:"is_required"`
	AssignedUsers    []string       `json:"assigned_users"`
	ApprovalType     ApprovalPolicy `json:"approval_type"`
	MinimumApprovals *int           `json:"minimum_approvals,omitempty"`
	MaxApprovalTime  int            `json:"max_approval_time"` // hours; 0 = no deadline
}

// Threshold maps a budget range onto an ordered approval chain.
// A nil MaxAmount means the range is unbounded above.
type Threshold struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	MinAmount          int64   `json:"min_amount"`
	MaxAmount          *int64  `json:"max_amount,omitempty"`
	Currency           string  `json:"currency"`
	Stages             []Stage `json:"stages"`
	IsActive           bool    `json:"is_active"`
	ComplianceRequired bool    `json:"compliance_required"`
	UrgentBypass       bool    `json:"urgent_bypass"`
}

// ApprovalConfiguration is a company's full approval matrix. At most one
// configuration is active per company, enforced by the store.
type ApprovalConfiguration struct {
	ID                 string      `json:"id"`
	CompanyID          string      `json:"company_id"`
	Thresholds         []Threshold `json:"thresholds"`
	DefaultThresholdID string      `json:"default_threshold_id"`
	IsActive           bool        `json:"is_active"`
	CreatedAt          time.Time   `json:"created_at"`
	LastModified       time.Time   `json:"last_modified"`
	ModifiedBy         string      `json:"modified_by"`
}

// WorkflowStatus is the lifecycle state of a workflow instance.
type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowApproved   WorkflowStatus = "approved"
	WorkflowRejected   WorkflowStatus = "rejected"
	WorkflowRecalled   WorkflowStatus = "recalled"
)

// Terminal reports whether no further transitions are possible.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowApproved || s == WorkflowRejected || s == WorkflowRecalled
}

// StageStatus is the lifecycle state of one stage execution.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageCurrent  StageStatus = "current"
	StageApproved StageStatus = "approved"
	StageRejected StageStatus = "rejected"
	StageSkipped  StageStatus = "skipped"
	StageRecalled StageStatus = "recalled"
)

// Decision is an approver's response to a stage.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Workflow is the per-requirement execution state of a resolved approval
// chain. It is created once at submission and retained afterwards as an
// audit trail; terminal workflows are never mutated.
type Workflow struct {
	ID              string           `json:"id"`
	RequirementID   string           `json:"requirement_id"`
	CompanyID       string           `json:"company_id"`
	ConfigurationID string           `json:"configuration_id"`
	ThresholdID     string           `json:"threshold_id"`
	ThresholdName   string           `json:"threshold_name"`
	WorkflowType    string           `json:"workflow_type"` // only "sequential" is implemented
	IsUrgent        bool             `json:"is_urgent"`
	Status          WorkflowStatus   `json:"status"`
	CurrentStageID  string           `json:"current_stage_id"`
	TotalStages     int              `json:"total_stages"`
	CompletedStages int              `json:"completed_stages"`
	BudgetAmount    int64            `json:"budget_amount"`
	Currency        string           `json:"currency"`
	SubmittedBy     string           `json:"submitted_by"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	SubmissionNotes *string          `json:"submission_notes,omitempty"`
	Stages          []StageExecution `json:"stages"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// StageExecution is the workflow-local snapshot of one stage. Approvers
// and RequiredApprovals are frozen at workflow creation; later edits to
// the configuration do not touch in-flight executions.
type StageExecution struct {
	ID                string             `json:"id"`
	WorkflowID        string             `json:"workflow_id"`
	RequirementID     string             `json:"requirement_id"`
	CompanyID         string             `json:"company_id"`
	StageID           string             `json:"stage_id"`
	StageName         string             `json:"stage_name"`
	Order             int                `json:"order"`
	Policy            ApprovalPolicy     `json:"policy"`
	Status            StageStatus        `json:"status"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	Approvers         []string           `json:"approvers"`
	ApprovalCount     int                `json:"approval_count"`
	RequiredApprovals int                `json:"required_approvals"`
	MaxApprovalTime   int                `json:"max_approval_time"` // hours; 0 = no deadline
	Responses         []ApprovalResponse `json:"responses,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ApprovalResponse is one approver action recorded against a stage.
type ApprovalResponse struct {
	ID               string    `json:"id"`
	WorkflowID       string    `json:"workflow_id"`
	StageExecutionID string    `json:"stage_execution_id"`
	ApproverID       string    `json:"approver_id"`
	Decision         Decision  `json:"decision"`
	Comment          *string   `json:"comment,omitempty"`
	RespondedAt      time.Time `json:"responded_at"`
}

// AuditEntry is one immutable record in the approval audit log.
type AuditEntry struct {
	ID            string         `json:"id"`
	RequirementID string         `json:"requirement_id"`
	WorkflowID    *string        `json:"workflow_id,omitempty"`
	StageID       *string        `json:"stage_id,omitempty"`
	CompanyID     string         `json:"company_id"`
	Action        string         `json:"action"` // submitted | approved | rejected | recalled | reassigned | stage_advanced
	PerformedBy   string         `json:"performed_by"`
	PerformedAt   time.Time      `json:"performed_at"`
	StatusBefore  *string        `json:"status_before,omitempty"`
	StatusAfter   *string        `json:"status_after,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// RequirementStatus is the lifecycle state of a procurement requirement.
type RequirementStatus string

const (
	RequirementDraft           RequirementStatus = "draft"
	RequirementPendingApproval RequirementStatus = "pending_approval"
	RequirementApproved        RequirementStatus = "approved"
	RequirementRejected        RequirementStatus = "rejected"
)

// Requirement is the procurement requirement whose budget drives threshold
// resolution. Only the fields the approval flow touches are modeled here;
// the full requirement lives in the requirements service.
type Requirement struct {
	ID           string            `json:"id"`
	CompanyID    string            `json:"company_id"`
	Title        string            `json:"title"`
	Category     string            `json:"category"`
	Description  *string           `json:"description,omitempty"`
	BudgetAmount int64             `json:"budget_amount"`
	Currency     string            `json:"currency"`
	IsUrgent     bool              `json:"is_urgent"`
	Status       RequirementStatus `json:"status"`
	CreatedBy    *string           `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedBy    *string           `json:"updated_by,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
