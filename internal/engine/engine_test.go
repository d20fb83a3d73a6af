package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// Amounts in paise.
const (
	lakh  int64 = 10_000_000
	crore int64 = 1_000_000_000
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func intPtr(n int) *int       { return &n }
func int64Ptr(n int64) *int64 { return &n }

func singleStage(name string, order int, users ...string) domain.Stage {
	return domain.Stage{
		ID:            uuid.NewString(),
		Name:          name,
		DisplayName:   name,
		Order:         order,
		IsRequired:    true,
		AssignedUsers: users,
		ApprovalType:  domain.PolicySingle,
	}
}

// testConfiguration builds the standard four-band matrix with approvers
// assigned, mirroring the production defaults.
func testConfiguration() *domain.ApprovalConfiguration {
	low := domain.Threshold{
		ID: "t-low", Name: "Low Budget", MinAmount: 0, MaxAmount: int64Ptr(lakh - 1),
		Currency: "INR", IsActive: true,
		Stages: []domain.Stage{
			singleStage("initiator", 1, "u-init"),
			singleStage("approver", 2, "u-approver"),
		},
	}
	medium := domain.Threshold{
		ID: "t-medium", Name: "Medium Budget", MinAmount: lakh, MaxAmount: int64Ptr(10*lakh - 1),
		Currency: "INR", IsActive: true,
		Stages: []domain.Stage{
			singleStage("initiator", 1, "u-init"),
			singleStage("department_head", 2, "u-dept"),
			singleStage("finance", 3, "u-fin"),
		},
	}
	high := domain.Threshold{
		ID: "t-high", Name: "High Budget", MinAmount: 10 * lakh, MaxAmount: int64Ptr(crore - 1),
		Currency: "INR", IsActive: true,
		Stages: []domain.Stage{
			singleStage("initiator", 1, "u-init"),
			singleStage("department_head", 2, "u-dept"),
			singleStage("finance_head", 3, "u-finhead"),
			{ID: uuid.NewString(), Name: "director", DisplayName: "director", Order: 4,
				IsRequired: true, AssignedUsers: []string{"u-dir1", "u-dir2"},
				ApprovalType: domain.PolicyJoint},
		},
	}
	critical := domain.Threshold{
		ID: "t-critical", Name: "Critical Budget", MinAmount: crore,
		Currency: "INR", IsActive: true,
		Stages: []domain.Stage{
			singleStage("initiator", 1, "u-init"),
			singleStage("department_head", 2, "u-dept"),
			singleStage("finance_head", 3, "u-finhead"),
			{ID: uuid.NewString(), Name: "director", DisplayName: "director", Order: 4,
				IsRequired: true, AssignedUsers: []string{"u-dir1", "u-dir2"},
				ApprovalType: domain.PolicyJoint},
			{ID: "s-board", Name: "board", DisplayName: "Board Approval", Order: 5,
				IsRequired: true, AssignedUsers: []string{"b1", "b2", "b3", "b4", "b5"},
				ApprovalType: domain.PolicyMajority, MinimumApprovals: intPtr(3)},
		},
	}

	return &domain.ApprovalConfiguration{
		ID:                 "cfg-1",
		CompanyID:          "company-1",
		Thresholds:         []domain.Threshold{low, medium, high, critical},
		DefaultThresholdID: "t-low",
		IsActive:           true,
	}
}

func newTestWorkflow(amount int64, urgent bool) (*domain.Workflow, error) {
	return NewWorkflow(testConfiguration(), WorkflowParams{
		RequirementID: "req-1",
		CompanyID:     "company-1",
		BudgetAmount:  amount,
		IsUrgent:      urgent,
		SubmittedBy:   "u-submitter",
		Now:           testNow,
	})
}

// approveCurrent submits one approval from each given user to the
// workflow's current stage, in order.
func approveCurrent(wf *domain.Workflow, users ...string) (*RouteResult, error) {
	var last *RouteResult
	for _, user := range users {
		result, err := SubmitResponse(wf, wf.CurrentStageID, user, domain.DecisionApproved, nil, testNow)
		if err != nil {
			return nil, err
		}
		last = result
	}
	return last, nil
}
