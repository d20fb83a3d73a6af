package service

import (
	"github.com/google/uuid"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// Rupee amounts in paise. The default matrix uses the conventional Indian
// budget bands: 1 lakh = 1e7 paise, 10 lakh = 1e8, 1 crore = 1e9.
const (
	paisePerLakh  int64 = 10_000_000
	paisePerCrore int64 = 1_000_000_000
)

func intPtr(n int) *int     { return &n }
func int64Ptr(n int64) *int64 { return &n }

// DefaultConfiguration returns the standard four-band approval matrix for
// a company: Low (2 stages), Medium (3), High (4) and Critical (5, ending
// in a majority board stage). Stages come with no assigned approvers; an
// administrator must assign users before the matrix can be activated.
func DefaultConfiguration(companyID string) *domain.ApprovalConfiguration {
	low := domain.Threshold{
		ID:        uuid.NewString(),
		Name:      "Low Budget",
		MinAmount: 0,
		MaxAmount: int64Ptr(paisePerLakh - 1),
		Currency:  "INR",
		IsActive:  true,
		Stages: []domain.Stage{
			{ID: uuid.NewString(), Name: "initiator", DisplayName: "Initiator Review", Order: 1,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 24},
			{ID: uuid.NewString(), Name: "approver", DisplayName: "Budget Approver", Order: 2,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 48},
		},
	}

	medium := domain.Threshold{
		ID:        uuid.NewString(),
		Name:      "Medium Budget",
		MinAmount: paisePerLakh,
		MaxAmount: int64Ptr(10*paisePerLakh - 1),
		Currency:  "INR",
		IsActive:  true,
		Stages: []domain.Stage{
			{ID: uuid.NewString(), Name: "initiator", DisplayName: "Initiator Review", Order: 1,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 24},
			{ID: uuid.NewString(), Name: "department_head", DisplayName: "Department Head", Order: 2,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 48},
			{ID: uuid.NewString(), Name: "finance", DisplayName: "Finance Review", Order: 3,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 48},
		},
	}

	high := domain.Threshold{
		ID:                 uuid.NewString(),
		Name:               "High Budget",
		MinAmount:          10 * paisePerLakh,
		MaxAmount:          int64Ptr(paisePerCrore - 1),
		Currency:           "INR",
		IsActive:           true,
		ComplianceRequired: true,
		Stages: []domain.Stage{
			{ID: uuid.NewString(), Name: "initiator", DisplayName: "Initiator Review", Order: 1,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 24},
			{ID: uuid.NewString(), Name: "department_head", DisplayName: "Department Head", Order: 2,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 48},
			{ID: uuid.NewString(), Name: "finance_head", DisplayName: "Finance Head", Order: 3,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 72},
			{ID: uuid.NewString(), Name: "director", DisplayName: "Director Approval", Order: 4,
				IsRequired: true, ApprovalType: domain.PolicyJoint, MaxApprovalTime: 96},
		},
	}

	critical := domain.Threshold{
		ID:                 uuid.NewString(),
		Name:               "Critical Budget",
		MinAmount:          paisePerCrore,
		Currency:           "INR",
		IsActive:           true,
		ComplianceRequired: true,
		Stages: []domain.Stage{
			{ID: uuid.NewString(), Name: "initiator", DisplayName: "Initiator Review", Order: 1,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 24},
			{ID: uuid.NewString(), Name: "department_head", DisplayName: "Department Head", Order: 2,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 48},
			{ID: uuid.NewString(), Name: "finance_head", DisplayName: "Finance Head", Order: 3,
				IsRequired: true, ApprovalType: domain.PolicySingle, MaxApprovalTime: 72},
			{ID: uuid.NewString(), Name: "director", DisplayName: "Director Approval", Order: 4,
				IsRequired: true, ApprovalType: domain.PolicyJoint, MaxApprovalTime: 96},
			{ID: uuid.NewString(), Name: "board", DisplayName: "Board Approval", Order: 5,
				IsRequired: true, ApprovalType: domain.PolicyMajority,
				MinimumApprovals: intPtr(3), MaxApprovalTime: 168},
		},
	}

	return &domain.ApprovalConfiguration{
		CompanyID:          companyID,
		Thresholds:         []domain.Threshold{low, medium, high, critical},
		DefaultThresholdID: low.ID,
	}
}
