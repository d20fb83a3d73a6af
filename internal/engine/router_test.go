package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// A ₹50,000 requirement routes through the two-stage low band and lands
// approved after both single-approver stages clear.
func TestLowBandFullApproval(t *testing.T) {
	wf, err := newTestWorkflow(50_000*100, false)
	require.NoError(t, err)
	assert.Equal(t, "t-low", wf.ThresholdID)
	assert.Equal(t, 2, wf.TotalStages)

	result, err := approveCurrent(wf, "u-init")
	require.NoError(t, err)
	assert.False(t, result.Terminal)
	require.NotNil(t, result.NextStage)
	assert.Equal(t, domain.WorkflowInProgress, wf.Status)
	assert.Equal(t, 1, wf.CompletedStages)

	result, err = approveCurrent(wf, "u-approver")
	require.NoError(t, err)
	assert.True(t, result.Terminal)
	assert.Equal(t, domain.WorkflowApproved, wf.Status)
	assert.Equal(t, 2, wf.CompletedStages)
	require.NotNil(t, wf.CompletedAt)
}

// A ₹15 crore requirement routes through all five critical-band stages.
// The majority board stage needs three of five; two approvals leave the
// workflow in progress, the third finalizes it.
func TestCriticalBandMajorityBoard(t *testing.T) {
	wf, err := newTestWorkflow(15*crore, false)
	require.NoError(t, err)
	assert.Equal(t, "t-critical", wf.ThresholdID)
	assert.Equal(t, 5, wf.TotalStages)

	_, err = approveCurrent(wf, "u-init")
	require.NoError(t, err)
	_, err = approveCurrent(wf, "u-dept")
	require.NoError(t, err)
	_, err = approveCurrent(wf, "u-finhead")
	require.NoError(t, err)

	// Joint director stage: one approval is not enough.
	result, err := approveCurrent(wf, "u-dir1")
	require.NoError(t, err)
	assert.Nil(t, result.NextStage)
	assert.Equal(t, 3, wf.CompletedStages)

	result, err = approveCurrent(wf, "u-dir2")
	require.NoError(t, err)
	require.NotNil(t, result.NextStage)
	assert.Equal(t, "Board Approval", result.NextStage.StageName)
	assert.Equal(t, 4, wf.CompletedStages)

	result, err = approveCurrent(wf, "b1", "b2")
	require.NoError(t, err)
	assert.False(t, result.Terminal)
	assert.Equal(t, domain.WorkflowInProgress, wf.Status)
	assert.Equal(t, 2, result.Stage.ApprovalCount)

	result, err = approveCurrent(wf, "b3")
	require.NoError(t, err)
	assert.True(t, result.Terminal)
	assert.Equal(t, domain.WorkflowApproved, wf.Status)
	assert.Equal(t, 5, wf.CompletedStages)
}

// One rejection terminates the workflow mid-chain; any further response
// is rejected and leaves the state untouched.
func TestRejectionShortCircuits(t *testing.T) {
	wf, err := newTestWorkflow(5*lakh, false)
	require.NoError(t, err)
	assert.Equal(t, "t-medium", wf.ThresholdID)

	_, err = approveCurrent(wf, "u-init")
	require.NoError(t, err)

	comment := "budget line not justified"
	result, err := SubmitResponse(wf, wf.CurrentStageID, "u-dept", domain.DecisionRejected, &comment, testNow)
	require.NoError(t, err)
	assert.True(t, result.Terminal)
	assert.Equal(t, domain.WorkflowRejected, wf.Status)
	assert.Equal(t, domain.StageRejected, result.Stage.Status)
	assert.Equal(t, 1, wf.CompletedStages)

	before := *wf
	_, err = SubmitResponse(wf, wf.Stages[2].StageID, "u-fin", domain.DecisionApproved, nil, testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidApprovalAction))
	assert.Equal(t, before.Status, wf.Status)
	assert.Equal(t, before.CompletedStages, wf.CompletedStages)
	assert.Equal(t, domain.StagePending, wf.Stages[2].Status)
}

func TestSubmitResponseValidation(t *testing.T) {
	tests := []struct {
		name     string
		stageID  func(wf *domain.Workflow) string
		approver string
		decision domain.Decision
	}{
		{
			name:     "non-current stage",
			stageID:  func(wf *domain.Workflow) string { return wf.Stages[1].StageID },
			approver: "u-dept",
			decision: domain.DecisionApproved,
		},
		{
			name:     "unknown stage",
			stageID:  func(*domain.Workflow) string { return "missing" },
			approver: "u-init",
			decision: domain.DecisionApproved,
		},
		{
			name:     "approver not assigned to stage",
			stageID:  func(wf *domain.Workflow) string { return wf.CurrentStageID },
			approver: "u-stranger",
			decision: domain.DecisionApproved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := newTestWorkflow(5*lakh, false)
			require.NoError(t, err)

			_, err = SubmitResponse(wf, tt.stageID(wf), tt.approver, tt.decision, nil, testNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidApprovalAction))
			assert.Equal(t, domain.WorkflowPending, wf.Status)
			assert.Empty(t, wf.Stages[0].Responses)
		})
	}

	t.Run("unknown decision", func(t *testing.T) {
		wf, err := newTestWorkflow(5*lakh, false)
		require.NoError(t, err)

		_, err = SubmitResponse(wf, wf.CurrentStageID, "u-init", domain.Decision("maybe"), nil, testNow)
		require.Error(t, err)
		assert.Empty(t, wf.Stages[0].Responses)
	})
}

func TestDuplicateResponseRejected(t *testing.T) {
	wf, err := newTestWorkflow(2*crore, false)
	require.NoError(t, err)
	_, err = approveCurrent(wf, "u-init")
	require.NoError(t, err)
	_, err = approveCurrent(wf, "u-dept")
	require.NoError(t, err)
	_, err = approveCurrent(wf, "u-finhead")
	require.NoError(t, err)

	// First director approval lands; the same director cannot respond twice.
	_, err = approveCurrent(wf, "u-dir1")
	require.NoError(t, err)

	_, err = SubmitResponse(wf, wf.CurrentStageID, "u-dir1", domain.DecisionApproved, nil, testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidApprovalAction))

	exec := wf.Stages[3]
	assert.Equal(t, 1, exec.ApprovalCount)
	assert.Len(t, exec.Responses, 1)
}

func TestRecall(t *testing.T) {
	wf, err := newTestWorkflow(5*lakh, false)
	require.NoError(t, err)
	_, err = approveCurrent(wf, "u-init")
	require.NoError(t, err)

	t.Run("non-submitter cannot recall", func(t *testing.T) {
		err := Recall(wf, "u-dept", testNow)
		require.Error(t, err)
		assert.Equal(t, domain.WorkflowInProgress, wf.Status)
	})

	t.Run("submitter recall terminates remaining stages", func(t *testing.T) {
		require.NoError(t, Recall(wf, "u-submitter", testNow))
		assert.Equal(t, domain.WorkflowRecalled, wf.Status)
		require.NotNil(t, wf.CompletedAt)
		assert.Equal(t, domain.StageApproved, wf.Stages[0].Status)
		assert.Equal(t, domain.StageRecalled, wf.Stages[1].Status)
		assert.Equal(t, domain.StageRecalled, wf.Stages[2].Status)
	})

	t.Run("recalled workflow refuses further actions", func(t *testing.T) {
		err := Recall(wf, "u-submitter", testNow)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidApprovalAction))

		_, err = SubmitResponse(wf, wf.CurrentStageID, "u-dept", domain.DecisionApproved, nil, testNow)
		require.Error(t, err)
	})
}

func TestReassignApprover(t *testing.T) {
	wf, err := newTestWorkflow(5*lakh, false)
	require.NoError(t, err)

	t.Run("replaces approver on pending stage", func(t *testing.T) {
		exec, err := ReassignApprover(wf, wf.Stages[1].StageID, "u-dept", "u-dept-cover", testNow)
		require.NoError(t, err)
		assert.Equal(t, []string{"u-dept-cover"}, exec.Approvers)
	})

	t.Run("original approver loses access, replacement gains it", func(t *testing.T) {
		_, err := approveCurrent(wf, "u-init")
		require.NoError(t, err)

		_, err = SubmitResponse(wf, wf.CurrentStageID, "u-dept", domain.DecisionApproved, nil, testNow)
		require.Error(t, err)

		_, err = approveCurrent(wf, "u-dept-cover")
		require.NoError(t, err)
	})

	t.Run("unknown outgoing approver", func(t *testing.T) {
		_, err := ReassignApprover(wf, wf.CurrentStageID, "u-ghost", "u-new", testNow)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidApprovalAction))
	})

	t.Run("completed stage cannot be reassigned", func(t *testing.T) {
		_, err := ReassignApprover(wf, wf.Stages[0].StageID, "u-init", "u-new", testNow)
		require.Error(t, err)
	})
}
