package service

import (
	"context"
	"time"

	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
	"github.com/diligince-ai/be-procurement-approvals/internal/logger"
	"github.com/diligince-ai/be-procurement-approvals/internal/metrics"
)

// OverdueScanner periodically finds current stages whose deadline
// (started_at + max_approval_time) has passed and emits a stage_overdue
// notification for each. It is a pure observer: the workflow state
// machine is never mutated on timeout. Escalation beyond the
// notification is the notification service's concern.
type OverdueScanner struct {
	workflows WorkflowStore
	publisher EventPublisher
	log       *logger.Logger
	interval  time.Duration
	now       func() time.Time
}

// NewOverdueScanner creates a scanner that ticks at the given interval.
func NewOverdueScanner(workflows WorkflowStore, publisher EventPublisher, log *logger.Logger, interval time.Duration) *OverdueScanner {
	return &OverdueScanner{
		workflows: workflows,
		publisher: publisher,
		log:       log,
		interval:  interval,
		now:       time.Now,
	}
}

// Run scans until the context is canceled. A failed scan is logged and
// retried on the next tick.
func (s *OverdueScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("Overdue stage scanner started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Overdue stage scanner stopped")
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan performs one pass. Exported so operators can trigger it on demand.
func (s *OverdueScanner) Scan(ctx context.Context) {
	overdue, err := s.workflows.ListOverdueStages(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("Overdue scan failed")
		return
	}

	metrics.OverdueStages.Set(float64(len(overdue)))
	for _, exec := range overdue {
		s.notifyOverdue(ctx, exec)
	}
}

func (s *OverdueScanner) notifyOverdue(ctx context.Context, exec *domain.StageExecution) {
	if s.publisher == nil {
		return
	}

	deadline := exec.StartedAt.Add(time.Duration(exec.MaxApprovalTime) * time.Hour)
	s.publisher.PublishApprovalEvent(ctx, "stage_overdue",
		exec.RequirementID, exec.CompanyID, "system", exec.Approvers,
		map[string]any{
			"workflow_id":    exec.WorkflowID,
			"stage":          exec.StageName,
			"stage_order":    exec.Order,
			"deadline":       deadline.UTC(),
			"approval_count": exec.ApprovalCount,
			"required":       exec.RequiredApprovals,
		})

	s.log.Warn().
		Str("workflow_id", exec.WorkflowID).
		Str("stage", exec.StageName).
		Time("deadline", deadline).
		Msg("Approval stage overdue")
}
