package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
	"github.com/diligince-ai/be-procurement-approvals/internal/logger"
	"github.com/diligince-ai/be-procurement-approvals/internal/repository"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", ServiceName: "test"})
}

// cloneConfig round-trips through JSON, matching the isolation a real
// JSONB column gives between stored state and the caller's copy.
func cloneConfig(cfg *domain.ApprovalConfiguration) *domain.ApprovalConfiguration {
	raw, _ := json.Marshal(cfg)
	out := &domain.ApprovalConfiguration{}
	_ = json.Unmarshal(raw, out)
	return out
}

// ── Configuration store fake ──────────────────────────────────────────────────

type fakeConfigStore struct {
	mu      sync.Mutex
	configs map[string]*domain.ApprovalConfiguration
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{configs: map[string]*domain.ApprovalConfiguration{}}
}

func (s *fakeConfigStore) Create(_ context.Context, cfg *domain.ApprovalConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.CreatedAt = time.Now()
	cfg.LastModified = cfg.CreatedAt
	s.configs[cfg.ID] = cloneConfig(cfg)
	return nil
}

func (s *fakeConfigStore) GetByID(_ context.Context, id, companyID string) (*domain.ApprovalConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok || cfg.CompanyID != companyID {
		return nil, apperrors.NotFound("approval configuration", id)
	}
	return cloneConfig(cfg), nil
}

func (s *fakeConfigStore) GetActive(_ context.Context, companyID string) (*domain.ApprovalConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cfg := range s.configs {
		if cfg.CompanyID == companyID && cfg.IsActive {
			return cloneConfig(cfg), nil
		}
	}
	return nil, apperrors.NotFound("active approval configuration", companyID)
}

func (s *fakeConfigStore) List(_ context.Context, companyID string) ([]*domain.ApprovalConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ApprovalConfiguration
	for _, cfg := range s.configs {
		if cfg.CompanyID == companyID {
			out = append(out, cloneConfig(cfg))
		}
	}
	return out, nil
}

func (s *fakeConfigStore) Save(_ context.Context, cfg *domain.ApprovalConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.configs[cfg.ID]
	if !ok || stored.CompanyID != cfg.CompanyID {
		return apperrors.NotFound("approval configuration", cfg.ID)
	}
	if !stored.LastModified.Equal(cfg.LastModified) {
		return repository.ErrConcurrentModification
	}
	cfg.LastModified = time.Now()
	s.configs[cfg.ID] = cloneConfig(cfg)
	return nil
}

func (s *fakeConfigStore) SetActive(_ context.Context, id, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.configs[id]
	if !ok || target.CompanyID != companyID {
		return apperrors.NotFound("approval configuration", id)
	}
	for _, cfg := range s.configs {
		if cfg.CompanyID == companyID {
			cfg.IsActive = cfg.ID == id
		}
	}
	return nil
}

func (s *fakeConfigStore) Delete(_ context.Context, id, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok || cfg.CompanyID != companyID {
		return apperrors.NotFound("approval configuration", id)
	}
	if cfg.IsActive {
		return apperrors.Conflict("active configuration cannot be deleted")
	}
	delete(s.configs, id)
	return nil
}

// ── Workflow store fake ───────────────────────────────────────────────────────

type fakeWorkflowStore struct {
	mu        sync.Mutex
	workflows map[string]*domain.Workflow
	responses []*domain.ApprovalResponse

	statusUpdates int
	stageUpdates  int
	advances      int

	overdue []*domain.StageExecution
}

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{workflows: map[string]*domain.Workflow{}}
}

func (s *fakeWorkflowStore) Create(_ context.Context, wf *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf
	return nil
}

func (s *fakeWorkflowStore) GetByID(_ context.Context, id string) (*domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, apperrors.NotFound("approval workflow", id)
	}
	return wf, nil
}

func (s *fakeWorkflowStore) GetActiveByRequirementID(_ context.Context, requirementID string) (*domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, wf := range s.workflows {
		if wf.RequirementID == requirementID && !wf.Status.Terminal() {
			return wf, nil
		}
	}
	return nil, nil
}

func (s *fakeWorkflowStore) UpdateStatus(_ context.Context, id string, status domain.WorkflowStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return apperrors.NotFound("approval workflow", id)
	}
	s.statusUpdates++
	return nil
}

func (s *fakeWorkflowStore) AdvanceStage(_ context.Context, id, currentStageID string, completedStages int, status domain.WorkflowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advances++
	return nil
}

func (s *fakeWorkflowStore) UpdateStageExecution(_ context.Context, exec *domain.StageExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stageUpdates++
	return nil
}

func (s *fakeWorkflowStore) AppendResponse(_ context.Context, resp *domain.ApprovalResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return nil
}

func (s *fakeWorkflowStore) GetPendingForUser(_ context.Context, companyID, userID string) ([]*domain.StageExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.StageExecution
	for _, wf := range s.workflows {
		if wf.CompanyID != companyID || wf.Status.Terminal() {
			continue
		}
		for i := range wf.Stages {
			exec := &wf.Stages[i]
			if exec.Status != domain.StageCurrent {
				continue
			}
			for _, approver := range exec.Approvers {
				if approver == userID {
					out = append(out, exec)
				}
			}
		}
	}
	return out, nil
}

func (s *fakeWorkflowStore) ListOverdueStages(_ context.Context, asOf time.Time) ([]*domain.StageExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overdue, nil
}

// ── Audit store fake ──────────────────────────────────────────────────────────

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	failing bool
}

func (s *fakeAuditStore) Append(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("audit store unavailable")
	}
	entry.ID = uuid.NewString()
	entry.PerformedAt = time.Now()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeAuditStore) GetByRequirementID(_ context.Context, requirementID, companyID string) ([]*domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range s.entries {
		if e.RequirementID == requirementID && e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeAuditStore) GetByWorkflowID(_ context.Context, workflowID string) ([]*domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range s.entries {
		if e.WorkflowID != nil && *e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeAuditStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

// ── Requirement store fake ────────────────────────────────────────────────────

type fakeRequirementStore struct {
	mu           sync.Mutex
	requirements map[string]*domain.Requirement
}

func newFakeRequirementStore() *fakeRequirementStore {
	return &fakeRequirementStore{requirements: map[string]*domain.Requirement{}}
}

func (s *fakeRequirementStore) Create(_ context.Context, req *domain.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	s.requirements[req.ID] = req
	return nil
}

func (s *fakeRequirementStore) GetByID(_ context.Context, id, companyID string) (*domain.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requirements[id]
	if !ok || req.CompanyID != companyID {
		return nil, apperrors.NotFound("requirement", id)
	}
	out := *req
	return &out, nil
}

func (s *fakeRequirementStore) List(_ context.Context, companyID string, status *domain.RequirementStatus, limit, offset int) ([]*domain.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Requirement
	for _, req := range s.requirements {
		if req.CompanyID != companyID {
			continue
		}
		if status != nil && req.Status != *status {
			continue
		}
		r := *req
		out = append(out, &r)
	}
	return out, nil
}

func (s *fakeRequirementStore) UpdateStatus(_ context.Context, id, companyID string, from, to domain.RequirementStatus, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requirements[id]
	if !ok || req.CompanyID != companyID {
		return apperrors.NotFound("requirement", id)
	}
	if req.Status != from {
		return apperrors.Newf(apperrors.ErrCodeConflict,
			"requirement status is %q, expected %q", req.Status, from)
	}
	req.Status = to
	req.UpdatedBy = &updatedBy
	req.UpdatedAt = time.Now()
	return nil
}

// ── Event publisher fake ──────────────────────────────────────────────────────

type publishedEvent struct {
	eventType  string
	actorID    string
	recipients []string
	payload    map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishApprovalEvent(_ context.Context, eventType, requirementID, companyID, actorID string, recipients []string, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{
		eventType:  eventType,
		actorID:    actorID,
		recipients: recipients,
		payload:    payload,
	})
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.eventType
	}
	return out
}
