package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
	"github.com/diligince-ai/be-procurement-approvals/internal/engine"
	"github.com/diligince-ai/be-procurement-approvals/internal/logger"
)

// ConfigurationService owns edits to the approval matrix. Every mutation
// re-validates the whole configuration before saving, so malformed stage
// definitions surface at edit time, never mid-approval. Saves go through
// the store's optimistic stamp; a concurrent edit fails loudly.
type ConfigurationService struct {
	configs ConfigurationStore
	log     *logger.Logger
	now     func() time.Time
}

// NewConfigurationService creates a new ConfigurationService.
func NewConfigurationService(configs ConfigurationStore, log *logger.Logger) *ConfigurationService {
	return &ConfigurationService{configs: configs, log: log, now: time.Now}
}

// CreateConfiguration validates and stores a new configuration.
func (s *ConfigurationService) CreateConfiguration(ctx context.Context, cfg *domain.ApprovalConfiguration, createdBy string) error {
	assignStableIDs(cfg)
	if err := engine.ValidateConfiguration(cfg); err != nil {
		return err
	}
	cfg.ModifiedBy = createdBy
	if err := s.configs.Create(ctx, cfg); err != nil {
		return err
	}
	s.log.Info().
		Str("configuration_id", cfg.ID).
		Str("company_id", cfg.CompanyID).
		Int("thresholds", len(cfg.Thresholds)).
		Msg("Approval configuration created")
	return nil
}

// UpdateConfiguration validates and saves a full edit.
func (s *ConfigurationService) UpdateConfiguration(ctx context.Context, cfg *domain.ApprovalConfiguration, modifiedBy string) error {
	assignStableIDs(cfg)
	if err := engine.ValidateConfiguration(cfg); err != nil {
		return err
	}
	cfg.ModifiedBy = modifiedBy
	return s.configs.Save(ctx, cfg)
}

// GetConfiguration returns one configuration.
func (s *ConfigurationService) GetConfiguration(ctx context.Context, id, companyID string) (*domain.ApprovalConfiguration, error) {
	return s.configs.GetByID(ctx, id, companyID)
}

// GetActiveConfiguration returns the company's active configuration.
func (s *ConfigurationService) GetActiveConfiguration(ctx context.Context, companyID string) (*domain.ApprovalConfiguration, error) {
	return s.configs.GetActive(ctx, companyID)
}

// ListConfigurations returns all of a company's configurations.
func (s *ConfigurationService) ListConfigurations(ctx context.Context, companyID string) ([]*domain.ApprovalConfiguration, error) {
	return s.configs.List(ctx, companyID)
}

// ActivateConfiguration makes one configuration the company's active
// matrix, deactivating any other. Activation runs the strict rule set:
// every required stage needs assigned approvers before the matrix can
// start routing requirements.
func (s *ConfigurationService) ActivateConfiguration(ctx context.Context, id, companyID string) error {
	cfg, err := s.configs.GetByID(ctx, id, companyID)
	if err != nil {
		return err
	}
	if err := engine.ValidateForActivation(cfg); err != nil {
		return err
	}
	return s.configs.SetActive(ctx, id, companyID)
}

// DeleteConfiguration removes an inactive configuration.
func (s *ConfigurationService) DeleteConfiguration(ctx context.Context, id, companyID string) error {
	return s.configs.Delete(ctx, id, companyID)
}

// ── Stage approver edits ──────────────────────────────────────────────────────

// AssignUsersToStage unions new approver ids into a stage. Already
// assigned users are skipped, so the operation is idempotent.
func (s *ConfigurationService) AssignUsersToStage(
	ctx context.Context,
	configID, companyID, thresholdID, stageID string,
	userIDs []string,
	modifiedBy string,
) (*domain.ApprovalConfiguration, error) {
	return s.editStage(ctx, configID, companyID, thresholdID, stageID, modifiedBy,
		func(stage *domain.Stage) error {
			for _, id := range userIDs {
				if id == "" {
					return apperrors.InvalidInput("user_ids", "empty user id")
				}
				if !containsUser(stage.AssignedUsers, id) {
					stage.AssignedUsers = append(stage.AssignedUsers, id)
				}
			}
			return nil
		})
}

// RemoveUserFromStage removes an approver from a stage. Removing a user
// who is not assigned is a no-op. Removing the last approver of a
// required stage on an active threshold is rejected by validation.
func (s *ConfigurationService) RemoveUserFromStage(
	ctx context.Context,
	configID, companyID, thresholdID, stageID, userID, modifiedBy string,
) (*domain.ApprovalConfiguration, error) {
	return s.editStage(ctx, configID, companyID, thresholdID, stageID, modifiedBy,
		func(stage *domain.Stage) error {
			filtered := stage.AssignedUsers[:0]
			for _, id := range stage.AssignedUsers {
				if id != userID {
					filtered = append(filtered, id)
				}
			}
			stage.AssignedUsers = filtered
			return nil
		})
}

// SetAllStagesRequired bulk-toggles the required flag across every stage
// of every threshold in the configuration.
func (s *ConfigurationService) SetAllStagesRequired(
	ctx context.Context,
	configID, companyID string,
	required bool,
	modifiedBy string,
) (*domain.ApprovalConfiguration, error) {
	cfg, err := s.configs.GetByID(ctx, configID, companyID)
	if err != nil {
		return nil, err
	}
	for ti := range cfg.Thresholds {
		for si := range cfg.Thresholds[ti].Stages {
			cfg.Thresholds[ti].Stages[si].IsRequired = required
		}
	}
	if err := s.saveEdited(ctx, cfg, modifiedBy); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetThresholdActive toggles a single threshold on or off.
func (s *ConfigurationService) SetThresholdActive(
	ctx context.Context,
	configID, companyID, thresholdID string,
	active bool,
	modifiedBy string,
) (*domain.ApprovalConfiguration, error) {
	cfg, err := s.configs.GetByID(ctx, configID, companyID)
	if err != nil {
		return nil, err
	}
	threshold := findThreshold(cfg, thresholdID)
	if threshold == nil {
		return nil, apperrors.NotFound("threshold", thresholdID)
	}
	threshold.IsActive = active
	if err := s.saveEdited(ctx, cfg, modifiedBy); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ── Cloning ───────────────────────────────────────────────────────────────────

// CloneForRole deep-copies a configuration under a new identity for
// another company. The clone starts inactive; every threshold, stage and
// assignment gets a fresh id so edits to the clone never leak back.
func (s *ConfigurationService) CloneForRole(
	ctx context.Context,
	configID, companyID, targetCompanyID, clonedBy string,
) (*domain.ApprovalConfiguration, error) {
	if targetCompanyID == "" {
		return nil, apperrors.InvalidInput("target_company_id", "target company is required")
	}

	src, err := s.configs.GetByID(ctx, configID, companyID)
	if err != nil {
		return nil, err
	}

	clone := &domain.ApprovalConfiguration{
		CompanyID:  targetCompanyID,
		Thresholds: make([]domain.Threshold, len(src.Thresholds)),
		IsActive:   false,
		ModifiedBy: clonedBy,
	}
	for i, t := range src.Thresholds {
		ct := t
		ct.ID = uuid.NewString()
		ct.Stages = make([]domain.Stage, len(t.Stages))
		for j, stage := range t.Stages {
			cs := stage
			cs.ID = uuid.NewString()
			cs.AssignedUsers = append([]string(nil), stage.AssignedUsers...)
			if stage.MinimumApprovals != nil {
				min := *stage.MinimumApprovals
				cs.MinimumApprovals = &min
			}
			ct.Stages[j] = cs
		}
		clone.Thresholds[i] = ct
		if t.ID == src.DefaultThresholdID {
			clone.DefaultThresholdID = ct.ID
		}
	}

	if err := engine.ValidateConfiguration(clone); err != nil {
		return nil, err
	}
	if err := s.configs.Create(ctx, clone); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("source_configuration", src.ID).
		Str("clone_configuration", clone.ID).
		Str("target_company", targetCompanyID).
		Msg("Approval configuration cloned")
	return clone, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

func (s *ConfigurationService) editStage(
	ctx context.Context,
	configID, companyID, thresholdID, stageID, modifiedBy string,
	edit func(stage *domain.Stage) error,
) (*domain.ApprovalConfiguration, error) {
	cfg, err := s.configs.GetByID(ctx, configID, companyID)
	if err != nil {
		return nil, err
	}

	threshold := findThreshold(cfg, thresholdID)
	if threshold == nil {
		return nil, apperrors.NotFound("threshold", thresholdID)
	}
	var stage *domain.Stage
	for i := range threshold.Stages {
		if threshold.Stages[i].ID == stageID {
			stage = &threshold.Stages[i]
			break
		}
	}
	if stage == nil {
		return nil, apperrors.NotFound("stage", stageID)
	}

	if err := edit(stage); err != nil {
		return nil, err
	}
	if err := s.saveEdited(ctx, cfg, modifiedBy); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigurationService) saveEdited(ctx context.Context, cfg *domain.ApprovalConfiguration, modifiedBy string) error {
	if err := engine.ValidateConfiguration(cfg); err != nil {
		return err
	}
	cfg.ModifiedBy = modifiedBy
	return s.configs.Save(ctx, cfg)
}

// assignStableIDs fills in ids for thresholds and stages created by the
// caller without one.
func assignStableIDs(cfg *domain.ApprovalConfiguration) {
	for ti := range cfg.Thresholds {
		t := &cfg.Thresholds[ti]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		for si := range t.Stages {
			if t.Stages[si].ID == "" {
				t.Stages[si].ID = uuid.NewString()
			}
		}
	}
	if cfg.DefaultThresholdID == "" && len(cfg.Thresholds) > 0 {
		cfg.DefaultThresholdID = cfg.Thresholds[0].ID
	}
}

func findThreshold(cfg *domain.ApprovalConfiguration, thresholdID string) *domain.Threshold {
	for i := range cfg.Thresholds {
		if cfg.Thresholds[i].ID == thresholdID {
			return &cfg.Thresholds[i]
		}
	}
	return nil
}

func containsUser(users []string, id string) bool {
	for _, u := range users {
		if u == id {
			return true
		}
	}
	return false
}
