// Package repository implements Postgres persistence for the approval
// domain. All repositories share the pgx pool wrapper from the database
// package; nested structures (thresholds with their stages) are stored as
// JSONB on the owning row.
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

// ErrConcurrentModification is returned when a configuration save loses an
// optimistic-concurrency race: the stored last_modified stamp no longer
// matches the one the caller read. The caller must reload and re-apply.
var ErrConcurrentModification = apperrors.Conflict(
	"configuration was modified by someone else; reload and retry")

// ConfigurationRepository handles CRUD for approval_configurations.
type ConfigurationRepository struct {
	db *database.DB
}

// NewConfigurationRepository creates a new ConfigurationRepository.
func NewConfigurationRepository(db *database.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// Create inserts a new configuration.
func (r *ConfigurationRepository) Create(ctx context.Context, cfg *domain.ApprovalConfiguration) error {
	thresholdsJSON, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal thresholds")
	}

	query := `
		INSERT INTO approval_configurations
		    (company_id, thresholds, default_threshold_id, is_active, modified_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, last_modified
	`

	return r.db.QueryRow(ctx, query,
		cfg.CompanyID,
		thresholdsJSON,
		cfg.DefaultThresholdID,
		cfg.IsActive,
		cfg.ModifiedBy,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.LastModified)
}

// GetByID retrieves a configuration by primary key.
func (r *ConfigurationRepository) GetByID(ctx context.Context, id, companyID string) (*domain.ApprovalConfiguration, error) {
	query := `
		SELECT id, company_id, thresholds, default_threshold_id,
		       is_active, created_at, last_modified, modified_by
		FROM approval_configurations
		WHERE id = $1 AND company_id = $2
	`

	cfg, err := scanConfiguration(r.db.QueryRow(ctx, query, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval_configuration", id)
	}
	return cfg, err
}

// GetActive returns the company's single active configuration, or a
// not-found error when none has been activated yet.
func (r *ConfigurationRepository) GetActive(ctx context.Context, companyID string) (*domain.ApprovalConfiguration, error) {
	query := `
		SELECT id, company_id, thresholds, default_threshold_id,
		       is_active, created_at, last_modified, modified_by
		FROM approval_configurations
		WHERE company_id = $1 AND is_active = TRUE
		ORDER BY last_modified DESC
		LIMIT 1
	`

	cfg, err := scanConfiguration(r.db.QueryRow(ctx, query, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrCodeNotFound,
			"no active approval configuration for company %s", companyID)
	}
	return cfg, err
}

// List returns all configurations for a company, newest first.
func (r *ConfigurationRepository) List(ctx context.Context, companyID string) ([]*domain.ApprovalConfiguration, error) {
	query := `
		SELECT id, company_id, thresholds, default_threshold_id,
		       is_active, created_at, last_modified, modified_by
		FROM approval_configurations
		WHERE company_id = $1
		ORDER BY last_modified DESC
	`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list configurations")
	}
	defer rows.Close()

	var configs []*domain.ApprovalConfiguration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan configuration")
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Save persists edits to an existing configuration. The UPDATE matches on
// the last_modified stamp the caller read; a stale stamp fails with
// ErrConcurrentModification instead of silently overwriting.
func (r *ConfigurationRepository) Save(ctx context.Context, cfg *domain.ApprovalConfiguration) error {
	thresholdsJSON, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal thresholds")
	}

	query := `
		UPDATE approval_configurations
		SET thresholds           = $4,
		    default_threshold_id = $5,
		    is_active            = $6,
		    modified_by          = $7,
		    last_modified        = NOW()
		WHERE id = $1 AND company_id = $2 AND last_modified = $3
		RETURNING last_modified
	`

	err = r.db.QueryRow(ctx, query,
		cfg.ID,
		cfg.CompanyID,
		cfg.LastModified,
		thresholdsJSON,
		cfg.DefaultThresholdID,
		cfg.IsActive,
		cfg.ModifiedBy,
	).Scan(&cfg.LastModified)

	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a stale stamp from a missing row.
		if _, getErr := r.GetByID(ctx, cfg.ID, cfg.CompanyID); getErr != nil {
			return getErr
		}
		return ErrConcurrentModification
	}
	return err
}

// SetActive activates one configuration and deactivates all others for
// the company in a single transaction, preserving the one-active-per-
// company invariant.
func (r *ConfigurationRepository) SetActive(ctx context.Context, id, companyID string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE approval_configurations
			SET is_active = FALSE, last_modified = NOW()
			WHERE company_id = $1 AND is_active = TRUE AND id <> $2
		`, companyID, id)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to deactivate configurations")
		}

		tag, err := tx.Exec(ctx, `
			UPDATE approval_configurations
			SET is_active = TRUE, last_modified = NOW()
			WHERE id = $1 AND company_id = $2
		`, id, companyID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to activate configuration")
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("approval_configuration", id)
		}
		return nil
	})
}

// Delete removes an inactive configuration.
func (r *ConfigurationRepository) Delete(ctx context.Context, id, companyID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM approval_configurations
		WHERE id = $1 AND company_id = $2 AND is_active = FALSE
	`, id, companyID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete configuration")
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id, companyID); getErr != nil {
			return getErr
		}
		return apperrors.Conflict("active configuration cannot be deleted")
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfiguration(row rowScanner) (*domain.ApprovalConfiguration, error) {
	cfg := &domain.ApprovalConfiguration{}
	var thresholdsJSON []byte
	var lastModified time.Time

	err := row.Scan(
		&cfg.ID,
		&cfg.CompanyID,
		&thresholdsJSON,
		&cfg.DefaultThresholdID,
		&cfg.IsActive,
		&cfg.CreatedAt,
		&lastModified,
		&cfg.ModifiedBy,
	)
	if err != nil {
		return nil, err
	}
	cfg.LastModified = lastModified

	if err := json.Unmarshal(thresholdsJSON, &cfg.Thresholds); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to unmarshal thresholds")
	}
	return cfg, nil
}
