package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/database"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// AuditRepository appends and reads immutable approval audit log entries.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. The table has a delete-prevention
// trigger so this is the only mutation operation exposed.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO approval_audit_log
		    (requirement_id, workflow_id, stage_id, company_id,
		     action, performed_by, status_before, status_after, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.RequirementID,
		entry.WorkflowID,
		entry.StageID,
		entry.CompanyID,
		entry.Action,
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
}

// GetByRequirementID returns the full audit trail for a requirement,
// oldest first.
func (r *AuditRepository) GetByRequirementID(ctx context.Context, requirementID, companyID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, requirement_id, workflow_id, stage_id, company_id,
		       action, performed_by, performed_at,
		       status_before, status_after, metadata
		FROM approval_audit_log
		WHERE requirement_id = $1 AND company_id = $2
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, requirementID, companyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// GetByWorkflowID returns audit entries for one workflow, oldest first.
func (r *AuditRepository) GetByWorkflowID(ctx context.Context, workflowID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, requirement_id, workflow_id, stage_id, company_id,
		       action, performed_by, performed_at,
		       status_before, status_after, metadata
		FROM approval_audit_log
		WHERE workflow_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, workflowID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

func scanAuditRows(rows pgx.Rows) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	for rows.Next() {
		entry := &domain.AuditEntry{}
		var metadataJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.RequirementID,
			&entry.WorkflowID,
			&entry.StageID,
			&entry.CompanyID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.StatusBefore,
			&entry.StatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
