package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/database"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// RequirementRepository handles the procurement requirements this service
// approves. Only the approval-relevant slice of the requirement is stored
// here; the authoring flow lives in the requirements service.
type RequirementRepository struct {
	db *database.DB
}

// NewRequirementRepository creates a new RequirementRepository.
func NewRequirementRepository(db *database.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// Create inserts a draft requirement.
func (r *RequirementRepository) Create(ctx context.Context, req *domain.Requirement) error {
	query := `
		INSERT INTO requirements
		    (company_id, title, category, description,
		     budget_amount, currency, is_urgent, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		req.CompanyID,
		req.Title,
		req.Category,
		req.Description,
		req.BudgetAmount,
		req.Currency,
		req.IsUrgent,
		req.Status,
		req.CreatedBy,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

// GetByID retrieves a requirement.
func (r *RequirementRepository) GetByID(ctx context.Context, id, companyID string) (*domain.Requirement, error) {
	query := `
		SELECT id, company_id, title, category, description,
		       budget_amount, currency, is_urgent, status,
		       created_by, created_at, updated_by, updated_at
		FROM requirements
		WHERE id = $1 AND company_id = $2
	`

	req := &domain.Requirement{}
	err := r.db.QueryRow(ctx, query, id, companyID).Scan(
		&req.ID, &req.CompanyID, &req.Title, &req.Category, &req.Description,
		&req.BudgetAmount, &req.Currency, &req.IsUrgent, &req.Status,
		&req.CreatedBy, &req.CreatedAt, &req.UpdatedBy, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("requirement", id)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// List returns requirements for a company, optionally filtered by status,
// newest first.
func (r *RequirementRepository) List(ctx context.Context, companyID string, status *domain.RequirementStatus, limit, offset int) ([]*domain.Requirement, error) {
	query := `
		SELECT id, company_id, title, category, description,
		       budget_amount, currency, is_urgent, status,
		       created_by, created_at, updated_by, updated_at
		FROM requirements
		WHERE company_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, companyID, status, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list requirements")
	}
	defer rows.Close()

	var reqs []*domain.Requirement
	for rows.Next() {
		req := &domain.Requirement{}
		err := rows.Scan(
			&req.ID, &req.CompanyID, &req.Title, &req.Category, &req.Description,
			&req.BudgetAmount, &req.Currency, &req.IsUrgent, &req.Status,
			&req.CreatedBy, &req.CreatedAt, &req.UpdatedBy, &req.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan requirement")
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// UpdateStatus transitions a requirement between lifecycle states, but
// only from the expected current status so concurrent submissions cannot
// double-route one requirement.
func (r *RequirementRepository) UpdateStatus(ctx context.Context, id, companyID string, from, to domain.RequirementStatus, updatedBy string) error {
	query := `
		UPDATE requirements
		SET status     = $4,
		    updated_by = $5,
		    updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND status = $3
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, companyID, from, to, updatedBy).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id, companyID); getErr != nil {
			return getErr
		}
		return apperrors.Newf(apperrors.ErrCodeConflict,
			"requirement %s is not in status %q", id, from)
	}
	return err
}
