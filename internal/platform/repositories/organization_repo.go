package repositories

import (
	"context"
	"database/sql"

	"signalcrm/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, plan_tier, billing_ref, created_at, updated_at, deleted_at
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.PlanTier, &org.BillingRef, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

// PlanTierOf returns the raw plan tier string for the organization. A missing
// organization yields an empty string, which downstream normalization maps to
// the lowest tier.
func (r *OrganizationRepository) PlanTierOf(ctx context.Context, id string) (string, error) {
	var tier string
	err := r.db.QueryRowContext(ctx,
		`SELECT plan_tier FROM organizations WHERE id = ?`, id).Scan(&tier)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return tier, nil
}
