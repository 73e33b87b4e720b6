package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"signalcrm/internal/platform/models"
)

// The contact and signal repositories cover only creation: the full CRUD
// surface lives in a separate service, but the metering layer needs real rows
// behind its usage counts.

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, c *models.Contact) error {
	if c.ID == "" {
		c.ID = "con_" + uuid.New().String()
	}
	now := time.Now().Unix()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, organization_id, name, email, company, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OrganizationID, c.Name, c.Email, c.Company, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

type SignalRepository struct {
	db *sql.DB
}

func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

func (r *SignalRepository) Create(ctx context.Context, s *models.Signal) error {
	if s.ID == "" {
		s.ID = "sig_" + uuid.New().String()
	}
	s.CreatedAt = time.Now().Unix()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signals (id, organization_id, contact_id, kind, source, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.OrganizationID, s.ContactID, s.Kind, s.Source, s.Payload, s.CreatedAt)
	return err
}
