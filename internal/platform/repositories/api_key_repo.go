package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"signalcrm/internal/platform/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	now := time.Now().Unix()
	key.CreatedAt = now
	key.UpdatedAt = now
	key.Active = true

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_keys (id, organization_id, user_id, name, key_hash, key_prefix, scopes, active, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, key.ID, key.OrganizationID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, string(scopesJSON), key.ExpiresAt, key.CreatedAt, key.UpdatedAt)
	return err
}

func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	query := `
		SELECT id, organization_id, user_id, name, key_prefix, scopes, active, last_used_at, expires_at, created_at, updated_at
		FROM api_keys WHERE key_hash = ?
	`
	k, err := scanKey(r.db.QueryRowContext(ctx, query, hash))
	if err != nil || k == nil {
		return nil, err
	}
	k.KeyHash = hash
	return k, nil
}

func (r *APIKeyRepository) GetByID(ctx context.Context, orgID, id string) (*models.APIKey, error) {
	query := `
		SELECT id, organization_id, user_id, name, key_prefix, scopes, active, last_used_at, expires_at, created_at, updated_at
		FROM api_keys WHERE id = ? AND organization_id = ?
	`
	return scanKey(r.db.QueryRowContext(ctx, query, id, orgID))
}

func (r *APIKeyRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.APIKey, error) {
	query := `
		SELECT id, organization_id, user_id, name, key_prefix, scopes, active, last_used_at, expires_at, created_at, updated_at
		FROM api_keys WHERE organization_id = ? ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke deactivates the key. The organization id is part of the predicate so
// a caller can never revoke another tenant's key; the bool reports whether a
// row actually changed.
func (r *APIKeyRepository) Revoke(ctx context.Context, orgID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET active = 0, updated_at = ? WHERE id = ? AND organization_id = ?`,
		time.Now().Unix(), id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *APIKeyRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanKey(row rowScanner) (*models.APIKey, error) {
	var k models.APIKey
	var scopesStr string
	var active int
	var lastUsedAt, expiresAt sql.NullInt64

	err := row.Scan(&k.ID, &k.OrganizationID, &k.UserID, &k.Name, &k.KeyPrefix, &scopesStr, &active, &lastUsedAt, &expiresAt, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	k.Active = active != 0
	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Int64
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Int64
	}
	json.Unmarshal([]byte(scopesStr), &k.Scopes)

	return &k, nil
}
