package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UsageStore answers the two questions quota enforcement asks of the durable
// store: how many of a resource an organization currently has, and what plan
// tier it is on.
type UsageStore struct {
	db *sql.DB
}

func NewUsageStore(db *sql.DB) *UsageStore {
	return &UsageStore{db: db}
}

var countQueries = map[string]string{
	"contacts": `SELECT COUNT(*) FROM contacts WHERE organization_id = ?`,
	"signals":  `SELECT COUNT(*) FROM signals WHERE organization_id = ?`,
	"members":  `SELECT COUNT(*) FROM users WHERE organization_id = ? AND deleted_at IS NULL`,
}

// Count returns the number of rows of the given resource owned by the
// organization. When since is non-nil only rows created at or after it are
// counted, which is how periodic resources get their calendar-month scope.
func (s *UsageStore) Count(ctx context.Context, resource, orgID string, since *time.Time) (int64, error) {
	query, ok := countQueries[resource]
	if !ok {
		return 0, fmt.Errorf("unknown resource kind %q", resource)
	}

	args := []interface{}{orgID}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, since.Unix())
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *UsageStore) PlanTierOf(ctx context.Context, orgID string) (string, error) {
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_tier FROM organizations WHERE id = ?`, orgID).Scan(&tier)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return tier, nil
}
