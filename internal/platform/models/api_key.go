package models

type APIKey struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	UserID         string   `json:"user_id"`
	Name           string   `json:"name"`
	KeyHash        string   `json:"-"`
	KeyPrefix      string   `json:"key_prefix"`
	Scopes         []string `json:"scopes"` // JSON array in DB, "*" grants everything
	Active         bool     `json:"active"`
	LastUsedAt     *int64   `json:"last_used_at,omitempty"`
	ExpiresAt      *int64   `json:"expires_at,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// Usable reports whether the key may authenticate a request at the given
// unix time: it must be active and either carry no expiry or expire later.
func (k *APIKey) Usable(now int64) bool {
	if !k.Active {
		return false
	}
	if k.ExpiresAt != nil && *k.ExpiresAt <= now {
		return false
	}
	return true
}

// HasScope reports whether the key grants the named scope, either literally
// or through the wildcard.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == "*" || s == scope {
			return true
		}
	}
	return false
}
