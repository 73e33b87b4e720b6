package auth

// Principal is the resolved identity of an authenticated request, whether it
// came in with a session token or an API key.
type Principal struct {
	OrganizationID string
	UserID         string
	KeyID          string   // set only for API key principals
	Scopes         []string // set only for API key principals
	ViaAPIKey      bool
}

// HasScope reports whether the principal may perform actions guarded by the
// named scope. Session principals are fully privileged inside their
// organization; scope checks only constrain API keys.
func (p *Principal) HasScope(scope string) bool {
	if !p.ViaAPIKey {
		return true
	}
	for _, s := range p.Scopes {
		if s == "*" || s == scope {
			return true
		}
	}
	return false
}
