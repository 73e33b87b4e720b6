package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/engine/apikeys"
	"signalcrm/internal/pkg/errors"
	"signalcrm/internal/platform/auth"
)

// Authenticator resolves every inbound request to a Principal, via either an
// API key or a session token. Both paths fail closed: any doubt is a 401.
type Authenticator struct {
	keys     *apikeys.Service
	tokenSvc *auth.TokenService
}

func NewAuthenticator(keys *apikeys.Service, tokenSvc *auth.TokenService) *Authenticator {
	return &Authenticator{keys: keys, tokenSvc: tokenSvc}
}

// credential pulls the raw credential out of the request: the dedicated
// X-API-Key header wins, otherwise the Authorization bearer value. The second
// return reports whether it carries the API key prefix; anything else is
// treated as a session token.
func credential(r *http.Request) (string, bool) {
	if v := r.Header.Get("X-API-Key"); v != "" {
		return v, apikeys.HasSecretPrefix(v)
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], apikeys.HasSecretPrefix(parts[1])
}

func (m *Authenticator) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, isAPIKey := credential(r)
		if raw == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing credentials", nil)
			return
		}

		var principal *auth.Principal

		if isAPIKey {
			key := m.keys.Validate(r.Context(), raw)
			if key == nil {
				// Absent, revoked and expired all look the same from here.
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid API key", nil)
				return
			}
			principal = &auth.Principal{
				OrganizationID: key.OrganizationID,
				UserID:         key.UserID,
				KeyID:          key.ID,
				Scopes:         key.Scopes,
				ViaAPIKey:      true,
			}
		} else {
			claims, err := m.tokenSvc.ValidateToken(raw)
			if err != nil {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
				return
			}
			principal = &auth.Principal{
				OrganizationID: claims.OrganizationID,
				UserID:         claims.UserID,
			}
		}

		ctx := context.WithValue(r.Context(), apiContext.Principal, principal)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope gates a route on an API key scope. Session principals pass
// unconditionally; their permissions live in the org role system, not here.
func RequireScope(scope string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, ok := r.Context().Value(apiContext.Principal).(*auth.Principal)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authenticated principal", nil)
				return
			}

			if !principal.HasScope(scope) {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "API key lacks required scope",
					map[string]string{"required": scope})
				return
			}

			next(w, r)
		}
	}
}
