package middleware

import (
	"encoding/json"
	"net/http"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/engine/quota"
	"signalcrm/internal/pkg/errors"
	"signalcrm/internal/platform/auth"
)

// QuotaGate blocks resource-creating requests once the organization's plan
// ceiling for the resource is reached. An allow has no side effect; a deny
// short-circuits with 402 and the structured denial body. Enforcer errors
// never reach here; the enforcer converts them to allows itself.
func QuotaGate(enforcer *quota.Enforcer, resource string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, ok := r.Context().Value(apiContext.Principal).(*auth.Principal)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authenticated principal", nil)
				return
			}

			denial := enforcer.Check(r.Context(), principal.OrganizationID, resource)
			if denial != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusPaymentRequired)
				json.NewEncoder(w).Encode(denial)
				return
			}

			next(w, r)
		}
	}
}
