package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/engine/plans"
	"signalcrm/internal/engine/usage"
	"signalcrm/internal/pkg/errors"
	"signalcrm/internal/platform/auth"
	"signalcrm/internal/platform/repositories"
)

// UsageHandler serves the four analytics views to the dashboard. Everything
// but the plan-tier lookup is computed from the in-process recorder.
type UsageHandler struct {
	analytics *usage.Analytics
	orgs      *repositories.OrganizationRepository
}

func NewUsageHandler(analytics *usage.Analytics, orgs *repositories.OrganizationRepository) *UsageHandler {
	return &UsageHandler{analytics: analytics, orgs: orgs}
}

func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.analytics.Summary(principal.OrganizationID))
}

func (h *UsageHandler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 168 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "hours must be between 1 and 168", nil)
			return
		}
		hours = n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.analytics.TimeSeries(principal.OrganizationID, hours))
}

func (h *UsageHandler) Endpoints(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	stats := h.analytics.EndpointBreakdown(principal.OrganizationID)
	if stats == nil {
		stats = []usage.EndpointStat{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *UsageHandler) RateLimits(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	// Tier resolution failures degrade to the lowest tier rather than
	// failing the view; this is observability, not enforcement.
	rawTier, err := h.orgs.PlanTierOf(r.Context(), principal.OrganizationID)
	if err != nil {
		log.Error().Err(err).Str("org_id", principal.OrganizationID).Msg("plan tier lookup failed for rate limit view")
	}
	tier := plans.ParseTier(rawTier)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.analytics.RateLimitStatus(principal.OrganizationID, tier))
}
