package handlers

import (
	"encoding/json"
	"net/http"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/pkg/errors"
	"signalcrm/internal/platform/auth"
	"signalcrm/internal/platform/models"
	"signalcrm/internal/platform/repositories"
)

// SignalHandler ingests intent signals. Like contacts, only creation is
// routed here; signal volume is the one monthly-metered resource.
type SignalHandler struct {
	signals *repositories.SignalRepository
}

func NewSignalHandler(signals *repositories.SignalRepository) *SignalHandler {
	return &SignalHandler{signals: signals}
}

type createSignalRequest struct {
	ContactID string          `json:"contact_id"`
	Kind      string          `json:"kind"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *SignalHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	var req createSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Kind == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Signal kind is required", nil)
		return
	}

	signal := &models.Signal{
		OrganizationID: principal.OrganizationID,
		ContactID:      req.ContactID,
		Kind:           req.Kind,
		Source:         req.Source,
		Payload:        string(req.Payload),
	}
	if err := h.signals.Create(r.Context(), signal); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to record signal", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(signal)
}
