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

// ContactHandler carries the one contact operation the metering core needs a
// real route for: creation, so the contact quota gate has something to gate.
// The rest of the contact surface lives in the CRM service.
type ContactHandler struct {
	contacts *repositories.ContactRepository
}

func NewContactHandler(contacts *repositories.ContactRepository) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

type createContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	var req createContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Contact name is required", nil)
		return
	}

	contact := &models.Contact{
		OrganizationID: principal.OrganizationID,
		Name:           req.Name,
		Email:          req.Email,
		Company:        req.Company,
		CreatedBy:      principal.UserID,
	}
	if err := h.contacts.Create(r.Context(), contact); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create contact", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(contact)
}
