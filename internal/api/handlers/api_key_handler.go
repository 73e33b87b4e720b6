package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/engine/apikeys"
	"signalcrm/internal/pkg/errors"
	"signalcrm/internal/platform/audit"
	"signalcrm/internal/platform/auth"
	"signalcrm/internal/platform/models"
)

type APIKeyHandler struct {
	keys  *apikeys.Service
	audit *audit.Logger
}

func NewAPIKeyHandler(keys *apikeys.Service, auditLog *audit.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, audit: auditLog}
}

type createKeyRequest struct {
	Name          string   `json:"name"`
	Scopes        []string `json:"scopes"`
	ExpiresInDays int      `json:"expires_in_days"`
}

type createKeyResponse struct {
	Key      string         `json:"key"`
	Metadata *models.APIKey `json:"metadata"`
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Key name is required", nil)
		return
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{"*"}
	}

	var expiresAt *int64
	if req.ExpiresInDays > 0 {
		exp := time.Now().Add(time.Duration(req.ExpiresInDays) * 24 * time.Hour).Unix()
		expiresAt = &exp
	}

	rawKey, key, err := h.keys.Generate(r.Context(), principal.OrganizationID, principal.UserID, req.Name, req.Scopes, expiresAt)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create API key", nil)
		return
	}

	h.audit.Record(principal.OrganizationID, principal.UserID, "api_key.created", "api_key", key.ID,
		map[string]interface{}{"name": key.Name, "scopes": key.Scopes})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	// The raw key appears here and nowhere else, ever again.
	json.NewEncoder(w).Encode(createKeyResponse{Key: rawKey, Metadata: key})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)

	keys, err := h.keys.List(r.Context(), principal.OrganizationID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list API keys", nil)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keys)
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	keyID := params.ByName("key_id")

	key, err := h.keys.Revoke(r.Context(), principal.OrganizationID, keyID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to revoke API key", nil)
		return
	}
	if key == nil {
		// Covers both "no such key" and "someone else's key".
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found", nil)
		return
	}

	h.audit.Record(principal.OrganizationID, principal.UserID, "api_key.revoked", "api_key", keyID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := r.Context().Value(apiContext.Principal).(*auth.Principal)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	keyID := params.ByName("key_id")

	ok, err := h.keys.Delete(r.Context(), principal.OrganizationID, keyID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete API key", nil)
		return
	}
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found", nil)
		return
	}

	h.audit.Record(principal.OrganizationID, principal.UserID, "api_key.deleted", "api_key", keyID, nil)

	w.WriteHeader(http.StatusNoContent)
}
