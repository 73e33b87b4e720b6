package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/engine/apikeys"
	"signalcrm/internal/platform/auth"
	"signalcrm/internal/platform/config"
	"signalcrm/internal/platform/repositories"
)

func setupKeyService(t *testing.T) *apikeys.Service {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	query := `
	CREATE TABLE api_keys (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1,
		last_used_at INTEGER,
		expires_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	return apikeys.NewService(repositories.NewAPIKeyRepository(db))
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *apikeys.Service, *auth.TokenService) {
	keySvc := setupKeyService(t)
	tokenSvc := auth.NewTokenService(config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	return NewAuthenticator(keySvc, tokenSvc), keySvc, tokenSvc
}

// capturePrincipal is a terminal handler that stores the request principal
// for assertions.
func capturePrincipal(dst **auth.Principal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := r.Context().Value(apiContext.Principal).(*auth.Principal); ok {
			*dst = p
		}
		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	authn, _, _ := newTestAuthenticator(t)

	var principal *auth.Principal
	handler := authn.Handle(capturePrincipal(&principal))

	req := httptest.NewRequest("GET", "/api/v1/contacts", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", rr.Code)
	}
	if principal != nil {
		t.Error("Handler ran without credentials")
	}
}

func TestAuthenticateWithAPIKey(t *testing.T) {
	authn, keySvc, _ := newTestAuthenticator(t)

	rawKey, key, err := keySvc.Generate(context.Background(), "org_1", "usr_1", "Test", []string{"contacts:write"}, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var principal *auth.Principal
	handler := authn.Handle(capturePrincipal(&principal))

	t.Run("XAPIKeyHeader", func(t *testing.T) {
		principal = nil
		req := httptest.NewRequest("GET", "/api/v1/contacts", nil)
		req.Header.Set("X-API-Key", rawKey)
		rr := httptest.NewRecorder()
		handler(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rr.Code)
		}
		if principal == nil {
			t.Fatal("No principal attached")
		}
		if principal.OrganizationID != "org_1" || principal.KeyID != key.ID || !principal.ViaAPIKey {
			t.Errorf("Principal = %+v", principal)
		}
	})

	t.Run("BearerHeader", func(t *testing.T) {
		principal = nil
		req := httptest.NewRequest("GET", "/api/v1/contacts", nil)
		req.Header.Set("Authorization", "Bearer "+rawKey)
		rr := httptest.NewRecorder()
		handler(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rr.Code)
		}
		if principal == nil || !principal.ViaAPIKey {
			t.Errorf("Bearer API key did not produce an API key principal: %+v", principal)
		}
	})
}

func TestAuthenticateRejectsBadAPIKey(t *testing.T) {
	authn, keySvc, _ := newTestAuthenticator(t)

	rawKey, key, err := keySvc.Generate(context.Background(), "org_1", "usr_1", "Doomed", []string{"*"}, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := keySvc.Revoke(context.Background(), "org_1", key.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	var principal *auth.Principal
	handler := authn.Handle(capturePrincipal(&principal))

	for name, credential := range map[string]string{
		"Revoked": rawKey,
		"Unknown": apikeys.SecretPrefix + "000000000000000000000000000000000000000000000000",
	} {
		t.Run(name, func(t *testing.T) {
			principal = nil
			req := httptest.NewRequest("GET", "/api/v1/contacts", nil)
			req.Header.Set("X-API-Key", credential)
			rr := httptest.NewRecorder()
			handler(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("Status = %d, want 401", rr.Code)
			}
			if principal != nil {
				t.Error("Handler ran with a rejected key")
			}
		})
	}
}

func TestAuthenticateWithSessionToken(t *testing.T) {
	authn, _, tokenSvc := newTestAuthenticator(t)

	token, err := tokenSvc.GenerateAccessToken("usr_1", "org_1", "admin", "admin@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	var principal *auth.Principal
	handler := authn.Handle(capturePrincipal(&principal))

	req := httptest.NewRequest("GET", "/api/v1/usage/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rr.Code)
	}
	if principal == nil {
		t.Fatal("No principal attached")
	}
	if principal.OrganizationID != "org_1" || principal.UserID != "usr_1" || principal.ViaAPIKey {
		t.Errorf("Principal = %+v", principal)
	}
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	authn, _, _ := newTestAuthenticator(t)

	other := auth.NewTokenService(config.JWTConfig{Secret: "different-secret", AccessTokenTTL: time.Hour})
	forged, err := other.GenerateAccessToken("usr_1", "org_1", "admin", "admin@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	handler := authn.Handle(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler ran with a forged token")
	})

	req := httptest.NewRequest("GET", "/api/v1/usage/summary", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", rr.Code)
	}
}

func requestWithPrincipal(method, target string, p *auth.Principal) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(context.WithValue(req.Context(), apiContext.Principal, p))
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name       string
		principal  *auth.Principal
		wantStatus int
	}{
		{
			name:       "ExactScope",
			principal:  &auth.Principal{OrganizationID: "org_1", Scopes: []string{"contacts:write"}, ViaAPIKey: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Wildcard",
			principal:  &auth.Principal{OrganizationID: "org_1", Scopes: []string{"*"}, ViaAPIKey: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "MissingScope",
			principal:  &auth.Principal{OrganizationID: "org_1", Scopes: []string{"usage:read"}, ViaAPIKey: true},
			wantStatus: http.StatusForbidden,
		},
		{
			// Session principals carry no scopes and pass anyway.
			name:       "Session",
			principal:  &auth.Principal{OrganizationID: "org_1", UserID: "usr_1"},
			wantStatus: http.StatusOK,
		},
	}

	gate := RequireScope("contacts:write")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := gate(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			handler(rr, requestWithPrincipal("POST", "/api/v1/contacts", tt.principal))

			if rr.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireScopeNoPrincipal(t *testing.T) {
	handler := RequireScope("contacts:write")(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler ran without a principal")
	})

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest("POST", "/api/v1/contacts", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", rr.Code)
	}
}
