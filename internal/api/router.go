package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/api/handlers"
	"signalcrm/internal/api/middleware"
	"signalcrm/internal/engine/quota"
	"signalcrm/internal/engine/usage"
	"signalcrm/internal/platform/config"
)

type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	APIKeyHandler  *handlers.APIKeyHandler
	UsageHandler   *handlers.UsageHandler
	ContactHandler *handlers.ContactHandler
	SignalHandler  *handlers.SignalHandler
	HealthHandler  *handlers.HealthHandler

	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Enforcer      *quota.Enforcer
	Recorder      *usage.Recorder
	RateLimits    config.RateLimitConfig
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	auth := deps.Authenticator.Handle
	rl := deps.RateLimiter
	track := func(endpoint string) func(http.HandlerFunc) http.HandlerFunc {
		return middleware.Track(deps.Recorder, endpoint)
	}

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	// Session login; everything below requires a principal.
	router.POST("/api/v1/auth/login", wrap(deps.AuthHandler.Login))

	// API key management
	router.POST("/api/v1/api-keys",
		chain(deps.APIKeyHandler.Create,
			auth,
			track("/api/v1/api-keys"),
			rl.Limit("api_write", deps.RateLimits.APIWritePerMinute),
			middleware.RequireScope("keys:manage")))
	router.GET("/api/v1/api-keys",
		chain(deps.APIKeyHandler.List,
			auth,
			track("/api/v1/api-keys"),
			rl.Limit("api_read", deps.RateLimits.APIReadPerMinute),
			middleware.RequireScope("keys:manage")))
	router.POST("/api/v1/api-keys/:key_id/revoke",
		chain(deps.APIKeyHandler.Revoke,
			auth,
			track("/api/v1/api-keys/:key_id/revoke"),
			rl.Limit("api_write", deps.RateLimits.APIWritePerMinute),
			middleware.RequireScope("keys:manage")))
	router.DELETE("/api/v1/api-keys/:key_id",
		chain(deps.APIKeyHandler.Delete,
			auth,
			track("/api/v1/api-keys/:key_id"),
			rl.Limit("api_write", deps.RateLimits.APIWritePerMinute),
			middleware.RequireScope("keys:manage")))

	// Usage analytics views
	router.GET("/api/v1/usage/summary",
		chain(deps.UsageHandler.Summary,
			auth,
			track("/api/v1/usage/summary"),
			rl.Limit("analytics", deps.RateLimits.AnalyticsPerMinute),
			middleware.RequireScope("usage:read")))
	router.GET("/api/v1/usage/timeseries",
		chain(deps.UsageHandler.TimeSeries,
			auth,
			track("/api/v1/usage/timeseries"),
			rl.Limit("analytics", deps.RateLimits.AnalyticsPerMinute),
			middleware.RequireScope("usage:read")))
	router.GET("/api/v1/usage/endpoints",
		chain(deps.UsageHandler.Endpoints,
			auth,
			track("/api/v1/usage/endpoints"),
			rl.Limit("analytics", deps.RateLimits.AnalyticsPerMinute),
			middleware.RequireScope("usage:read")))
	router.GET("/api/v1/usage/rate-limits",
		chain(deps.UsageHandler.RateLimits,
			auth,
			track("/api/v1/usage/rate-limits"),
			rl.Limit("analytics", deps.RateLimits.AnalyticsPerMinute),
			middleware.RequireScope("usage:read")))

	// Resource-creating routes carry the plan-quota gates.
	router.POST("/api/v1/contacts",
		chain(deps.ContactHandler.Create,
			auth,
			track("/api/v1/contacts"),
			rl.Limit("api_write", deps.RateLimits.APIWritePerMinute),
			middleware.RequireScope("contacts:write"),
			middleware.QuotaGate(deps.Enforcer, quota.ResourceContacts)))
	router.POST("/api/v1/signals",
		chain(deps.SignalHandler.Create,
			auth,
			track("/api/v1/signals"),
			rl.Limit("ingest", deps.RateLimits.IngestPerMinute),
			middleware.RequireScope("signals:write"),
			middleware.QuotaGate(deps.Enforcer, quota.ResourceSignals)))

	return router
}

// Helper function to chain middlewares; the first listed runs outermost.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
