package main

import (
	"fmt"
	"log"
	"net/http"

	"signalcrm/internal/api"
	"signalcrm/internal/api/handlers"
	"signalcrm/internal/api/middleware"
	"signalcrm/internal/engine/apikeys"
	"signalcrm/internal/engine/quota"
	"signalcrm/internal/engine/usage"
	"signalcrm/internal/pkg/logger"
	"signalcrm/internal/platform/audit"
	"signalcrm/internal/platform/auth"
	"signalcrm/internal/platform/config"
	"signalcrm/internal/platform/database"
	"signalcrm/internal/platform/repositories"
	"signalcrm/internal/workers"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := database.NewStore(db)

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	contactRepo := repositories.NewContactRepository(db)
	signalRepo := repositories.NewSignalRepository(db)
	usageStore := repositories.NewUsageStore(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	keySvc := apikeys.NewService(apiKeyRepo)
	auditLog := audit.NewLogger(db)
	enforcer := quota.NewEnforcer(usageStore, cfg.Billing.UpgradeURL, cfg.Quota.StoreTimeout)

	// The request recorder is constructed once here and handed to everything
	// that needs it; there is no package-level buffer.
	recorder := usage.NewRecorder(cfg.Usage.Retention)
	analytics := usage.NewAnalytics(recorder)
	workers.StartUsageSweeper(recorder, cfg.Usage.SweepInterval)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, tokenSvc)
	apiKeyHandler := handlers.NewAPIKeyHandler(keySvc, auditLog)
	usageHandler := handlers.NewUsageHandler(analytics, orgRepo)
	contactHandler := handlers.NewContactHandler(contactRepo)
	signalHandler := handlers.NewSignalHandler(signalRepo)
	healthHandler := handlers.NewHealthHandler(store)

	// Middleware
	authenticator := middleware.NewAuthenticator(keySvc, tokenSvc)
	rateLimiter := middleware.NewRateLimiter()

	deps := &api.Dependencies{
		AuthHandler:    authHandler,
		APIKeyHandler:  apiKeyHandler,
		UsageHandler:   usageHandler,
		ContactHandler: contactHandler,
		SignalHandler:  signalHandler,
		HealthHandler:  healthHandler,
		Authenticator:  authenticator,
		RateLimiter:    rateLimiter,
		Enforcer:       enforcer,
		Recorder:       recorder,
		RateLimits:     cfg.RateLimit,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
