package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/helvetio/marketplace-backend/internal/config"
	"github.com/helvetio/marketplace-backend/internal/db"
	httpHandlers "github.com/helvetio/marketplace-backend/internal/http/handlers"
	httpRouter "github.com/helvetio/marketplace-backend/internal/http/router"
	"github.com/helvetio/marketplace-backend/internal/logger"
	"github.com/helvetio/marketplace-backend/internal/mediation"
	"github.com/helvetio/marketplace-backend/internal/payment"
	"github.com/helvetio/marketplace-backend/internal/repository"
	"github.com/helvetio/marketplace-backend/internal/service"
	"github.com/helvetio/marketplace-backend/internal/storage"
	"github.com/helvetio/marketplace-backend/internal/ws"
)

func main() {
	// Context cancelled on SIGINT/SIGTERM drives graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load configuration: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: failed to connect to the database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: failed to prepare evidence storage: %v", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(dbConn)
	serviceRepo := repository.NewServiceRepository(dbConn)
	bookingRepo := repository.NewBookingRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// External capabilities.
	paymentClient := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentTimeout)
	mediationClient := mediation.NewClient(cfg.MediationBaseURL, cfg.MediationModel, cfg.MediationTimeout)

	// Websockets deliver notifications; persistence happens before the push.
	hub := ws.NewHub()
	go hub.Run()

	notificationService := service.NewNotificationService(notificationRepo, hub)

	// Services.
	authService := service.NewAuthService(userRepo, tokenManager)
	availabilityService := service.NewAvailabilityService(bookingRepo, serviceRepo, nil)
	listingService := service.NewListingService(serviceRepo, availabilityService)
	escrowService := service.NewEscrowService(escrowRepo, disputeRepo, paymentClient, notificationService)
	bookingService := service.NewBookingService(
		serviceRepo,
		bookingRepo,
		userRepo,
		availabilityService,
		escrowService,
		notificationService,
		service.DepositPolicy{
			GrowthPercent: cfg.DepositPercentGrowth,
			SecurePercent: cfg.DepositPercentSecure,
		},
	)
	disputeService := service.NewDisputeService(
		disputeRepo,
		bookingRepo,
		escrowService,
		mediationClient,
		mediationClient,
		notificationService,
		service.PhaseWindows{
			Phase1: cfg.DisputePhase1Window,
			Phase2: cfg.DisputePhase2Window,
			Phase3: cfg.DisputePhase3Window,
		},
		nil,
	)

	// HTTP handlers.
	authHandler := httpHandlers.NewAuthHandler(authService)
	listingHandler := httpHandlers.NewListingHandler(listingService)
	bookingHandler := httpHandlers.NewBookingHandler(bookingService)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService, bookingService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService, evidenceStorage)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg,
		authHandler, listingHandler, bookingHandler, escrowHandler,
		disputeHandler, notificationHandler, wsHandler, healthHandler,
		tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown error: %v", err)
		}
	}()

	log.Printf("main: HTTP server listening on port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server exited with error: %v", err)
	}
}

func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: error closing database: %v", err)
	}
}
