package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"restaurant_ordering/internal/auth"
	"restaurant_ordering/internal/config"
	"restaurant_ordering/internal/database"
	"restaurant_ordering/internal/handlers"
	"restaurant_ordering/internal/jobs"
	"restaurant_ordering/internal/logger"
	"restaurant_ordering/internal/middleware"
	"restaurant_ordering/internal/migrations"
	"restaurant_ordering/internal/redis"
	"restaurant_ordering/internal/repository"
	"restaurant_ordering/internal/services"
	"restaurant_ordering/pkg/mailer"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	defaultLoc, _ := time.LoadLocation(cfg.DefaultTimezone)

	// Initialize database
	db, err := database.Initialize(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)

	if err := migrations.RunMigrations(context.Background(), db, log, false); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	// Redis is optional; without it every read goes to the database.
	var cache services.Cache
	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
	}
	if cfg.RedisURL != "" {
		redisClient, err := redis.Initialize(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, caching disabled")
		} else {
			defer redisClient.Close()
			cache = redisClient
			checks["redis"] = redisClient
		}
	}

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	mailClient := mailer.NewClient(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailSender, cfg.MailSenderName)

	// Initialize repositories
	branchRepo := repository.NewBranchRepository(db)
	userRepo := repository.NewUserRepository(db)
	pendingRepo := repository.NewPendingUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	menuRepo := repository.NewMenuItemRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	orderItemRepo := repository.NewOrderItemRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Initialize services
	orderService := services.NewOrderService(orderRepo, orderItemRepo, branchRepo, cache, defaultLoc, log)
	authService := services.NewAuthService(userRepo, pendingRepo, branchRepo, tokens, mailClient, services.AuthSettings{
		FrontendURL:     cfg.FrontendURL,
		VerificationTTL: cfg.VerificationTTL,
	}, log)
	catalogService := services.NewCatalogService(menuRepo, categoryRepo, branchRepo, cfg.UploadDir, log)
	branchService := services.NewBranchService(branchRepo, cache, log)
	reportService := services.NewReportService(reportRepo, branchRepo, cache, cfg.StatsCacheTTL, defaultLoc, log)

	scheduler := jobs.NewScheduler(log)
	if err := scheduler.SchedulePendingCleanup(cfg.PendingPurgeSchedule, authService); err != nil {
		log.WithError(err).Fatal("Failed to schedule pending user cleanup")
	}
	scheduler.Start()

	router := handlers.NewRouter(handlers.RouterDeps{
		Orders:      handlers.NewOrderHandler(orderService, log),
		Auth:        handlers.NewAuthHandler(authService, log),
		Catalog:     handlers.NewCatalogHandler(catalogService, log),
		Branch:      handlers.NewBranchHandler(branchService, reportService, log),
		Health:      handlers.NewHealthHandler(checks, log),
		Tokens:      tokens,
		OrderLimit:  middleware.NewIPRateLimiter(cfg.OrderRatePerMinute),
		CORSOrigins: cfg.CORSOrigins,
		UploadDir:   cfg.UploadDir,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.ServerPort).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	scheduler.Stop(ctx)
}
