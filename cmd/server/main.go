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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/fieldreport/reporting-api/docs"
	"github.com/fieldreport/reporting-api/internal/api"
	"github.com/fieldreport/reporting-api/internal/api/middleware"
	"github.com/fieldreport/reporting-api/internal/core/service"
	"github.com/fieldreport/reporting-api/internal/infrastructure/config"
	"github.com/fieldreport/reporting-api/internal/infrastructure/db/mongo"
	"github.com/fieldreport/reporting-api/internal/infrastructure/db/postgres"
	"github.com/fieldreport/reporting-api/internal/infrastructure/db/redis"
	"github.com/fieldreport/reporting-api/internal/infrastructure/http/handlers"
	"github.com/fieldreport/reporting-api/internal/infrastructure/queue"
	"github.com/fieldreport/reporting-api/internal/infrastructure/storage"
	"github.com/fieldreport/reporting-api/pkg/logger"
)

// @title Field Reporting API
// @version 1.0
// @description Accounts, authentication and field report submission.
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Service: "reporting-api"})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "reporting-api",
		Env:     cfg.Env,
	})

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid civil timezone")
	}

	// --- Relational store ---
	db, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// --- Audit trail ---
	mongoClient, mongoDB, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "reporting-api",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer func() {
		if err := mongo.Disconnect(mongoClient, shutdownTimeout); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	auditRepo := mongo.NewAuditRepository(mongoDB)
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure audit indexes")
	}

	// --- Idempotency keys ---
	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	photos, err := storage.NewPhotoStore(cfg.Reports.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	// The dispatcher outlives the request context so queued events drain after shutdown starts.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditRepo, logger.Component("audit"))
	dispatcher.Start(auditCtx)

	userRepo := postgres.NewUserRepository(db)
	reportRepo := postgres.NewReportRepository(db)
	idem := redis.NewIdempotencyStore(rdb, cfg.Reports.IdempotencyTTL)

	tokens := service.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(userRepo, tokens, dispatcher, logger.Component("auth"))
	userService := service.NewUserService(userRepo, dispatcher, service.BootstrapAdmin{
		Username: cfg.Auth.AdminUser,
		Password: cfg.Auth.AdminPassword,
	}, logger.Component("users"))
	reportService := service.NewReportService(reportRepo, photos, idem, dispatcher, loc, logger.Component("reports"))

	if err := userService.EnsureInitialAdmin(ctx); err != nil {
		log.Error().Err(err).Msg("initial admin not created")
	}

	limiter := middleware.NewLoginLimiter(middleware.LoginLimiterConfig{
		PerMinute: cfg.Auth.LoginRatePerMin,
		Burst:     cfg.Auth.LoginBurst,
	}, logger.Component("ratelimit"))
	defer limiter.Stop()

	e := api.NewRouter(api.Deps{
		Log:           log,
		Tokens:        tokens,
		Users:         userRepo,
		AuthService:   authService,
		UserService:   userService,
		ReportService: reportService,
		LoginLimiter:  limiter,
		UploadDir:     photos.Dir(),
		MaxUploadMB:   cfg.Reports.MaxUploadMB,
		Readiness: map[string]handlers.Pinger{
			"postgres": handlers.PostgresPinger(db),
			"mongo":    handlers.MongoPinger(mongoDB),
			"redis":    handlers.RedisPinger(rdb),
		},
		Registerer: prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
		Swagger:    !cfg.IsProduction(),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	stopAudit()
	dispatcher.Wait()
	log.Info().Msg("server stopped")
}
