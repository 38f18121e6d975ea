package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/config"
	"github.com/songon-extension/access-server/internal/database"
	"github.com/songon-extension/access-server/internal/handler"
	"github.com/songon-extension/access-server/internal/jobs"
	"github.com/songon-extension/access-server/internal/middleware"
	"github.com/songon-extension/access-server/internal/notify"
	"github.com/songon-extension/access-server/internal/redis"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/service"
	"github.com/songon-extension/access-server/internal/sse"
	"github.com/songon-extension/access-server/internal/storage"
	_ "github.com/songon-extension/access-server/internal/storage/azure"
	_ "github.com/songon-extension/access-server/internal/storage/gcs"
	_ "github.com/songon-extension/access-server/internal/storage/local"
	_ "github.com/songon-extension/access-server/internal/storage/s3"
	"github.com/songon-extension/access-server/internal/telemetry"
	"github.com/songon-extension/access-server/internal/util"
	"github.com/songon-extension/access-server/internal/watermark"
)

// apiBodyLimit caps JSON and form bodies on the public API.
const apiBodyLimit = 64 << 10

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	store, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise document storage")
	}
	log.Info().Str("backend", cfg.Storage.Backend).Msg("document storage ready")

	secrets, err := util.NewSecretBox(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	emailSender, err := notify.NewEmailSender(&cfg.Email)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure email")
	}

	codeRepo := repository.NewAccessCodeRepository(db.DB)
	parcelleRepo := repository.NewParcelleRepository(db.DB)
	documentRepo := repository.NewDocumentRepository(db.DB)
	accessLogRepo := repository.NewAccessLogRepository(db.DB)
	codeRequestRepo := repository.NewCodeRequestRepository(db.DB)
	adminSessionRepo := repository.NewAdminSessionRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	accessLogService := service.NewAccessLogService(accessLogRepo, broker)
	defer accessLogService.Close()

	verifier := service.NewVerificationService(codeRepo, secrets)
	codeService := service.NewAccessCodeService(codeRepo, parcelleRepo, secrets)
	documentService := service.NewDocumentService(documentRepo, parcelleRepo, store)
	parcelleService := service.NewParcelleService(parcelleRepo, documentService)
	portfolioService := service.NewPortfolioService(verifier, parcelleRepo)
	deliveryService := service.NewDeliveryService(
		verifier, documentService, parcelleRepo, watermark.NewRenderer(), emailSender, accessLogService, &cfg.WhatsApp,
	)
	surveillanceService := service.NewSurveillanceService(verifier, parcelleRepo, accessLogService)
	codeRequestService := service.NewCodeRequestService(codeRequestRepo, broker)
	adminService := service.NewAdminService(
		adminSessionRepo, codeRepo, accessLogRepo, codeRequestRepo,
		cfg.AdminPasswordHash, cfg.AdminSessionSecret,
	)

	rateLimiter := service.NewRateLimiter(redisClient.Client)
	verifyLimit := middleware.NewIPRateLimitMiddleware(rateLimiter, service.RatePolicy{
		Scope: "verify", Max: config.VerifyRateLimitPerMin, Window: time.Minute,
	})
	codeRequestLimit := middleware.NewIPRateLimitMiddleware(rateLimiter, service.RatePolicy{
		Scope: "code_request", Max: config.CodeRequestRateLimit, Window: time.Hour,
	})
	adminSessionMiddleware := middleware.NewAdminSessionMiddleware(
		adminSessionRepo, cfg.AdminPasswordHash, cfg.AdminSessionSecret,
	)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(apiBodyLimit)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	publicHandler := handler.NewPublicHandler(
		verifier, portfolioService, parcelleService, documentService, deliveryService,
		surveillanceService, codeRequestService, verifyLimit.Handler, codeRequestLimit.Handler,
	)
	streamHandler := handler.NewAccessLogStreamHandler(broker, accessLogService)
	adminHandler := handler.NewAdminHandler(
		adminService, codeService, verifier, accessLogService, parcelleService, documentService,
		codeRequestService, streamHandler, adminSessionMiddleware.Handler, isProduction,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)
	r.Use(middleware.AuditContext)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimitMiddleware.Handler)
		r.Mount("/", publicHandler.Routes())
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(csrfMiddleware.Handler)
		r.Mount("/", adminHandler.Routes())
	})

	if cfg.StaticDir != "" {
		r.NotFound(handler.NewSiteHandler(cfg.StaticDir).ServeHTTP)
		log.Info().Str("dir", cfg.StaticDir).Msg("serving static site")
	}

	cleanupJob := jobs.NewCleanupJob(adminSessionRepo, codeService, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	telemetry.StartDBStatsCollector(statsCtx, db.DB)

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: config.ServerReadTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr()).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
