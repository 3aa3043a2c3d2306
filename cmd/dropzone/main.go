package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dropzone-hq/dropzone/internal/aircraft"
	"github.com/dropzone-hq/dropzone/internal/app"
	"github.com/dropzone-hq/dropzone/internal/audit"
	"github.com/dropzone-hq/dropzone/internal/auth"
	"github.com/dropzone-hq/dropzone/internal/dashboard"
	"github.com/dropzone-hq/dropzone/internal/dictionaries"
	"github.com/dropzone-hq/dropzone/internal/equipment"
	"github.com/dropzone-hq/dropzone/internal/files"
	"github.com/dropzone-hq/dropzone/internal/jumps"
	"github.com/dropzone-hq/dropzone/internal/jumptypes"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/manifests"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/platform/cache"
	"github.com/dropzone-hq/dropzone/internal/platform/db"
	"github.com/dropzone-hq/dropzone/internal/platform/storage"
	"github.com/dropzone-hq/dropzone/internal/rbac"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/tandems"
	"github.com/dropzone-hq/dropzone/internal/users"
	"github.com/dropzone-hq/dropzone/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		if err := runCommand(ctx, os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			stop()
			os.Exit(1)
		}
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "dropzone_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	locker := shared.NewLocker(redisClient, 10*time.Second)

	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger)

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	tempTokens := auth.NewTempTokenStore(redisClient, cfg.TempTokenTTL)
	telegramVerifier := auth.NewTelegramVerifier(cfg.TelegramBotToken)
	authService := auth.NewService(usersRepo, telegramVerifier, tokenManager, tempTokens)

	rbacService := rbac.NewService(usersService, tokenManager, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Metrics: metrics}

	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, rbacMiddleware, cfg.TelegramBotUsername)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	dictionariesService := dictionaries.NewService(dictionaries.NewRepository(pool))
	dictionariesHandler := dictionaries.NewHandler(logger, dictionariesService, rbacMiddleware)

	aircraftService := aircraft.NewService(aircraft.NewRepository(pool))
	aircraftHandler := aircraft.NewHandler(logger, aircraftService, rbacMiddleware)

	jumpTypesService := jumptypes.NewService(jumptypes.NewRepository(pool))
	jumpTypesHandler := jumptypes.NewHandler(logger, jumpTypesService, rbacMiddleware)

	equipmentService := equipment.NewService(equipment.NewRepository(pool), dictionariesService)
	equipmentHandler := equipment.NewHandler(logger, equipmentService, rbacMiddleware)

	loadsService := loads.NewService(loads.NewRepository(pool), aircraftService, logger, metrics)
	loadsHandler := loads.NewHandler(logger, loadsService, rbacMiddleware)

	jumpsRepo := jumps.NewRepository(pool)
	jumpsService := jumps.NewService(jumpsRepo, usersService, jumpTypesService, loadsService, locker, logger, metrics)
	jumpsHandler := jumps.NewHandler(logger, jumpsService, rbacMiddleware)

	tandemsService := tandems.NewService(tandems.NewRepository(pool), idempotencyStore, auditLogger, logger)
	tandemsHandler := tandems.NewHandler(logger, tandemsService, rbacMiddleware)

	manifestsService := manifests.NewService(manifests.NewRepository(pool), jumpTypesService, tandemsService,
		loadsService, jumpsRepo, approvalRecorder, idempotencyStore, logger, metrics)
	manifestsHandler := manifests.NewHandler(logger, manifestsService, rbacMiddleware)

	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), logger)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	objectStore, err := storage.New(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		BaseURL:   cfg.FilesBaseURL,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		logger.Error("connect object storage", slog.Any("error", err))
		os.Exit(1)
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn("ensure bucket", slog.Any("error", err))
	}
	filesService := files.NewService(objectStore, logger)
	filesHandler := files.NewHandler(logger, filesService, rbacMiddleware)

	auditService := audit.NewService(audit.NewRepository(pool), logger)
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	permissionsHandler := rbac.NewPermissionsHandler(rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Pool:           pool,

		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		DictionariesHandler: dictionariesHandler,
		AircraftHandler:     aircraftHandler,
		JumpTypesHandler:    jumpTypesHandler,
		EquipmentHandler:    equipmentHandler,
		LoadsHandler:        loadsHandler,
		JumpsHandler:        jumpsHandler,
		ManifestsHandler:    manifestsHandler,
		TandemsHandler:      tandemsHandler,
		DashboardHandler:    dashboardHandler,
		FilesHandler:        filesHandler,
		AuditHandler:        auditHandler,
		JobsHandler:         jobsHandler,
		PermissionsHandler:  permissionsHandler,

		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
