package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuskit/campus-core-api/api/swagger"
	"github.com/campuskit/campus-core-api/internal/handler"
	"github.com/campuskit/campus-core-api/internal/middleware"
	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/repository"
	"github.com/campuskit/campus-core-api/internal/service"
	"github.com/campuskit/campus-core-api/pkg/cache"
	"github.com/campuskit/campus-core-api/pkg/config"
	"github.com/campuskit/campus-core-api/pkg/database"
	"github.com/campuskit/campus-core-api/pkg/jobs"
	"github.com/campuskit/campus-core-api/pkg/logger"
	corsmiddleware "github.com/campuskit/campus-core-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/campus-core-api/pkg/middleware/requestid"
	"github.com/campuskit/campus-core-api/pkg/storage"
)

// @title Campus Core API
// @version 1.0.0
// @description Student lifecycle and financial reconciliation engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboards will recompute on every request", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	proofStore, err := storage.NewLocalStorage(cfg.Proofs.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init proof storage", "error", err)
	}
	statementStore, err := storage.NewLocalStorage(cfg.Statements.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init statement storage", "error", err)
	}
	proofSigner := storage.NewSignedURLSigner(cfg.Proofs.SignedURLSecret, cfg.Proofs.SignedURLTTL)
	statementSigner := storage.NewSignedURLSigner(cfg.Statements.SignedURLSecret, cfg.Statements.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	feePolicyRepo := repository.NewFeePolicyRepository(db)
	resultRepo := repository.NewResultRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	statementRepo := repository.NewStatementRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-core-api",
		Audience:           []string{"campus-portal"},
	})
	// CacheRepository methods tolerate a nil receiver, so cacheRepo can be
	// handed out unconditionally even when Redis is unavailable.
	applicationSvc := service.NewApplicationService(applicationRepo, courseRepo, cacheRepo, validate, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, applicationRepo, courseRepo, subjectRepo, cacheRepo, cfg.Registration, validate, logr)
	financeSvc := service.NewFinanceService(paymentRepo, registrationRepo, feePolicyRepo, proofStore, proofSigner, cacheRepo, cfg.Proofs, validate, logr)
	catalogSvc := service.NewCatalogService(subjectRepo, courseRepo, logr)
	metricsSvc := service.NewMetricsService()

	dashboardSvc := service.NewDashboardService(applicationRepo, registrationRepo, paymentRepo, subjectRepo, resultRepo, attendanceRepo, timetableRepo, userRepo, financeSvc, cacheRepo, cfg.Dashboard, logr)

	statementExport := service.NewStatementExportService(paymentRepo, registrationRepo, financeSvc, statementStore, statementSigner, service.StatementExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Statements.SignedURLTTL,
	}, logr, nil, nil)
	statementWorker := service.NewStatementWorker(statementRepo, statementExport, cfg.Statements.WorkerRetries, logr)
	statementQueue := jobs.NewQueue("statements", statementWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Statements.WorkerConcurrency,
		MaxRetries: cfg.Statements.WorkerRetries,
		Logger:     logr,
	})
	statementSvc := service.NewStatementService(statementRepo, statementQueue, statementExport, logr, service.StatementServiceConfig{
		ResultTTL:       cfg.Statements.SignedURLTTL,
		CleanupInterval: cfg.Statements.CleanupInterval,
		MaxRetries:      cfg.Statements.WorkerRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Statements.Enabled {
		statementQueue.Start(ctx)
		defer statementQueue.Stop()
		statementSvc.RecoverPendingJobs(ctx)
		statementSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	financeHandler := handler.NewFinanceHandler(financeSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	statementHandler := handler.NewStatementHandler(statementSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Signed-token downloads carry their own authorization.
	api.GET("/finance/proofs/:token", financeHandler.DownloadProof)
	api.GET("/finance/statements/download/:token", statementHandler.Download)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/logout-all", authHandler.LogoutAll)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/courses", catalogHandler.ListCourses)
	authed.GET("/courses/:code", catalogHandler.GetCourse)
	authed.GET("/subjects", catalogHandler.ListSubjects)
	authed.GET("/subjects/:code", catalogHandler.GetSubject)

	authed.GET("/dashboard", dashboardHandler.Dashboard)

	authed.GET("/applications", applicationHandler.List)
	authed.POST("/applications", middleware.RequireRoles(models.RoleStudent), applicationHandler.Submit)
	authed.PATCH("/applications/:id/decision", middleware.RequireRoles(models.RoleAdmin), applicationHandler.Decide)

	authed.POST("/registrations", middleware.RequireRoles(models.RoleStudent), registrationHandler.Finalize)
	authed.GET("/registrations/me", middleware.RequireRoles(models.RoleStudent), registrationHandler.Me)

	authed.GET("/finance/payments", middleware.RequireRoles(models.RoleFinance, models.RoleAdmin), financeHandler.ListPayments)
	authed.GET("/finance/payments/me", middleware.RequireRoles(models.RoleStudent), financeHandler.MyPayments)
	authed.POST("/finance/payments", middleware.RequireRoles(models.RoleStudent), financeHandler.SubmitPayment)
	authed.PATCH("/finance/payments/:id/decision", middleware.RequireRoles(models.RoleFinance), financeHandler.DecidePayment)
	authed.POST("/finance/payments/:id/proof", middleware.RequireRoles(models.RoleStudent), financeHandler.AttachProof)
	authed.GET("/finance/payments/:id/proof-url", middleware.RequireRoles(models.RoleStudent, models.RoleFinance, models.RoleAdmin), financeHandler.ProofURL)
	authed.GET("/finance/summary/me", middleware.RequireRoles(models.RoleStudent), financeHandler.MySummary)
	authed.GET("/finance/summary/:id", middleware.RequireRoles(models.RoleFinance, models.RoleAdmin), financeHandler.StudentSummary)

	authed.POST("/finance/statements", middleware.RequireRoles(models.RoleStudent, models.RoleFinance, models.RoleAdmin), statementHandler.Generate)
	authed.GET("/finance/statements/:id", middleware.RequireRoles(models.RoleStudent, models.RoleFinance, models.RoleAdmin), statementHandler.Status)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
