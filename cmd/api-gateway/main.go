package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-platform-api/api/swagger"
	"github.com/noah-isme/edu-platform-api/internal/handler"
	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/repository"
	"github.com/noah-isme/edu-platform-api/internal/service"
	"github.com/noah-isme/edu-platform-api/pkg/cache"
	"github.com/noah-isme/edu-platform-api/pkg/config"
	"github.com/noah-isme/edu-platform-api/pkg/database"
	"github.com/noah-isme/edu-platform-api/pkg/jobs"
	"github.com/noah-isme/edu-platform-api/pkg/logger"
	"github.com/noah-isme/edu-platform-api/pkg/storage"
)

// @title Edu Platform API
// @version 1.0.0
// @description Classes, assignments, media and practice for students, teachers and parents.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	app, err := buildApp(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer app.shutdown()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	auth        *service.AuthService
	authHandler *handler.AuthHandler
	metrics     *service.MetricsService
	classes     *handler.ClassHandler
	assignments *handler.AssignmentHandler
	media       *handler.MediaHandler
	practice    *handler.PracticeHandler
	analytics   *handler.AnalyticsHandler
	reports     *handler.ReportHandler
	health      *handler.MetricsHandler
	queue       *jobs.Queue
}

func (a *application) shutdown() {
	if a.queue != nil {
		a.queue.Stop()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var (
		cacheRepo  service.CacheRepository
		redisStore *repository.CacheRepository
	)
	if redisClient != nil {
		redisStore = repository.NewCacheRepository(redisClient)
		cacheRepo = redisStore
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cacheRepo != nil)

	users := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	practiceRepo := repository.NewPracticeRepository(db)
	reportRepo := repository.NewReportJobRepository(db)

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	exports, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	classSvc := service.NewClassService(classRepo, validate, logr, service.ClassConfig{
		DefaultMaxStudents: cfg.Classes.DefaultMaxStudents,
		CodeAttempts:       cfg.Classes.CodeAttempts,
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, classRepo, cacheSvc, metrics, validate, logr)
	mediaSvc := service.NewMediaService(mediaRepo, classRepo, uploads,
		storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		cacheSvc, metrics, validate, logr, service.MediaConfig{
			APIPrefix:    cfg.APIPrefix,
			MaxFileBytes: cfg.Uploads.MaxFileSizeBytes,
			AllowedMIME: map[models.MediaType][]string{
				models.MediaTypeVideo:    cfg.Uploads.AllowedVideo,
				models.MediaTypeAudio:    cfg.Uploads.AllowedAudio,
				models.MediaTypeDocument: cfg.Uploads.AllowedDocument,
				models.MediaTypeImage:    cfg.Uploads.AllowedImage,
			},
		})
	practiceSvc := service.NewPracticeService(practiceRepo, users, classRepo, cacheSvc, metrics, validate, logr, cfg.Reports.CacheTTL)
	analyticsSvc := service.NewAnalyticsService(service.AnalyticsDeps{
		Users:       users,
		Classes:     classRepo,
		Practice:    practiceRepo,
		Assignments: assignmentRepo,
		Media:       mediaRepo,
	}, cacheSvc, metrics, logr, cfg.Reports.CacheTTL)

	app := &application{
		auth:        authSvc,
		authHandler: handler.NewAuthHandler(authSvc),
		metrics:     metrics,
		classes:     handler.NewClassHandler(classSvc),
		assignments: handler.NewAssignmentHandler(assignmentSvc),
		media:       handler.NewMediaHandler(mediaSvc),
		practice:    handler.NewPracticeHandler(practiceSvc),
		analytics:   handler.NewAnalyticsHandler(analyticsSvc),
		reports:     handler.NewReportHandler(nil),
	}

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisStore != nil {
		checks["redis"] = redisStore.Ping
	}
	app.health = handler.NewMetricsHandler(metrics.Handler(), checks)

	if !cfg.Reports.ExportsEnabled {
		return app, nil
	}

	exporter := service.NewExportService(analyticsSvc, exports,
		storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL}, logr)
	worker := service.NewReportWorker(reportRepo, exporter, cfg.Reports.WorkerRetries, logr)
	app.queue = jobs.NewQueue("report-exports", worker.Handle, jobs.QueueConfig{
		Workers:       cfg.Reports.WorkerConcurrency,
		MaxRetries:    cfg.Reports.WorkerRetries,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: 30 * time.Second,
		Logger:        logr,
	})
	app.queue.Start(ctx)

	reportSvc := service.NewReportService(reportRepo, users, classRepo, app.queue, exporter, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)
	app.reports = handler.NewReportHandler(reportSvc)

	return app, nil
}
