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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-api/api/swagger"
	"github.com/noah-isme/school-api/internal/handler"
	"github.com/noah-isme/school-api/internal/middleware"
	"github.com/noah-isme/school-api/internal/repository"
	"github.com/noah-isme/school-api/internal/service"
	_ "github.com/noah-isme/school-api/migrations"
	"github.com/noah-isme/school-api/pkg/cache"
	"github.com/noah-isme/school-api/pkg/config"
	"github.com/noah-isme/school-api/pkg/database"
	"github.com/noah-isme/school-api/pkg/events"
	"github.com/noah-isme/school-api/pkg/logger"
	"github.com/noah-isme/school-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-api/pkg/storage"
	"github.com/noah-isme/school-api/pkg/validation"
)

// @title School Management API
// @version 1.0.0
// @description Accounts, academic structure, assessments and conflict-free session scheduling.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const exportPurgeInterval = time.Hour

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
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := migrate(ctx, db, cfg, logr); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
		return
	}
	if cfg.Database.AutoMigrate {
		if err := migrate(ctx, db, cfg, logr); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
	}

	if err := run(ctx, db, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func migrate(ctx context.Context, db *sqlx.DB, cfg *config.Config, logr *zap.Logger) error {
	migrator, err := database.NewMigrator(db.DB, cfg.Database.MigrationsDir, logr)
	if err != nil {
		return err
	}
	return migrator.Up(ctx)
}

func run(ctx context.Context, db *sqlx.DB, cfg *config.Config, logr *zap.Logger) error {
	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	cacheEnabled := cfg.Cache.Enabled
	var cacheRepo service.CacheRepository
	if cacheEnabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
			cacheEnabled = false
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.DefaultTTL, logr, cacheEnabled)

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.Enabled {
		nats, err := events.NewNatsPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logr)
		if err != nil {
			logr.Warn("nats unavailable, session events disabled", zap.Error(err))
		} else {
			publisher = nats
		}
	}
	defer publisher.Close()

	dispatcher := mail.NewDispatcher(mail.NewMailer(cfg.Mail, logr), cfg.Mail.Workers, cfg.Mail.MaxRetries, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	validate := validation.New(cfg.Policy)

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	classRepo := repository.NewClassRepository(db)
	programRepo := repository.NewProgramRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)

	authSvc := service.NewAuthService(userRepo, classRepo, dispatcher, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.Policy.PasswordResetTTL,
		Issuer:             cfg.JWT.Issuer,
		Audience:           []string{cfg.JWT.Audience},
		AppName:            cfg.Mail.AppName,
		FrontendBaseURL:    cfg.Mail.FrontendBaseURL,
	})
	sessionSvc := service.NewSessionService(sessionRepo, userRepo, subjectRepo, cacheSvc, metrics, publisher, validate, logr, service.SessionConfig{
		MinDuration:   cfg.Scheduling.MinSessionDuration,
		StatisticsTTL: cfg.Cache.StatisticsTTL,
	})
	userSvc := service.NewUserService(userRepo, sessionSvc, authSvc, cacheSvc, validate, logr)
	programSvc := service.NewProgramService(programRepo, validate, logr)

	var exportSvc *service.ExportService
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Warn("export storage unavailable, exports disabled", zap.Error(err))
	} else {
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(sessionSvc, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)
		go purgeExports(ctx, exportSvc, logr)
	}

	h := handlers{
		auth:        handler.NewAuthHandler(authSvc),
		users:       handler.NewUserHandler(userSvc),
		departments: handler.NewDepartmentHandler(service.NewDepartmentService(departmentRepo, validate, logr)),
		levels:      handler.NewLevelHandler(service.NewLevelService(levelRepo, departmentRepo, validate, logr)),
		classes:     handler.NewClassHandler(service.NewClassService(classRepo, levelRepo, programRepo, validate, logr)),
		programs:    handler.NewProgramHandler(programSvc),
		subjects:    handler.NewSubjectHandler(service.NewSubjectService(subjectRepo, programRepo, cacheSvc, validate, logr)),
		activities:  handler.NewActivityHandler(service.NewActivityService(activityRepo, subjectRepo, validate, logr)),
		grades:      handler.NewGradeHandler(service.NewGradeService(gradeRepo, userRepo, activityRepo, validate, logr)),
		absences: handler.NewAbsenceHandler(service.NewAbsenceService(
			absenceRepo, userRepo, classRepo, levelRepo, cacheSvc, cfg.Cache.StatisticsTTL, validate, logr,
		)),
	}
	if exportSvc != nil {
		h.sessions = handler.NewSessionHandler(sessionSvc, exportSvc)
		h.exports = handler.NewExportHandler(exportSvc)
	} else {
		h.sessions = handler.NewSessionHandler(sessionSvc, nil)
		h.exports = handler.NewExportHandler(nil)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	ops := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	if metrics != nil {
		r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
		r.GET("/metrics", ops.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), h, authSvc, userRepo, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeExports(ctx context.Context, exports *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(exportPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := exports.Purge(); err != nil {
				logr.Warn("export purge failed", zap.Error(err))
			}
		}
	}
}
