package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nitj-alumni/alumni-erp-api/internal/cache"
	"github.com/nitj-alumni/alumni-erp-api/internal/handler"
	internalmiddleware "github.com/nitj-alumni/alumni-erp-api/internal/middleware"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
	"github.com/nitj-alumni/alumni-erp-api/internal/server"
	"github.com/nitj-alumni/alumni-erp-api/internal/service"
	"github.com/nitj-alumni/alumni-erp-api/internal/validation"
	rediscache "github.com/nitj-alumni/alumni-erp-api/pkg/cache"
	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
	"github.com/nitj-alumni/alumni-erp-api/pkg/logger"
	"github.com/nitj-alumni/alumni-erp-api/pkg/mailer"
	"github.com/nitj-alumni/alumni-erp-api/pkg/profiling"
	"github.com/nitj-alumni/alumni-erp-api/pkg/storage"
	"github.com/nitj-alumni/alumni-erp-api/pkg/tracing"
)

// @title Alumni ERP API
// @version 1.0.0
// @description Alumni certificate requests, feedback survey and admin review
// @BasePath /
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	stopProfiling, err := profiling.Start(cfg, logr)
	if err != nil {
		return err
	}
	defer stopProfiling()

	stores, err := server.OpenStores(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			logr.Warn("close stores", zap.Error(err))
		}
	}()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{"database": stores.Ready}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := rediscache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, assigned-list cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	validate := validation.New()
	authSvc := service.NewAuthService(stores.Users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	verificationSvc, err := newVerificationService(cfg, metrics, logr)
	if err != nil {
		return err
	}
	verificationSvc.StartCleanup(ctx)

	relay := mailer.WithBreaker(mailer.NewSMTPMailer(cfg.Notifications), "smtp", 30*time.Second, logr)
	notificationSvc := service.NewNotificationService(relay, metrics, service.NotificationConfig{
		Enabled:    cfg.Notifications.Enabled,
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
	}, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	admins := cache.NewAdminDirectory(stores.Users, cfg.Cache.AdminDirectoryTTL, logr)
	submissionSvc := service.NewSubmissionService(stores.Requests, admins, verificationSvc, cacheSvc, metrics, validate, logr)
	reviewSvc := service.NewReviewService(stores.Requests, cacheSvc, notificationSvc, metrics, logr)

	var limiter *internalmiddleware.RateLimiter
	if cfg.Submissions.RateLimit > 0 {
		limiter = internalmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.Submissions.RateLimit), cfg.Submissions.RateBurst)
	}

	router := server.NewRouter(cfg, server.Deps{
		Logger:        logr,
		Metrics:       metrics,
		Tokens:        authSvc,
		SubmitLimiter: limiter,
		Auth:          handler.NewAuthHandler(authSvc),
		Requests:      handler.NewRequestHandler(submissionSvc, reviewSvc, logr),
		Verification:  handler.NewVerificationHandler(verificationSvc),
		Observe:       handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("db_driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newVerificationService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.VerificationService, error) {
	vcfg := service.VerificationConfig{
		Enabled:         cfg.Verification.Enabled,
		URLPrefix:       cfg.APIPrefix + "/verifications",
		RetainFor:       cfg.Verification.SignedURLTTL,
		CleanupInterval: cfg.Verification.CleanupInterval,
	}
	if !vcfg.Enabled {
		return service.NewVerificationService(nil, nil, nil, metrics, vcfg, logr), nil
	}
	var store interface {
		Save(name string, data []byte) (string, error)
		Read(name string) ([]byte, error)
	}
	var err error
	switch cfg.Verification.Storage {
	case config.StorageS3:
		store, err = storage.NewObjectStorage(cfg.Verification.S3, logr)
	case config.StorageLocal, "":
		store, err = storage.NewLocalStorage(cfg.Verification.StorageDir)
	default:
		err = fmt.Errorf("unsupported verification storage %q", cfg.Verification.Storage)
	}
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Verification.SignedURLSecret, cfg.Verification.SignedURLTTL)
	return service.NewVerificationService(store, nil, signer, metrics, vcfg, logr), nil
}
