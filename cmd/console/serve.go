package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-admin-console/api/swagger"
	"github.com/noah-isme/edu-admin-console/internal/apiclient"
	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/handler"
	"github.com/noah-isme/edu-admin-console/internal/middleware"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/repository"
	"github.com/noah-isme/edu-admin-console/internal/service"
	"github.com/noah-isme/edu-admin-console/internal/session"
	"github.com/noah-isme/edu-admin-console/pkg/cache"
	"github.com/noah-isme/edu-admin-console/pkg/config"
	"github.com/noah-isme/edu-admin-console/pkg/database"
	"github.com/noah-isme/edu-admin-console/pkg/jobs"
	"github.com/noah-isme/edu-admin-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-admin-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-admin-console/pkg/middleware/requestid"
	"github.com/noah-isme/edu-admin-console/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck
			return serve(cmd.Context(), cfg, logr)
		},
	}
}

type handlers struct {
	views   *handler.ViewHandler
	exports *handler.ExportHandler
	me      *handler.MeHandler
	metrics *handler.MetricsHandler
	journal *handler.JournalHandler
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	api := apiclient.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		apiclient.WithLogger(logr),
		apiclient.WithRecorder(metricsSvc),
	)
	checks := map[string]handler.Pinger{"upstream": api.Ping}

	var (
		locker   dispatch.Locker = dispatch.NewMemoryLocker()
		lookups                  = service.NewLookupCache(nil, metricsSvc, cfg.Views.LookupCacheTTL, logr)
		prefs                    = service.NewPreferenceService(nil, nil, logr)
		opts                     = []dispatch.Option{dispatch.WithObserver(metricsSvc)}
		db       *sqlx.DB
	)

	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close() //nolint:errcheck
		cacheRepo := repository.NewCacheRepository(client, cfg.Redis.KeyPrefix, logr)
		lookups = service.NewLookupCache(cacheRepo, metricsSvc, cfg.Views.LookupCacheTTL, logr)
		prefs = service.NewPreferenceService(repository.NewPreferenceRepository(client), nil, logr)
		locker = repository.NewLockRepository(client)
		checks["redis"] = redisPinger(client)
	}

	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close() //nolint:errcheck
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		journalRepo := repository.NewDispatchJournalRepository(db, metricsSvc)
		opts = append(opts, dispatch.WithJournal(journalRepo))
		checks["postgres"] = db.PingContext
		go service.NewJournalRetention(journalRepo, cfg.Journal.Retention, logr).Run(ctx, cfg.Journal.PurgeInterval)
	}

	dispatcher := dispatch.NewDispatcher(locker, logr, opts...)
	views := service.NewViewService(api, dispatcher, nil, lookups, metricsSvc, viewConfig(cfg), logr)
	defer views.Registry().Close()
	go views.Registry().Run(ctx, cfg.Workspace.SweepInterval)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("prepare export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(views, files, signer, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.SignedURLTTL,
		Queue: jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: time.Second,
		},
	}, metricsSvc, logr)
	exports.Start(ctx)
	defer exports.Stop()

	h := handlers{
		views:   handler.NewViewHandler(views),
		exports: handler.NewExportHandler(exports, views),
		me:      handler.NewMeHandler(prefs),
		metrics: handler.NewMetricsHandler(metricsSvc, views.Registry(), checks),
	}
	if db != nil {
		h.journal = handler.NewJournalHandler(repository.NewDispatchJournalRepository(db, metricsSvc))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())
	registerRoutes(r, cfg, session.NewVerifier(cfg.JWT.Secret), h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func registerRoutes(r *gin.Engine, cfg *config.Config, verifier *session.Verifier, h handlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(verifier))

	api.GET("/me", h.me.Get)
	api.PUT("/me/preferences", h.me.UpdatePreferences)
	api.GET("/status", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.metrics.Status)

	views := api.Group("/views")
	views.DELETE("", h.views.Close)
	views.POST("/:page/refresh", h.views.Refresh)
	views.POST("/:page/exports", h.exports.Create)

	payments := views.Group("/payments", middleware.RequireRoles(service.PageRoles[service.PagePayments]...))
	payments.GET("", h.views.Payments)
	payments.PUT("/:id", h.views.UpdatePayment)
	payments.POST("/:id/approve", h.views.ApprovePayment)

	users := views.Group("/users", middleware.RequireRoles(service.PageRoles[service.PageUsers]...))
	users.GET("", h.views.Users)
	users.POST("", h.views.CreateUser)
	users.PUT("/:id", h.views.UpdateUser)
	users.DELETE("/:id", h.views.DeleteUser)
	users.GET("/:id/delete-state", h.views.DeleteUserState)

	sessions := views.Group("/sessions", middleware.RequireRoles(service.PageRoles[service.PageSessions]...))
	sessions.GET("", h.views.Sessions)
	sessions.POST("", h.views.CreateSession)
	sessions.POST("/:id/cancel", h.views.CancelSession)

	marks := views.Group("/marks", middleware.RequireRoles(service.PageRoles[service.PageMarks]...))
	marks.GET("", h.views.Marks)
	marks.PUT("/:id", h.views.UpdateMark)

	views.GET("/chat", h.views.Chat)
	views.POST("/chat", h.views.SendChatMessage)
	views.GET("/states", h.views.States)
	views.GET("/batches", h.views.Batches)

	api.GET("/exports/download", h.exports.Download)
	api.GET("/exports/:id", h.exports.Get)

	if h.journal != nil {
		journal := api.Group("/journal", middleware.RequireRoles(models.RoleAdmin))
		journal.GET("", h.journal.List)
		journal.GET("/:page/summary", h.journal.Summary)
	}
}

func viewConfig(cfg *config.Config) service.ViewConfig {
	return service.ViewConfig{
		PageSize:            cfg.Views.PageSize,
		ChatPollInterval:    cfg.Polling.ChatInterval,
		SessionPollInterval: cfg.Polling.SessionsInterval,
		LookupCacheTTL:      cfg.Views.LookupCacheTTL,
		MarksPassPercentage: cfg.Views.MarksPassPercentage,
		IdleTTL:             cfg.Workspace.IdleTTL,
		ForceDeletePhrase:   cfg.Views.ForceDeletePhrase,
	}
}

func redisPinger(client *redis.Client) handler.Pinger {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
