package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/handlers"
	"bitbucket.org/mmdatafocus/sitebooks_backend/middlewares"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"cloud.google.com/go/pubsub"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app is everything the router needs once dependencies are connected.
type app struct {
	db       *gorm.DB
	rdb      *redis.Client
	locker   *redislock.Client
	pubsub   *pubsub.Client
	notifier *workflow.PubSubNotifier

	store      *models.Store
	reconciler *workflow.Reconciler
	queue      *workflow.ReconcileQueue
}

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(settings.LogLevel)
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision healthy.
	// Until DB is ready, app endpoints return 503.
	var router atomic.Pointer[gin.Engine]
	starting := gin.New()
	starting.Use(middlewares.CorrelationMiddleware())
	starting.Use(middlewares.ReadinessMiddleware(func() bool { return router.Load() != nil }))
	starting.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	srv := &http.Server{
		Addr: ":" + settings.Port,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine := router.Load(); engine != nil {
				engine.ServeHTTP(w, r)
				return
			}
			starting.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	a, err := connect(sigCtx, settings, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "startup"}).Fatal(err.Error())
	}
	defer a.close()

	queueCtx, cancelQueue := context.WithCancel(context.Background())
	var queueDone sync.WaitGroup
	queueDone.Add(1)
	go func() {
		defer queueDone.Done()
		a.queue.Run(queueCtx)
	}()

	router.Store(newRouter(settings, a, logger))
	logger.WithFields(logrus.Fields{
		"field": "startup",
		"port":  settings.Port,
	}).Info("server ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests first so no new writes enqueue reconciles.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Give queued reconciles a chance to finish; whatever is left is logged
	// and can be repaired with recalculate-balances.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelDrain()
	if err := a.queue.WaitIdle(drainCtx); err != nil {
		stats := a.queue.Stats()
		logger.WithFields(logrus.Fields{
			"field":    "ReconcileQueue",
			"pending":  stats.Pending,
			"running":  stats.Running,
			"retrying": stats.Retrying,
		}).Warn("reconcile queue not drained before shutdown")
	}
	cancelQueue()
	queueDone.Wait()
}

// connect opens the database (required) and Redis and Pub/Sub (optional).
func connect(ctx context.Context, settings *config.Settings, logger *logrus.Logger) (*app, error) {
	a := &app{}

	db, err := config.ConnectDatabaseWithRetry(ctx, settings.DB)
	if err != nil {
		return nil, err
	}
	a.db = db

	// AutoMigrate can run DDL that blocks tables; allow running it as a separate job instead.
	if !settings.SkipMigrations {
		if err := models.MigrateTable(db); err != nil {
			return nil, err
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Redis backs cross-instance locks, the report cache and rate limiting.
	// Without it the service still runs on a single instance.
	rdb, locker, err := config.ConnectRedisWithRetry(ctx, settings.Redis, 3)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unavailable; continuing without it: " + err.Error())
	} else {
		a.rdb, a.locker = rdb, locker
	}

	var notifier workflow.SummaryNotifier = workflow.NoopNotifier{}
	if settings.PubSubSummaryTopic != "" {
		client, err := config.NewPubSubClient(ctx, settings.PubSubProjectId, settings.PubSubCredentialsJSON, 3)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("pubsub unavailable; summary events disabled: " + err.Error())
		} else {
			topic, err := config.CreateTopicIfNotExists(ctx, client, settings.PubSubSummaryTopic)
			if err != nil {
				_ = client.Close()
				logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("pubsub topic unavailable; summary events disabled: " + err.Error())
			} else {
				a.pubsub = client
				a.notifier = workflow.NewPubSubNotifier(topic, logger)
				notifier = a.notifier
			}
		}
	}

	a.store = models.NewStore(db, logger)
	locks := workflow.NewSummaryLocks(a.locker, logger)
	a.reconciler = workflow.NewReconciler(a.store, locks, notifier, logger)
	a.queue = workflow.NewReconcileQueue(a.reconciler, logger, workflow.QueueOptions{
		Workers:          settings.Reconcile.Workers,
		QueueSize:        settings.Reconcile.QueueSize,
		MaxAttempts:      settings.Reconcile.MaxAttempts,
		InitialBackoff:   settings.Reconcile.InitialBackoff,
		CascadeBackdated: settings.Reconcile.CascadeBackdated,
	})
	a.store.SetChangeHook(a.queue)
	return a, nil
}

func newRouter(settings *config.Settings, a *app, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ErrorLogger(logger))
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist; deny all if none is configured.
	if settings.IsProduction() {
		corsConfig.AllowOrigins = settings.CorsAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", handlers.StaleLaterSummariesHeader, middlewares.CorrelationIdHeader)
	r.Use(cors.New(corsConfig))

	if settings.RateLimitEnabled && a.rdb != nil {
		r.Use(middlewares.NewRateLimiter(a.rdb, settings.RateLimitMaxRequests, settings.RateLimitWindow).Middleware())
	}
	r.Use(middlewares.LoaderMiddleware(a.store))

	var cache *reports.ReportCache
	if settings.EnableReportCache && a.rdb != nil {
		cache = reports.NewReportCache(a.rdb, settings.ReportCacheTTL, logger)
	}
	var uploader *utils.GCSUploader
	if settings.GCSBucket != "" {
		uploader = &utils.GCSUploader{Bucket: settings.GCSBucket, CredentialsJSON: settings.GCSCredentialsJSON}
	}

	h := handlers.New(handlers.Options{
		Store:       a.store,
		Reconciler:  a.reconciler,
		Queue:       a.queue,
		ReportCache: cache,
		Uploader:    uploader,
		Logger:      logger,
	})
	h.Register(r)
	r.NoRoute(handlers.NotFound)
	return r
}

func (a *app) close() {
	if a.notifier != nil {
		a.notifier.Stop()
	}
	if a.pubsub != nil {
		_ = a.pubsub.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
