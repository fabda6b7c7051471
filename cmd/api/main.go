// Package main is the entrypoint for the Proovd API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dheerajmandava/proovd-sub004/internal/aggregator"
	"github.com/dheerajmandava/proovd-sub004/internal/broadcast"
	"github.com/dheerajmandava/proovd-sub004/internal/cache"
	"github.com/dheerajmandava/proovd-sub004/internal/config"
	"github.com/dheerajmandava/proovd-sub004/internal/handler"
	"github.com/dheerajmandava/proovd-sub004/internal/journal"
	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
	"github.com/dheerajmandava/proovd-sub004/internal/middleware"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
	"github.com/dheerajmandava/proovd-sub004/internal/server"
	"github.com/dheerajmandava/proovd-sub004/internal/service"
	"github.com/dheerajmandava/proovd-sub004/internal/verification"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	// Repositories
	websiteRepo := repository.NewWebsiteRepository(repo)
	statsRepo := repository.NewStatsRepository(repo)
	notificationRepo := repository.NewNotificationRepository(repo)
	eventRepo := repository.NewActivityEventRepository(repo)

	// Live pipeline: engine aggregates, hub fans out to subscribers.
	hub := broadcast.NewHub(logger, recorder)
	hub.SetQueueSize(cfg.SubscriberQueueSize)

	engine := aggregator.New(statsRepo, hub, logger, recorder)
	engine.SetLivenessWindow(cfg.LivenessWindow)
	engine.SetSweepInterval(cfg.SweepInterval)
	engine.SetFlushInterval(cfg.FlushInterval)

	// Durable pipeline: publisher appends to the Redis stream, the worker
	// batch-inserts into Postgres.
	journalPublisher := journal.NewPublisher(cacheClient.Client(), logger, recorder)
	journalWorker := journal.NewWorker(cacheClient.Client(), eventRepo, logger, journal.NewConsumerID(), recorder)

	// Services
	websiteService := service.NewWebsiteService(websiteRepo, cacheClient, logger)
	websiteService.SetCacheTTL(cfg.WebsiteCacheTTL)

	ingestService := service.NewIngestService(websiteService, engine, journalPublisher, logger, recorder)
	ingestService.SetMaxBatchSize(cfg.MaxEventsPerBatch)

	notificationService := service.NewNotificationService(websiteService, notificationRepo, logger, recorder)

	verifier := verification.New(websiteRepo, websiteService, logger)
	verifier.SetTimeout(cfg.VerifyTimeout)

	// Handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	metricsHandler := handler.NewMetricsHandler(recorder)
	eventsHandler := handler.NewEventsHandler(ingestService, logger)
	notificationsHandler := handler.NewNotificationsHandler(notificationService, logger)
	liveHandler := handler.NewLiveHandler(websiteService, engine, hub, logger)
	widgetHandler := handler.NewWidgetHandler(websiteService, cfg.BaseURL, logger)
	cronHandler := handler.NewCronHandler(engine, statsRepo, eventRepo, cfg.EventRetention, verifier, cfg.CronToken, logger)

	r := setupRouter(routerDeps{
		cfg:           cfg,
		logger:        logger,
		cache:         cacheClient,
		health:        healthHandler,
		metrics:       metricsHandler,
		events:        eventsHandler,
		notifications: notificationsHandler,
		live:          liveHandler,
		widget:        widgetHandler,
		cron:          cronHandler,
	})

	srv := server.New(r, cfg.AppPort, cfg.ReadHeaderTimeout, cfg.ShutdownTimeout, logger)

	// Background loops. Shutdown runs LIFO: the worker stops consuming
	// first, then the engine flushes its final state, then the hub closes
	// remaining live streams.
	go func() {
		if err := engine.Run(ctx); err != nil {
			logger.Error("aggregation engine stopped", "error", err)
		}
	}()
	go func() {
		if err := journalWorker.Run(ctx); err != nil {
			logger.Error("journal worker stopped", "error", err)
		}
	}()

	srv.OnShutdown("broadcast hub", func(ctx context.Context) error {
		hub.Close()
		return nil
	})
	srv.OnShutdown("aggregation engine", engine.Shutdown)
	srv.OnShutdown("journal worker", journalWorker.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	cfg           *config.Config
	logger        *slog.Logger
	cache         *cache.Cache
	health        *handler.HealthHandler
	metrics       *handler.MetricsHandler
	events        *handler.EventsHandler
	notifications *handler.NotificationsHandler
	live          *handler.LiveHandler
	widget        *handler.WidgetHandler
	cron          *handler.CronHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	cfg := deps.cfg

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  deps.logger,
		Cache:   deps.cache,
		Enabled: cfg.RateLimitEnabled,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}

	// Operational endpoints. Dashboard origins come from configuration.
	dashboardCORS := middleware.DefaultCORSConfig()
	dashboardCORS.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(dashboardCORS))
		r.Get("/healthz", deps.health.Healthz)
		r.Get("/readyz", deps.health.Readyz)
		r.Get("/metrics", deps.metrics.Metrics)
	})

	// Public widget API, called from arbitrary customer pages.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORSPublic())
		r.Use(middleware.RateLimitIP(rateLimitCfg))

		r.With(middleware.RequireJSON).Post("/events", deps.events.Ingest)
		r.Get("/notifications", deps.notifications.List)
		r.With(middleware.RequireJSON).Post("/notifications/{id}/track", deps.notifications.Track)
		r.Get("/live", deps.live.Live)
	})

	// Widget loader script.
	r.With(middleware.RateLimitIP(rateLimitCfg)).Get("/w/{websiteID}.js", deps.widget.Serve)

	// Scheduler-invoked maintenance, token-gated.
	r.Get("/cron/calculate-stats", deps.cron.CalculateStats)
	r.Get("/cron/verify-domains", deps.cron.VerifyDomains)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
