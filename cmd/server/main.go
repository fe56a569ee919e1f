package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/corgi-recs/corgi/internal/alerts"
	"github.com/corgi-recs/corgi/internal/cache"
	"github.com/corgi-recs/corgi/internal/candidates"
	"github.com/corgi-recs/corgi/internal/config"
	"github.com/corgi-recs/corgi/internal/database"
	"github.com/corgi-recs/corgi/internal/handlers"
	"github.com/corgi-recs/corgi/internal/injection"
	"github.com/corgi-recs/corgi/internal/interactions"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/metrics"
	"github.com/corgi-recs/corgi/internal/middleware"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/privacy"
	"github.com/corgi-recs/corgi/internal/pseudonym"
	"github.com/corgi-recs/corgi/internal/recommendations"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/telemetry"
	"github.com/corgi-recs/corgi/internal/upstream"
	"github.com/corgi-recs/corgi/internal/validation"
)

// tokenCacheTTL bounds how long a revoked token keeps resolving
const tokenCacheTTL = 5 * time.Minute

func main() {
	configPath := flag.String("config", os.Getenv("CORGI_CONFIG"), "path to a config file (json, yaml or toml)")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LoggerOptions()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log.Info("=== corgi starting ===",
		zap.String("environment", cfg.Server.Environment),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	tp, err := telemetry.InitTracer(context.Background(), cfg.TelemetryConfig())
	if err != nil {
		logger.WarnWithFields("Tracing disabled: failed to initialize tracer", err)
	}

	db, err := database.Open(database.Options{
		Type:         cfg.Database.Type,
		SQLitePath:   cfg.Database.SQLitePath,
		PostgresDSN:  cfg.Database.PostgresDSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		Debug:        cfg.Logging.Level == "debug",
		Tracing:      cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.FatalWithFields("Failed to open database", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Redis is optional; every cache falls back to the database
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cache.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.WarnWithFields("Continuing without Redis", err)
			redisClient = nil
		}
	}

	signalsCfg, err := cfg.SignalsConfig()
	if err != nil {
		logger.FatalWithFields("Invalid signals configuration", err)
	}
	defaultLevel, _ := models.ParsePrivacyLevel(cfg.Privacy.DefaultLevel)

	gate := privacy.NewGate(db, defaultLevel)
	profiles := signals.NewService(db, signalsCfg)
	if redisClient != nil {
		gate.WithCache(redisClient, cfg.Privacy.CacheTTL)
		profiles.WithCache(redisClient)
	}

	mastodon := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	posts := candidates.NewPostStore(db)
	scorer := candidates.NewProfileScorer()

	coldStart := candidates.NewColdStartPool(cfg.Candidates.PoolPath, signalsCfg, scorer)
	if _, err := coldStart.Load(context.Background()); err != nil {
		logger.WarnWithFields("Cold-start pool unavailable, injections will be empty", err)
	}

	var personalized candidates.Source = candidates.NewPersonalized(db, scorer).
		WithScanLimit(cfg.Candidates.ScanLimit).
		WithMinScore(cfg.Candidates.MinScore)

	var gorse *recommendations.GorseRESTClient
	if cfg.Recommendations.Enabled {
		gorse = recommendations.NewGorseRESTClient(cfg.Recommendations.GorseURL, cfg.Recommendations.APIKey, cfg.Recommendations.Timeout)
		personalized = recommendations.NewGorseSource(gorse, db)
		logger.Log.Info("Personalized candidates served by Gorse", zap.String("url", cfg.Recommendations.GorseURL))
	}

	eventDB := db
	if !cfg.Metrics.PersistEvents {
		eventDB = nil
	}
	sink := metrics.NewSink(eventDB, metrics.NewInjectionStats(), cfg.Metrics.BufferSize)
	sink.Start()

	impressions := metrics.NewImpressionTracker(db)

	alertManager := alerts.NewAlertManager()
	var stopAlerts chan struct{}
	if cfg.Alerts.Enabled {
		evaluator := alerts.NewEvaluator(alertManager, sink.Stats())
		evaluator.InitializeDefaultRules()
		stopAlerts = evaluator.StartEvaluationLoop(cfg.Alerts.Interval)
	}

	orchestrator, err := injection.NewService(cfg.InjectionConfig(), injection.Deps{
		Privacy:      gate,
		Profiles:     profiles,
		Upstream:     mastodon,
		ColdStart:    coldStart,
		Personalized: personalized,
		Recorder:     sink,
		Impressions:  impressions,
		Archive:      posts,
	})
	if err != nil {
		logger.FatalWithFields("Failed to create injection service", err)
	}

	logged := interactions.NewService(db, gate, profiles, posts, impressions)
	if gorse != nil {
		logged.WithFeedback(gorse)
	}

	h := handlers.NewHandlers(handlers.Deps{
		Timeline:     orchestrator,
		Interactions: logged,
		Privacy:      gate,
		Profiles:     profiles,
		Statuses:     mastodon,
		Stats:        sink.Stats(),
		Alerts:       alertManager,
		DB:           db,
	})

	validator := validation.NewServiceValidator(cfg.Server.RequiredServices)
	dbCheck := func(ctx context.Context) error { return database.Health(ctx, db) }
	h.AddHealthCheck("database", dbCheck)
	validator.Register("database", dbCheck)
	validator.Register("upstream", mastodon.Ping)
	if redisClient != nil {
		h.AddHealthCheck("redis", redisClient.Ping)
		validator.Register("redis", redisClient.Ping)
	}
	if gorse != nil {
		h.AddHealthCheck("gorse", gorse.Health)
		validator.Register("gorse", gorse.Health)
	}
	if err := validator.ValidateServices(context.Background()); err != nil {
		logger.FatalWithFields("Required service unavailable", err)
	}

	identity := middleware.NewIdentity(mastodon, pseudonym.New(cfg.Privacy.Salt))
	if redisClient != nil {
		identity.WithCache(redisClient, tokenCacheTTL)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(cfg.Telemetry.ServiceName))
	r.Use(identity.Middleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("corgi listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	if stopAlerts != nil {
		close(stopAlerts)
	}

	// Drain background writers before the database goes away
	logged.Wait()
	impressions.Wait()
	sink.Stop()

	if err := telemetry.Shutdown(ctx, tp); err != nil {
		logger.WarnWithFields("Tracer shutdown failed", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := database.Close(db); err != nil {
		logger.WarnWithFields("Database close failed", err)
	}

	logger.Log.Info("Server exited")
}
