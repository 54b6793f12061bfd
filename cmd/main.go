// Command codesherpa runs the CodeSherpa backend: the REST API, the chat
// WebSocket and the GitHub review webhook.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"codesherpa/internal/agents"
	"codesherpa/internal/ai"
	"codesherpa/internal/api"
	"codesherpa/internal/auth"
	"codesherpa/internal/cache"
	"codesherpa/internal/config"
	"codesherpa/internal/db"
	"codesherpa/internal/logging"
	"codesherpa/internal/metrics"
	"codesherpa/internal/storage"
	"codesherpa/internal/vcs"
	"codesherpa/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			logging.L().Debug("no .env file found, using environment variables")
		}
	}
	defer logging.Sync()
	log := logging.Named("main")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("starting CodeSherpa",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
	)

	// Bind the port right away so health checks pass while the slower
	// dependencies come up.
	var activeRouter atomic.Value
	bootstrap := gin.New()
	bootstrap.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"status": "starting"}, "message": "Service is starting"})
	})
	bootstrap.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "data": nil, "message": "Server starting"})
	})
	activeRouter.Store(bootstrap)

	serverErrors := make(chan error, 1)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			activeRouter.Load().(*gin.Engine).ServeHTTP(w, r)
		}),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	log.Info("http listener started", zap.String("port", cfg.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.NewDatabase(&db.Config{
		URL:             cfg.DatabaseURL,
		AutoMigrate:     cfg.AutoMigrate,
		LogLevel:        logger.Warn,
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Session memory falls back to the process when Redis is unreachable
	var store cache.Store
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfigFromURL(cfg.RedisURL))
	if err != nil {
		log.Warn("redis unavailable, session memory will be in-process", zap.Error(err))
	} else {
		defer redisClient.Close()
		store = cache.NewGoRedisAdapter(redisClient.Client())
	}
	memory := cache.NewSessionMemory(store)

	gateway := ai.NewGatewayFromConfig(ctx, cfg)
	log.Info("model gateway ready", zap.String("mode", gateway.Mode()), zap.String("provider", gateway.ProviderName()))

	reviewAgent := agents.NewReviewAgent(gateway, memory)
	explainer := agents.NewExplainerAgent(gateway, memory)
	orchestrator := agents.NewOrchestrator(gateway, memory, reviewAgent, explainer)

	hub := websocket.NewHub(orchestrator, websocket.WithAllowedOrigins(cfg.CORSOrigins))
	go hub.Run()

	var reviewer api.PullRequestReviewer
	if cfg.GitHubToken != "" {
		ghClient, err := vcs.NewClient(cfg.GitHubToken)
		if err != nil {
			log.Fatal("failed to create GitHub client", zap.Error(err))
		}
		reviewer = vcs.NewPipeline(ghClient, reviewAgent, newArchiver(ctx, cfg, log))
	} else {
		log.Info("GITHUB_TOKEN not set, pull request reviews disabled")
	}

	server := api.NewServer(api.Deps{
		Config:       cfg,
		DB:           database,
		Auth:         auth.NewAuthService(cfg.JWTSecret, auth.WithExpiry(cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)),
		Orchestrator: orchestrator,
		Hub:          hub,
		Reviewer:     reviewer,
		Memory:       memory,
		Gateway:      gateway,
	})

	if cfg.EnableMetrics {
		metrics.Get().SetBuildInfo(cfg.Version, cfg.Environment)
		collector := metrics.NewBusinessMetricsCollector(database.DB, time.Minute)
		collector.Start(ctx)
		defer collector.Stop()
	}

	go server.RunLimiterCleanup(ctx, 10*time.Minute)

	activeRouter.Store(server.Router())
	log.Info("CodeSherpa is ready", zap.String("memory_mode", memory.Mode()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal("failed to start server", zap.Error(err))
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}
	hub.Shutdown()
	cancel()
	log.Info("graceful shutdown complete")
}

func newArchiver(ctx context.Context, cfg *config.Config, log *zap.Logger) vcs.Archiver {
	if cfg.ReviewArchiveBucket == "" {
		return storage.NopArchiver{}
	}
	archiver, err := storage.NewS3ReviewArchiver(ctx, cfg.ReviewArchiveBucket, cfg.AWSRegion)
	if err != nil {
		log.Warn("review archive disabled", zap.Error(err))
		return storage.NopArchiver{}
	}
	return archiver
}
