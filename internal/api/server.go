// Package api serves the CodeSherpa REST surface, the chat WebSocket and the
// inbound webhooks.
package api

import (
	"context"
	"net/http"
	"time"

	"codesherpa/internal/agents"
	"codesherpa/internal/auth"
	"codesherpa/internal/config"
	"codesherpa/internal/db"
	"codesherpa/internal/logging"
	"codesherpa/internal/metrics"
	"codesherpa/internal/middleware"
	"codesherpa/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModeReporter exposes the runtime mode of a component for health checks
type ModeReporter interface {
	Mode() string
}

// degradeReporter is implemented by session memory that can fall back to
// the process
type degradeReporter interface {
	DegradedAt() time.Time
}

// PullRequestReviewer reviews a pull request and publishes the result
type PullRequestReviewer interface {
	ReviewPullRequest(ctx context.Context, repoFullName string, number int, title string) error
}

// Deps are the components the server is built from. Orchestrator, Hub,
// Reviewer, Memory and Gateway may be nil.
type Deps struct {
	Config       *config.Config
	DB           *db.Database
	Auth         *auth.AuthService
	Orchestrator agents.Agent
	Hub          *websocket.Hub
	Reviewer     PullRequestReviewer
	Memory       ModeReporter
	Gateway      ModeReporter
}

// Server holds the HTTP handlers
type Server struct {
	cfg          *config.Config
	db           *db.Database
	auth         *auth.AuthService
	orchestrator agents.Agent
	hub          *websocket.Hub
	reviewer     PullRequestReviewer
	memory       ModeReporter
	gateway      ModeReporter
	log          *zap.Logger

	apiLimiter  *middleware.IPRateLimiter
	authLimiter *middleware.IPRateLimiter

	// background work started by webhooks; tests wait on it
	background func(func())
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Load()
	}
	return &Server{
		cfg:          cfg,
		db:           deps.DB,
		auth:         deps.Auth,
		orchestrator: deps.Orchestrator,
		hub:          deps.Hub,
		reviewer:     deps.Reviewer,
		memory:       deps.Memory,
		gateway:      deps.Gateway,
		log:          logging.Named("api"),
		apiLimiter:   middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, burstFor(cfg.RateLimitPerMinute)),
		authLimiter:  middleware.NewAuthRateLimiter(),
		background:   func(fn func()) { go fn() },
	}
}

// RunLimiterCleanup evicts idle rate limit buckets until ctx is done
func (s *Server) RunLimiterCleanup(ctx context.Context, interval time.Duration) {
	go s.apiLimiter.Run(ctx, interval)
	s.authLimiter.Run(ctx, interval)
}

// Router builds the gin engine with every route and middleware attached
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.CORS(s.cfg.CORSOrigins),
		middleware.SecurityHeaders(),
	)
	if s.cfg.EnableMetrics {
		r.Use(metrics.PrometheusMiddleware())
		r.GET("/metrics", metrics.PrometheusHandler())
	}

	r.NoRoute(func(c *gin.Context) { fail(c, http.StatusNotFound, "Not found") })

	r.GET("/", s.Root)
	r.GET("/health", s.Health)

	if s.hub != nil {
		r.GET("/ws", s.hub.HandleWebSocket)
	} else {
		r.GET("/ws", func(c *gin.Context) { fail(c, http.StatusServiceUnavailable, "Orchestrator not initialized") })
	}

	webhooks := r.Group("/api")
	{
		webhooks.POST("/github/webhook", s.GitHubWebhook)
		webhooks.GET("/whatsapp/webhook", s.WhatsAppVerify)
		webhooks.POST("/whatsapp/webhook", s.WhatsAppMessage)
	}

	v1 := r.Group(s.cfg.APIV1Str)
	v1.Use(middleware.RateLimit(s.apiLimiter))

	v1.POST("/process", s.ProcessChat)

	authGroup := v1.Group("/auth")
	authGroup.Use(middleware.RateLimit(s.authLimiter))
	{
		authGroup.POST("/register", s.Register)
		authGroup.POST("/login", s.Login)
		authGroup.POST("/refresh", s.Refresh)
	}

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(s.auth))
	{
		protected.GET("/user/me", s.GetMe)
		protected.PUT("/user/me", s.UpdateMe)

		protected.GET("/agents", s.ListAgents)
		protected.POST("/agents", s.CreateAgent)
		protected.GET("/agents/:id", s.GetAgent)
		protected.PUT("/agents/:id", s.UpdateAgent)
		protected.DELETE("/agents/:id", s.DeleteAgent)

		protected.GET("/projects", s.ListProjects)
		protected.POST("/projects", s.CreateProject)
		protected.GET("/projects/:id", s.GetProject)
		protected.PUT("/projects/:id", s.UpdateProject)
		protected.DELETE("/projects/:id", s.DeleteProject)

		protected.GET("/chat", s.ListChats)
		protected.POST("/chat", s.CreateChat)
		protected.GET("/chat/:id", s.GetChat)
		protected.POST("/chat/:id/respond", s.RespondToChat)
	}

	return r
}

func burstFor(perMinute int) int {
	if b := perMinute / 10; b > 1 {
		return b
	}
	return 1
}

// Root describes the service
func (s *Server) Root(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"service": s.cfg.ProjectName,
		"version": s.cfg.Version,
		"docs":    "/docs",
	}, "Welcome to CodeSherpa Backend")
}

// Health reports liveness plus the memory and gateway modes
func (s *Server) Health(c *gin.Context) {
	data := gin.H{
		"status":       "ok",
		"service":      s.cfg.ProjectName,
		"version":      s.cfg.Version,
		"memory_mode":  modeOf(s.memory, "memory"),
		"gateway_mode": modeOf(s.gateway, "mock"),
	}
	if d, ok := s.memory.(degradeReporter); ok {
		if at := d.DegradedAt(); !at.IsZero() {
			data["memory_degraded_at"] = at.UTC().Format(time.RFC3339)
		}
	}
	if s.db != nil {
		if err := s.db.Health(); err != nil {
			s.log.Warn("database health check failed", zap.Error(err))
			data["database"] = "unavailable"
		} else {
			data["database"] = "connected"
		}
	}
	respond(c, http.StatusOK, data, "Service is healthy")
}

func modeOf(r ModeReporter, fallback string) string {
	if r == nil {
		return fallback
	}
	return r.Mode()
}
