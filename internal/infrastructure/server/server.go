package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/scriptrun/runnerd/internal/api/http"
	"github.com/scriptrun/runnerd/internal/api/middleware"
	"github.com/scriptrun/runnerd/internal/api/ws"
	"github.com/scriptrun/runnerd/internal/infrastructure/config"
	"github.com/scriptrun/runnerd/internal/infrastructure/logging"
	"github.com/scriptrun/runnerd/internal/infrastructure/monitoring"
	"github.com/scriptrun/runnerd/internal/supervisor"
	"github.com/scriptrun/runnerd/internal/terminal"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpSrv    *http.Server
	supervisor *supervisor.Supervisor
	pool       *supervisor.Pool
	janitorCtx context.Context
	stop       context.CancelFunc
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing runnerd",
		zap.String("port", cfg.Server.Port),
		zap.Duration("max_timeout", cfg.Exec.MaxTimeout),
		zap.Duration("command_retention", cfg.Exec.CommandRetention),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Wire the execution core: pty host, session pool, command registry,
	// script staging, orchestrator.
	host := terminal.New(cfg.Exec.ShellPath, logger.Logger)
	staging := supervisor.NewStaging(cfg.Exec.StagingDir, logger.Logger)
	pool := supervisor.NewPool(host, logger.Logger)
	registry := supervisor.NewRegistry(staging, cfg.Exec.CommandRetention, logger.Logger)
	sup := supervisor.New(host, pool, registry, staging, logger.Logger).WithMetrics(metrics)

	// Completed commands are swept once their retention lapses
	janitorCtx, stop := context.WithCancel(context.Background())
	registry.StartJanitor(janitorCtx)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := apihttp.NewHandlers(sup, metrics, cfg.Exec.MaxTimeout, logger.Logger)
	wsHandler := ws.NewHandler(sup, metrics, logger.Logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Execution
	router.POST("/execute", handlers.Execute)

	// Command introspection
	router.GET("/commands", handlers.ListCommands)
	router.GET("/commands/:id/output", handlers.GetOutput)

	// Session management
	router.GET("/sessions", handlers.ListSessions)
	router.DELETE("/sessions/:id", handlers.KillSession)

	// WebSocket output streaming
	router.GET("/stream/:id", wsHandler.StreamOutput)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", handlers.MetricsJSON)

	logger.Info("Server initialized successfully")

	return &Server{
		router:     router,
		supervisor: sup,
		pool:       pool,
		janitorCtx: janitorCtx,
		stop:       stop,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close gracefully shuts down the server and kills pooled sessions
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.stop()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}

	// Shell processes do not outlive the service
	infos := s.pool.List()
	for _, info := range infos {
		if err := s.supervisor.KillSession(info.ID); err != nil {
			s.logger.Warn("Failed to kill session",
				zap.String("session_id", string(info.ID)),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("Killed pooled sessions", zap.Int("count", len(infos)))

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
