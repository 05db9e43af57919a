package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/infrastructure/monitoring"
	"github.com/scriptrun/runnerd/internal/shared/id"
	"github.com/scriptrun/runnerd/internal/shell"
	"github.com/scriptrun/runnerd/internal/supervisor"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	supervisor *supervisor.Supervisor
	metrics    *monitoring.Metrics
	maxTimeout time.Duration
	logger     *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(sup *supervisor.Supervisor, metrics *monitoring.Metrics, maxTimeout time.Duration, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		supervisor: sup,
		metrics:    metrics,
		maxTimeout: maxTimeout,
		logger:     logger,
	}
}

// ExecuteRequest is the wire form of a script execution request
type ExecuteRequest struct {
	Script         string `json:"script" binding:"required"`
	Shell          string `json:"shell"`
	WorkingDir     string `json:"working_dir"`
	TimeoutMs      int64  `json:"timeout_ms"`
	KeepScript     bool   `json:"keep_script"`
	Background     bool   `json:"background"`
	CloseOnTimeout bool   `json:"close_on_timeout"`
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "runnerd",
		"version": "0.3.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": len(h.supervisor.Sessions()),
		"commands": len(h.supervisor.Commands()),
	})
}

// Execute runs a script in a pooled shell session
func (h *Handlers) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid execute request format"})
		return
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeout_ms must not be negative"})
		return
	}
	if h.maxTimeout > 0 && timeout > h.maxTimeout {
		timeout = h.maxTimeout
	}

	result, err := h.supervisor.RunScript(c.Request.Context(), supervisor.RunRequest{
		Script:         req.Script,
		Shell:          shell.Parse(req.Shell),
		WorkingDir:     req.WorkingDir,
		Timeout:        timeout,
		KeepScript:     req.KeepScript,
		Background:     req.Background,
		CloseOnTimeout: req.CloseOnTimeout,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOutput returns the accumulated output of a command
func (h *Handlers) GetOutput(c *gin.Context) {
	cid := id.CommandID(c.Param("id"))
	wait := c.Query("wait") == "true"

	out, err := h.supervisor.GetOutput(c.Request.Context(), cid, wait)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

// ListCommands lists all tracked commands
func (h *Handlers) ListCommands(c *gin.Context) {
	commands := h.supervisor.Commands()
	c.JSON(http.StatusOK, gin.H{
		"commands": commands,
		"count":    len(commands),
	})
}

// ListSessions lists all pooled sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.supervisor.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// KillSession terminates a pooled session
func (h *Handlers) KillSession(c *gin.Context) {
	sid := id.SessionID(c.Param("id"))

	if err := h.supervisor.KillSession(sid); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MetricsJSON returns a JSON snapshot of key metrics
func (h *Handlers) MetricsJSON(c *gin.Context) {
	snap := h.metrics.Snapshot()

	avgMs := 0.0
	if snap.RequestCount > 0 {
		avgMs = snap.TotalDuration / float64(snap.RequestCount) * 1000
	}

	c.JSON(http.StatusOK, gin.H{
		"total_requests":  snap.TotalRequests,
		"total_errors":    snap.TotalErrors,
		"total_commands":  snap.TotalCommands,
		"total_timeouts":  snap.TotalTimeouts,
		"avg_duration_ms": avgMs,
	})
}

// renderError maps supervisor errors to structured HTTP responses. Nothing
// in this subsystem crashes the process; every failure is renderable.
func (h *Handlers) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, supervisor.ErrUnknownCommand), errors.Is(err, supervisor.ErrUnknownSession):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, supervisor.ErrSessionNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, supervisor.ErrDispatchFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
