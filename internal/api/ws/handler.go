package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/infrastructure/monitoring"
	"github.com/scriptrun/runnerd/internal/shared/id"
	"github.com/scriptrun/runnerd/internal/supervisor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// pollInterval is how often incremental output is flushed to the client.
const pollInterval = 100 * time.Millisecond

// Handler streams command output over WebSocket connections
type Handler struct {
	supervisor *supervisor.Supervisor
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(sup *supervisor.Supervisor, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		supervisor: sup,
		metrics:    metrics,
		logger:     logger,
	}
}

// StreamOutput upgrades the connection and streams one command's output
// until it completes or the client goes away.
func (h *Handler) StreamOutput(c *gin.Context) {
	cid := id.CommandID(c.Param("id"))

	cmd, ok := h.supervisor.Registry().Get(cid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": supervisor.ErrUnknownCommand.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	// Drain client frames so pings and close messages are processed
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-cmd.Done():
			output := cmd.Output()
			if sent < len(output) {
				if err := h.send(conn, "output", output[sent:]); err != nil {
					return
				}
			}
			h.send(conn, "completed", output)
			return

		case <-ticker.C:
			output := cmd.Output()
			if sent < len(output) {
				if err := h.send(conn, "output", output[sent:]); err != nil {
					return
				}
				sent = len(output)
			}

		case <-clientGone:
			return

		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msgType, text string) error {
	err := conn.WriteJSON(map[string]interface{}{
		"type":   msgType,
		"output": text,
	})
	if err != nil {
		h.logger.Debug("WebSocket write failed", zap.Error(err))
	}
	return err
}
