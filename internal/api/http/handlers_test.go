package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptrun/runnerd/internal/supervisor"
)

// Fake host whose sessions are instantly ready and echo a fixed reply
type fakeStream struct {
	ch chan string
}

func (f *fakeStream) Chunks() <-chan string { return f.ch }
func (f *fakeStream) Err() error            { return nil }

type fakeSession struct {
	ready  chan struct{}
	closed chan struct{}
	reply  string
}

func newFakeSession(reply string) *fakeSession {
	s := &fakeSession{
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
		reply:  reply,
	}
	close(s.ready)
	return s
}

func (f *fakeSession) Ready() <-chan struct{}  { return f.ready }
func (f *fakeSession) Closed() <-chan struct{} { return f.closed }
func (f *fakeSession) Interrupt() error        { return nil }
func (f *fakeSession) WorkingDir() string      { return "" }

func (f *fakeSession) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func (f *fakeSession) Execute(invocation string) (supervisor.Stream, error) {
	st := &fakeStream{ch: make(chan string, 1)}
	st.ch <- f.reply
	close(st.ch)
	return st, nil
}

type fakeHost struct {
	reply string
}

func (f *fakeHost) DefaultShellPath() string { return "/bin/bash" }

func (f *fakeHost) CreateSession(name, workingDir string) (supervisor.HostSession, error) {
	return newFakeSession(f.reply), nil
}

func newTestRouter(t *testing.T, reply string) (*gin.Engine, *supervisor.Supervisor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	staging := supervisor.NewStaging(t.TempDir(), nil)
	host := &fakeHost{reply: reply}
	pool := supervisor.NewPool(host, nil)
	registry := supervisor.NewRegistry(staging, time.Hour, nil)
	sup := supervisor.New(host, pool, registry, staging, nil)

	handlers := NewHandlers(sup, nil, time.Minute, nil)

	router := gin.New()
	router.GET("/health", handlers.Health)
	router.POST("/execute", handlers.Execute)
	router.GET("/commands", handlers.ListCommands)
	router.GET("/commands/:id/output", handlers.GetOutput)
	router.GET("/sessions", handlers.ListSessions)
	router.DELETE("/sessions/:id", handlers.KillSession)
	return router, sup
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExecuteForeground(t *testing.T) {
	router, _ := newTestRouter(t, "it works\n")

	w := doJSON(t, router, http.MethodPost, "/execute", map[string]interface{}{
		"script": "echo it works",
		"shell":  "bash",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var result supervisor.ExecutionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "it works\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.Background)
	assert.NotEmpty(t, result.CommandID)
	assert.NotEmpty(t, result.SessionID)
}

func TestExecuteBackgroundThenFetchOutput(t *testing.T) {
	router, _ := newTestRouter(t, "later\n")

	w := doJSON(t, router, http.MethodPost, "/execute", map[string]interface{}{
		"script":     "sleep 1",
		"background": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result supervisor.ExecutionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Background)
	assert.Empty(t, result.Stdout)

	w = doJSON(t, router, http.MethodGet, "/commands/"+string(result.CommandID)+"/output?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out supervisor.OutputStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, supervisor.StatusCompleted, out.Status)
	assert.Equal(t, "later\n", out.Output)
}

func TestExecuteRejectsMissingScript(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodPost, "/execute", map[string]interface{}{
		"shell": "bash",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteRejectsNegativeTimeout(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodPost, "/execute", map[string]interface{}{
		"script":     "true",
		"timeout_ms": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOutputUnknownCommand(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodGet, "/commands/cmd_missing/output", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKillSessionUnknown(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodDelete, "/sessions/sess_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionsListedAfterExecute(t *testing.T) {
	router, _ := newTestRouter(t, "ok\n")

	w := doJSON(t, router, http.MethodPost, "/execute", map[string]interface{}{
		"script": "true",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		Sessions []supervisor.SessionInfo `json:"sessions"`
		Count    int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)
	assert.False(t, listing.Sessions[0].Busy)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
