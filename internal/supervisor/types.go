package supervisor

import (
	"time"

	"github.com/scriptrun/runnerd/internal/shared/id"
	"github.com/scriptrun/runnerd/internal/shell"
)

// Host is the external session service the supervisor drives. The pty-backed
// implementation lives in internal/terminal; tests substitute fakes.
type Host interface {
	// CreateSession starts a new interactive shell session. The returned
	// handle signals readiness and closure through one-shot channels.
	CreateSession(name, workingDir string) (HostSession, error)

	// DefaultShellPath reports the ambient shell executable, used to infer
	// a dialect when the caller does not name one.
	DefaultShellPath() string
}

// HostSession is one live interactive shell process.
type HostSession interface {
	// Ready is closed once the session can accept command execution.
	Ready() <-chan struct{}

	// Closed is closed when the underlying process ends, by any actor.
	Closed() <-chan struct{}

	// Execute submits an invocation string and returns the live output
	// stream for that command.
	Execute(invocation string) (Stream, error)

	// Interrupt injects a best-effort interrupt signal.
	Interrupt() error

	// Close terminates the session process.
	Close() error

	// WorkingDir reports the session's working directory, best-effort.
	WorkingDir() string
}

// Stream is the merged output of one executed command.
type Stream interface {
	// Chunks yields output text in arrival order and is closed when the
	// command's output ends.
	Chunks() <-chan string

	// Err reports a terminal stream error, if any, once Chunks is closed.
	Err() error
}

// RunRequest describes one script execution.
type RunRequest struct {
	Script         string
	Shell          shell.Kind    // Unknown means "detect from the host"
	WorkingDir     string        // empty means "any"
	Timeout        time.Duration // 0 means no timeout
	KeepScript     bool
	Background     bool
	CloseOnTimeout bool
}

// ExecutionResult is returned to the caller of RunScript.
type ExecutionResult struct {
	Stdout     string       `json:"stdout"`
	Stderr     string       `json:"stderr"` // usually empty: streams arrive merged
	ExitCode   int          `json:"exit_code"`
	CommandID  id.CommandID `json:"command_id,omitempty"`
	SessionID  id.SessionID `json:"session_id,omitempty"`
	Background bool         `json:"background"`
	Truncated  bool         `json:"truncated"`
}

// OutputStatus is returned from GetOutput.
type OutputStatus struct {
	CommandID id.CommandID `json:"command_id"`
	Status    string       `json:"status"` // "running" or "completed"
	Output    string       `json:"output"`
	StartedAt time.Time    `json:"started_at"`
}

// Command status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// SessionInfo is the public view of a pooled session.
type SessionInfo struct {
	ID          id.SessionID `json:"id"`
	DisplayName string       `json:"display_name"`
	WorkingDir  string       `json:"working_dir,omitempty"`
	Busy        bool         `json:"busy"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CommandInfo is the public view of a registry entry.
type CommandInfo struct {
	ID        id.CommandID `json:"id"`
	SessionID id.SessionID `json:"session_id"`
	Status    string       `json:"status"`
	StartedAt time.Time    `json:"started_at"`
}
