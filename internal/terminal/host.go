package terminal

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/supervisor"
)

// Host creates pty-backed shell sessions.
type Host struct {
	shellPath string // optional override; empty means ambient
	logger    *zap.Logger
}

// New creates a host. shellPath overrides ambient shell detection when
// non-empty.
func New(shellPath string, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{shellPath: shellPath, logger: logger}
}

// DefaultShellPath reports the shell used for new sessions: the configured
// override, then $SHELL, then /bin/bash.
func (h *Host) DefaultShellPath() string {
	if h.shellPath != "" {
		return h.shellPath
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/bash"
}

// CreateSession starts an interactive shell on a fresh pty.
func (h *Host) CreateSession(name, workingDir string) (supervisor.HostSession, error) {
	shellPath := h.DefaultShellPath()

	if workingDir == "" {
		workingDir = os.Getenv("HOME")
		if workingDir == "" {
			workingDir = os.TempDir()
		}
	}

	cmd := exec.Command(shellPath)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), "TERM=dumb")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 200})
	if err != nil {
		return nil, fmt.Errorf("failed to start pty: %w", err)
	}

	s := newSession(name, workingDir, cmd, ptmx, h.logger)

	h.logger.Info("Started shell session",
		zap.String("name", name),
		zap.String("shell", shellPath),
		zap.String("working_dir", workingDir),
	)

	return s, nil
}
