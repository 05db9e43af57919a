package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/infrastructure/monitoring"
	"github.com/scriptrun/runnerd/internal/shared/id"
	"github.com/scriptrun/runnerd/internal/shell"
)

// Supervisor is the execution orchestrator. It acquires a session, dispatches
// the invocation, registers the command, and for foreground calls races the
// accumulator against an optional timeout.
type Supervisor struct {
	host     Host
	pool     *Pool
	registry *Registry
	staging  *Staging
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// New creates a supervisor over explicitly injected stores, so tests can
// instantiate isolated instances.
func New(host Host, pool *Pool, registry *Registry, staging *Staging, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		host:     host,
		pool:     pool,
		registry: registry,
		staging:  staging,
		logger:   logger,
	}
}

// WithMetrics attaches a metrics collector.
func (s *Supervisor) WithMetrics(m *monitoring.Metrics) *Supervisor {
	s.metrics = m
	return s
}

// Pool exposes the session pool for introspection surfaces.
func (s *Supervisor) Pool() *Pool {
	return s.pool
}

// Registry exposes the command registry for introspection surfaces.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// RunScript stages the script, dispatches it into a pooled session, and
// either waits for output (foreground) or returns immediately (background).
func (s *Supervisor) RunScript(ctx context.Context, req RunRequest) (*ExecutionResult, error) {
	kind := req.Shell
	if kind == shell.Unknown {
		kind = shell.Detect(s.host.DefaultShellPath())
	}

	scriptPath, err := s.staging.Write(req.Script, shell.Extension(kind))
	if err != nil {
		return nil, err
	}

	sess, isNew, err := s.pool.Acquire(shell.SessionPrefix(kind), req.WorkingDir)
	if err != nil {
		s.discardScript(scriptPath, req.KeepScript)
		return nil, err
	}
	s.noteAcquire(isNew)

	if isNew {
		if err := s.pool.AwaitReady(ctx, sess); err != nil {
			s.pool.Release(sess.ID)
			s.discardScript(scriptPath, req.KeepScript)
			s.recordOutcome(req.Background, "not_ready")
			return nil, err
		}
	}

	invocation := shell.Build(scriptPath, kind)
	stream, err := sess.Host().Execute(invocation)
	if err != nil {
		s.pool.Release(sess.ID)
		s.discardScript(scriptPath, req.KeepScript)
		s.recordOutcome(req.Background, "dispatch_failed")
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	cmd := NewCommand(sess.ID, scriptPath, req.KeepScript, req.CloseOnTimeout)
	s.registry.Register(cmd, stream)
	// Past this point the accumulator owns script cleanup.

	s.logger.Info("Dispatched command",
		zap.String("command_id", cmd.ID.String()),
		zap.String("session_id", sess.ID.String()),
		zap.String("shell", kind.String()),
		zap.Bool("background", req.Background),
	)

	if req.Background {
		// The session is idle the moment dispatch succeeds; the caller
		// polls the registry, not the session, for progress.
		s.pool.Release(sess.ID)
		s.recordOutcome(true, "dispatched")
		return &ExecutionResult{
			CommandID:  cmd.ID,
			SessionID:  sess.ID,
			Background: true,
		}, nil
	}

	return s.collect(ctx, req, sess, cmd, kind)
}

// collect is the foreground race: accumulator completion vs optional timeout
// vs caller cancellation. The loser keeps running; it is never aborted.
func (s *Supervisor) collect(ctx context.Context, req RunRequest, sess *Session, cmd *Command, kind shell.Kind) (*ExecutionResult, error) {
	var timeoutC <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-cmd.Done():
		s.pool.Release(sess.ID)
		s.recordOutcome(false, "completed")
		if s.metrics != nil {
			s.metrics.RecordCommandDuration(kind.String(), time.Since(cmd.StartedAt))
		}
		return &ExecutionResult{
			Stdout:    cmd.Output(),
			ExitCode:  0,
			CommandID: cmd.ID,
			SessionID: sess.ID,
		}, nil

	case <-timeoutC:
		// The command is not cancelled; it keeps streaming into the
		// registry. The session is released for reuse regardless.
		exitCode := 0
		if req.CloseOnTimeout {
			if err := sess.Host().Interrupt(); err != nil {
				s.logger.Warn("Interrupt failed",
					zap.String("session_id", sess.ID.String()),
					zap.Error(err),
				)
			} else if s.metrics != nil {
				s.metrics.RecordInterrupt()
			}
			exitCode = 1
		}
		s.pool.Release(sess.ID)
		s.recordOutcome(false, "timeout")
		if s.metrics != nil {
			s.metrics.RecordTimeout()
		}
		s.logger.Info("Command timed out",
			zap.String("command_id", cmd.ID.String()),
			zap.Duration("timeout", req.Timeout),
			zap.Bool("interrupted", req.CloseOnTimeout),
		)
		return &ExecutionResult{
			Stdout:    cmd.Output(),
			ExitCode:  exitCode,
			CommandID: cmd.ID,
			SessionID: sess.ID,
			Truncated: true,
		}, nil

	case <-ctx.Done():
		s.pool.Release(sess.ID)
		s.recordOutcome(false, "cancelled")
		return &ExecutionResult{
			Stdout:    cmd.Output(),
			CommandID: cmd.ID,
			SessionID: sess.ID,
			Truncated: true,
		}, ctx.Err()
	}
}

// GetOutput returns a command's accumulated output, optionally blocking
// until the command completes.
func (s *Supervisor) GetOutput(ctx context.Context, cid id.CommandID, wait bool) (*OutputStatus, error) {
	cmd, ok := s.registry.Get(cid)
	if !ok {
		return nil, ErrUnknownCommand
	}

	if wait {
		if err := s.registry.AwaitCompletion(ctx, cid); err != nil {
			return nil, err
		}
	}

	status := StatusRunning
	if cmd.Completed() {
		status = StatusCompleted
	}

	return &OutputStatus{
		CommandID: cmd.ID,
		Status:    status,
		Output:    cmd.Output(),
		StartedAt: cmd.StartedAt,
	}, nil
}

// Sessions lists the pool's live sessions.
func (s *Supervisor) Sessions() []SessionInfo {
	return s.pool.List()
}

// Commands lists the registry's tracked commands.
func (s *Supervisor) Commands() []CommandInfo {
	return s.registry.List()
}

// KillSession terminates a pooled session on request.
func (s *Supervisor) KillSession(sid id.SessionID) error {
	if err := s.pool.Kill(sid); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncSessionsKilled()
		s.metrics.SetSessionsActive(s.pool.Len())
	}
	return nil
}

func (s *Supervisor) noteAcquire(isNew bool) {
	if s.metrics == nil {
		return
	}
	if isNew {
		s.metrics.IncSessionsCreated()
	} else {
		s.metrics.IncSessionsReused()
	}
	s.metrics.SetSessionsActive(s.pool.Len())
}

func (s *Supervisor) recordOutcome(background bool, outcome string) {
	if s.metrics == nil {
		return
	}
	mode := "foreground"
	if background {
		mode = "background"
	}
	s.metrics.RecordCommand(mode, outcome)
	s.metrics.SetCommandsTracked(s.registry.Len())
}

// discardScript removes a staged script that never reached the registry.
func (s *Supervisor) discardScript(path string, keep bool) {
	if !keep {
		s.staging.Remove(path)
	}
}
