package supervisor

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/shared/id"
)

// Command is one dispatched script invocation. Its output and completion
// state are mutated only by the registry's accumulator goroutine.
type Command struct {
	ID             id.CommandID
	SessionID      id.SessionID
	StartedAt      time.Time
	ScriptPath     string
	KeepScript     bool
	CloseOnTimeout bool

	mu          sync.Mutex
	output      strings.Builder
	completed   bool
	completedAt time.Time
	done        chan struct{}
}

// NewCommand creates a registry-ready command record.
func NewCommand(sessionID id.SessionID, scriptPath string, keepScript, closeOnTimeout bool) *Command {
	return &Command{
		ID:             id.NewCommandID(),
		SessionID:      sessionID,
		StartedAt:      time.Now(),
		ScriptPath:     scriptPath,
		KeepScript:     keepScript,
		CloseOnTimeout: closeOnTimeout,
		done:           make(chan struct{}),
	}
}

// Output returns the text accumulated so far. Safe to call at any time;
// output only ever grows.
func (c *Command) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.String()
}

// Completed reports whether the command's output has ended.
func (c *Command) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Done is closed exactly once, when the command completes.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

func (c *Command) append(chunk string) {
	c.mu.Lock()
	c.output.WriteString(chunk)
	c.mu.Unlock()
}

// complete marks the false→true transition; later calls are no-ops.
func (c *Command) complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return
	}
	c.completed = true
	c.completedAt = time.Now()
	close(c.done)
}

// Registry is the durable map of in-flight and finished commands. Completed
// entries are retained for a configurable window so callers can fetch the
// output of backgrounded or timed-out commands after the fact.
type Registry struct {
	mu       sync.Mutex
	commands map[id.CommandID]*Command
	waiters  map[id.CommandID]int

	staging   *Staging
	retention time.Duration
	logger    *zap.Logger
}

// DefaultRetention bounds how long completed commands stay queryable.
const DefaultRetention = time.Hour

// NewRegistry creates a registry that hands finished scripts to staging for
// cleanup. retention <= 0 falls back to DefaultRetention.
func NewRegistry(staging *Staging, retention time.Duration, logger *zap.Logger) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		commands:  make(map[id.CommandID]*Command),
		waiters:   make(map[id.CommandID]int),
		staging:   staging,
		retention: retention,
		logger:    logger,
	}
}

// Register stores the command and starts its single background accumulator,
// which owns the command's output, completion transition, and script cleanup.
func (r *Registry) Register(cmd *Command, stream Stream) {
	r.mu.Lock()
	r.commands[cmd.ID] = cmd
	r.mu.Unlock()

	go r.accumulate(cmd, stream)
}

// accumulate drains the stream to exhaustion. A stream error is completion
// with partial output, never fatal.
func (r *Registry) accumulate(cmd *Command, stream Stream) {
	for chunk := range stream.Chunks() {
		cmd.append(chunk)
	}

	if err := stream.Err(); err != nil {
		r.logger.Warn("Command stream ended with error",
			zap.String("command_id", cmd.ID.String()),
			zap.Error(err),
		)
	}

	cmd.complete()

	// Only the accumulator knows the command truly finished, so script
	// cleanup happens here and nowhere else.
	if !cmd.KeepScript && r.staging != nil {
		r.staging.Remove(cmd.ScriptPath)
	}

	r.logger.Debug("Command completed",
		zap.String("command_id", cmd.ID.String()),
		zap.String("session_id", cmd.SessionID.String()),
		zap.Duration("elapsed", time.Since(cmd.StartedAt)),
	)
}

// Get looks up a command by id.
func (r *Registry) Get(cid id.CommandID) (*Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.commands[cid]
	return cmd, ok
}

// AwaitCompletion blocks until the command completes or ctx is cancelled.
// Returns immediately if it already completed. While a waiter is parked the
// command is protected from eviction.
func (r *Registry) AwaitCompletion(ctx context.Context, cid id.CommandID) error {
	r.mu.Lock()
	cmd, ok := r.commands[cid]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownCommand
	}
	r.waiters[cid]++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.waiters[cid] <= 1 {
			delete(r.waiters, cid)
		} else {
			r.waiters[cid]--
		}
		r.mu.Unlock()
	}()

	select {
	case <-cmd.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns a snapshot of all tracked commands, newest first.
func (r *Registry) List() []CommandInfo {
	r.mu.Lock()
	infos := make([]CommandInfo, 0, len(r.commands))
	for _, cmd := range r.commands {
		status := StatusRunning
		if cmd.Completed() {
			status = StatusCompleted
		}
		infos = append(infos, CommandInfo{
			ID:        cmd.ID,
			SessionID: cmd.SessionID,
			Status:    status,
			StartedAt: cmd.StartedAt,
		})
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.After(infos[j].StartedAt) })
	return infos
}

// Len reports the number of tracked commands.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

// StartJanitor evicts stale completed commands once a minute until ctx ends.
func (r *Registry) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(time.Now())
			}
		}
	}()
}

// sweep removes commands completed longer than the retention window ago.
// Commands with parked waiters are never evicted.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for cid, cmd := range r.commands {
		if r.waiters[cid] > 0 {
			continue
		}
		cmd.mu.Lock()
		expired := cmd.completed && now.Sub(cmd.completedAt) > r.retention
		cmd.mu.Unlock()
		if expired {
			delete(r.commands, cid)
		}
	}
}
