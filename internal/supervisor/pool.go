package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/shared/id"
	"github.com/scriptrun/runnerd/internal/shared/paths"
)

// Session is a pooled shell session. The pool exclusively owns its lifecycle.
type Session struct {
	ID          id.SessionID
	DisplayName string
	WorkingDir  string
	CreatedAt   time.Time

	host       HostSession
	removeOnce sync.Once
}

// Host exposes the underlying host session handle.
func (s *Session) Host() HostSession {
	return s.host
}

// Pool tracks live sessions and which of them are busy. A session id is in
// at most one of {idle, busy}; once removed it is never handed out again.
type Pool struct {
	mu       sync.Mutex
	sessions map[id.SessionID]*Session
	busy     map[id.SessionID]struct{}

	host   Host
	logger *zap.Logger
}

// NewPool creates an empty pool backed by the given host.
func NewPool(host Host, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sessions: make(map[id.SessionID]*Session),
		busy:     make(map[id.SessionID]struct{}),
		host:     host,
		logger:   logger,
	}
}

// FindIdle returns an idle session whose display name starts with namePrefix
// and, when workingDir is non-empty, whose known working directory matches.
// Linear scan: pools hold tens of sessions, not thousands.
func (p *Pool) FindIdle(namePrefix, workingDir string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findIdleLocked(namePrefix, workingDir)
}

func (p *Pool) findIdleLocked(namePrefix, workingDir string) *Session {
	for sid, s := range p.sessions {
		if _, taken := p.busy[sid]; taken {
			continue
		}
		if !strings.HasPrefix(s.DisplayName, namePrefix) {
			continue
		}
		if workingDir != "" && !paths.Equal(s.WorkingDir, workingDir) {
			continue
		}
		return s
	}
	return nil
}

// Acquire finds an idle matching session or creates one, marks it busy, and
// returns it. The second return value reports whether the session is fresh
// and still needs the readiness gate.
func (p *Pool) Acquire(namePrefix, workingDir string) (*Session, bool, error) {
	p.mu.Lock()
	if s := p.findIdleLocked(namePrefix, workingDir); s != nil {
		p.busy[s.ID] = struct{}{}
		p.mu.Unlock()
		p.logger.Debug("Reusing idle session",
			zap.String("session_id", s.ID.String()),
			zap.String("working_dir", s.WorkingDir),
		)
		return s, false, nil
	}
	p.mu.Unlock()

	sid := id.NewSessionID()
	displayName := fmt.Sprintf("%s %s", namePrefix, sid)

	hs, err := p.host.CreateSession(displayName, workingDir)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}

	dir := workingDir
	if dir == "" {
		dir = hs.WorkingDir()
	}

	s := &Session{
		ID:          sid,
		DisplayName: displayName,
		WorkingDir:  dir,
		CreatedAt:   time.Now(),
		host:        hs,
	}

	p.mu.Lock()
	p.sessions[sid] = s
	p.busy[sid] = struct{}{}
	p.mu.Unlock()

	// Purge from both maps when the process ends, whoever ends it.
	go func() {
		<-hs.Closed()
		p.remove(s)
	}()

	p.logger.Info("Created session",
		zap.String("session_id", sid.String()),
		zap.String("display_name", displayName),
		zap.String("working_dir", dir),
	)

	return s, true, nil
}

// Release clears the busy flag. Idempotent: releasing an unknown or already
// idle session is a no-op.
func (p *Pool) Release(sid id.SessionID) {
	p.mu.Lock()
	delete(p.busy, sid)
	p.mu.Unlock()
}

// AwaitReady blocks until the host signals the session can accept command
// execution. Fails with ErrSessionNotReady if the session closes first or
// the context is cancelled; the pool imposes no timeout of its own.
func (p *Pool) AwaitReady(ctx context.Context, s *Session) error {
	select {
	case <-s.host.Ready():
		return nil
	case <-s.host.Closed():
		return fmt.Errorf("%w: session closed before becoming ready", ErrSessionNotReady)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrSessionNotReady, ctx.Err())
	}
}

// Kill terminates a session and removes it from the pool.
func (p *Pool) Kill(sid id.SessionID) error {
	p.mu.Lock()
	s, ok := p.sessions[sid]
	p.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	if err := s.host.Close(); err != nil {
		p.logger.Warn("Failed to close session",
			zap.String("session_id", sid.String()),
			zap.Error(err),
		)
	}
	p.remove(s)
	return nil
}

// remove drops a session from both maps, exactly once, even when the host's
// close notification races an explicit Kill.
func (p *Pool) remove(s *Session) {
	s.removeOnce.Do(func() {
		p.mu.Lock()
		delete(p.sessions, s.ID)
		delete(p.busy, s.ID)
		p.mu.Unlock()
		p.logger.Info("Removed session", zap.String("session_id", s.ID.String()))
	})
}

// Get returns a live session by id.
func (p *Pool) Get(sid id.SessionID) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sid]
	return s, ok
}

// Len reports the number of live sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// List returns a stable snapshot of all live sessions.
func (p *Pool) List() []SessionInfo {
	p.mu.Lock()
	infos := make([]SessionInfo, 0, len(p.sessions))
	for sid, s := range p.sessions {
		_, busy := p.busy[sid]
		infos = append(infos, SessionInfo{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			WorkingDir:  s.WorkingDir,
			Busy:        busy,
			CreatedAt:   s.CreatedAt,
		})
	}
	p.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
