package supervisor

import (
	"errors"
	"sync"
)

// fakeStream feeds scripted chunks to the accumulator.
type fakeStream struct {
	ch  chan string
	err error
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan string, 16)}
}

func (f *fakeStream) Chunks() <-chan string { return f.ch }
func (f *fakeStream) Err() error            { return f.err }

func (f *fakeStream) emit(chunks ...string) {
	for _, c := range chunks {
		f.ch <- c
	}
}

func (f *fakeStream) finish() {
	close(f.ch)
}

// fakeSession is a scriptable HostSession.
type fakeSession struct {
	mu         sync.Mutex
	ready      chan struct{}
	closed     chan struct{}
	workingDir string
	execErr    error
	executed   []string
	streams    []*fakeStream
	interrupts int
	closeOnce  sync.Once
}

func newFakeSession(workingDir string) *fakeSession {
	return &fakeSession{
		ready:      make(chan struct{}),
		closed:     make(chan struct{}),
		workingDir: workingDir,
	}
}

func (s *fakeSession) Ready() <-chan struct{}  { return s.ready }
func (s *fakeSession) Closed() <-chan struct{} { return s.closed }
func (s *fakeSession) WorkingDir() string      { return s.workingDir }

func (s *fakeSession) Execute(invocation string) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execErr != nil {
		return nil, s.execErr
	}
	s.executed = append(s.executed, invocation)
	if len(s.streams) == 0 {
		return nil, errors.New("fakeSession: no stream queued")
	}
	st := s.streams[0]
	s.streams = s.streams[1:]
	return st, nil
}

func (s *fakeSession) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts++
	return nil
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) markReady() {
	close(s.ready)
}

func (s *fakeSession) queueStream(st *fakeStream) {
	s.mu.Lock()
	s.streams = append(s.streams, st)
	s.mu.Unlock()
}

func (s *fakeSession) interruptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupts
}

// fakeHost creates fakeSessions, auto-ready unless configured otherwise.
type fakeHost struct {
	mu        sync.Mutex
	created   []*fakeSession
	createErr error
	notReady  bool
	shellPath string

	// prepare lets a test hook each new session before it is returned
	prepare func(*fakeSession)
}

func newFakeHost() *fakeHost {
	return &fakeHost{shellPath: "/bin/bash"}
}

func (h *fakeHost) CreateSession(name, workingDir string) (HostSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createErr != nil {
		return nil, h.createErr
	}
	s := newFakeSession(workingDir)
	if h.prepare != nil {
		h.prepare(s)
	}
	if !h.notReady {
		s.markReady()
	}
	h.created = append(h.created, s)
	return s, nil
}

func (h *fakeHost) DefaultShellPath() string {
	return h.shellPath
}

func (h *fakeHost) sessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.created)
}

func (h *fakeHost) lastSession() *fakeSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.created) == 0 {
		return nil
	}
	return h.created[len(h.created)-1]
}
