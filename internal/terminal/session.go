package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/shared/id"
	"github.com/scriptrun/runnerd/internal/supervisor"
)

// etx is the interrupt byte injected into the pty (Ctrl-C).
const etx = 0x03

// Session is one live shell process on a pty.
type Session struct {
	name       string
	workingDir string

	cmd  *exec.Cmd
	ptmx *os.File

	ready     chan struct{}
	readyOnce sync.Once
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	current *stream // in-flight command, nil when idle
	marker  string
	tail    string

	logger *zap.Logger
}

func newSession(name, workingDir string, cmd *exec.Cmd, ptmx *os.File, logger *zap.Logger) *Session {
	s := &Session{
		name:       name,
		workingDir: workingDir,
		cmd:        cmd,
		ptmx:       ptmx,
		ready:      make(chan struct{}),
		closed:     make(chan struct{}),
		logger:     logger,
	}

	// Echo off keeps command lines out of the output stream. The echo of
	// this very line arrives before any command is in flight, so it is
	// discarded with the rest of the prompt noise.
	ptmx.Write([]byte("stty -echo\n"))

	go s.readLoop()
	go s.monitor()

	return s
}

// Ready is closed once the shell produces its first output (the prompt).
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Closed is closed when the shell process exits.
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// WorkingDir reports the directory the session was started in. Best-effort:
// scripts may cd elsewhere without the host noticing.
func (s *Session) WorkingDir() string {
	return s.workingDir
}

// Execute writes the invocation followed by a marker print, and returns the
// stream carrying everything the command writes before the marker appears.
func (s *Session) Execute(invocation string) (supervisor.Stream, error) {
	select {
	case <-s.closed:
		return nil, errors.New("session is closed")
	default:
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil, errors.New("session already has a command in flight")
	}

	token := id.Default().GenerateString()
	st := newStream()
	s.current = st
	s.marker = "__RUNNERD_" + token + "__"
	s.tail = ""
	s.mu.Unlock()

	// The token travels as a printf argument: the assembled marker never
	// appears in the written line, so terminal echo cannot forge it.
	line := fmt.Sprintf("%s; printf '\\n__RUNNERD_%%s__\\n' '%s'\n", invocation, token)
	if _, err := s.ptmx.Write([]byte(line)); err != nil {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to write invocation: %w", err)
	}

	return st, nil
}

// Interrupt injects Ctrl-C into the pty. Best-effort: the foreground
// process may ignore it.
func (s *Session) Interrupt() error {
	_, err := s.ptmx.Write([]byte{etx})
	return err
}

// Close terminates the shell process. Closed fires via the monitor.
func (s *Session) Close() error {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	return s.ptmx.Close()
}

// readLoop is the single demux reader for this session's pty.
func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.readyOnce.Do(func() { close(s.ready) })
			s.route(strings.ReplaceAll(string(buf[:n]), "\r\n", "\n"))
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("pty read ended", zap.String("session", s.name), zap.Error(err))
			}
			s.finishCurrent(nil)
			return
		}
	}
}

// route appends text to the in-flight command's stream, watching for the
// end-of-command marker. Output with no command in flight is prompt noise
// and is dropped.
func (s *Session) route(text string) {
	s.mu.Lock()
	st := s.current
	if st == nil {
		s.mu.Unlock()
		return
	}

	s.tail += text

	if idx := strings.Index(s.tail, s.marker); idx >= 0 {
		out := s.tail[:idx]
		// The marker print starts with its own newline; drop it.
		out = strings.TrimSuffix(out, "\n")
		s.tail = ""
		s.current = nil
		s.mu.Unlock()

		if out != "" {
			st.send(out)
		}
		st.close(nil)
		return
	}

	// Emit everything that provably cannot be a marker prefix.
	keep := len(s.marker) - 1
	if len(s.tail) > keep {
		out := s.tail[:len(s.tail)-keep]
		s.tail = s.tail[len(s.tail)-keep:]
		s.mu.Unlock()
		st.send(out)
		return
	}
	s.mu.Unlock()
}

// finishCurrent ends the in-flight stream, if any, flushing the held tail.
func (s *Session) finishCurrent(err error) {
	s.mu.Lock()
	st := s.current
	tail := s.tail
	s.current = nil
	s.tail = ""
	s.mu.Unlock()

	if st != nil {
		if tail != "" {
			st.send(tail)
		}
		st.close(err)
	}
}

// monitor waits for the shell process to exit and fires Closed.
func (s *Session) monitor() {
	s.cmd.Wait()
	s.ptmx.Close()
	s.closeOnce.Do(func() { close(s.closed) })
	s.logger.Info("Shell session ended", zap.String("name", s.name))
}

// stream carries one command's merged output.
type stream struct {
	ch   chan string
	err  error
	once sync.Once
}

func newStream() *stream {
	return &stream{ch: make(chan string, 64)}
}

func (st *stream) Chunks() <-chan string { return st.ch }

// Err is meaningful once Chunks is closed.
func (st *stream) Err() error { return st.err }

func (st *stream) send(chunk string) {
	st.ch <- chunk
}

func (st *stream) close(err error) {
	st.once.Do(func() {
		st.err = err
		close(st.ch)
	})
}
