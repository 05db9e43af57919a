package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireCreatesAndMarksBusy(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	s, isNew, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !isNew {
		t.Error("First acquire should create a fresh session")
	}

	// Busy sessions must not be handed out again
	if idle := pool.FindIdle("Runner (bash)", ""); idle != nil {
		t.Error("Busy session should not be returned by FindIdle")
	}

	pool.Release(s.ID)
	if idle := pool.FindIdle("Runner (bash)", ""); idle == nil || idle.ID != s.ID {
		t.Error("Released session should be idle again")
	}
}

func TestIdleReuseSameSession(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	first, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(first.ID)

	second, isNew, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if isNew {
		t.Error("Second acquire should reuse the idle session")
	}
	if second.ID != first.ID {
		t.Errorf("Expected session %s, got %s", first.ID, second.ID)
	}
	if host.sessionCount() != 1 {
		t.Errorf("Host should have created exactly one session, got %d", host.sessionCount())
	}
}

func TestWorkingDirectoryIsolation(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	a, _, err := pool.Acquire("Runner (bash)", "/a")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(a.ID)

	b, isNew, err := pool.Acquire("Runner (bash)", "/b")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !isNew {
		t.Error("A cwd mismatch must create a new session, not reuse the idle one")
	}
	if b.ID == a.ID {
		t.Error("Session for /b must differ from session for /a")
	}
}

func TestWorkingDirectoryNormalizedMatch(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	a, _, err := pool.Acquire("Runner (bash)", "/a/b")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(a.ID)

	got, isNew, err := pool.Acquire("Runner (bash)", "/a/b/")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if isNew || got.ID != a.ID {
		t.Error("Trailing separator should not defeat cwd matching")
	}
}

func TestNamePrefixIsolation(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	bash, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(bash.ID)

	if idle := pool.FindIdle("Runner (zsh)", ""); idle != nil {
		t.Error("A bash session must not satisfy a zsh prefix lookup")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	s, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	pool.Release(s.ID)
	pool.Release(s.ID)
	pool.Release("sess_nonexistent")

	if pool.Len() != 1 {
		t.Errorf("Pool should still hold the session, got %d", pool.Len())
	}
}

func TestSessionCloseRemovesFromPool(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	s, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	host.lastSession().Close()

	deadline := time.After(time.Second)
	for pool.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("Closed session was not purged from the pool")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ok := pool.Get(s.ID); ok {
		t.Error("Closed session id must never be returned by lookup again")
	}
	if idle := pool.FindIdle("Runner (bash)", ""); idle != nil {
		t.Error("Closed session must not be found idle")
	}
}

func TestKillRacesCloseListener(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	s, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Kill closes the host session, which also fires the close listener;
	// removal must be exactly-once and leave both maps clean.
	if err := pool.Kill(s.ID); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if pool.Len() != 0 {
		t.Errorf("Pool should be empty after kill, got %d", pool.Len())
	}

	if err := pool.Kill(s.ID); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Second kill should report ErrUnknownSession, got %v", err)
	}
}

func TestAwaitReadySuccess(t *testing.T) {
	host := newFakeHost()
	pool := NewPool(host, nil)

	s, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := pool.AwaitReady(context.Background(), s); err != nil {
		t.Errorf("AwaitReady on a ready session should succeed: %v", err)
	}
}

func TestAwaitReadyClosedSession(t *testing.T) {
	host := newFakeHost()
	host.notReady = true
	pool := NewPool(host, nil)

	s, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	host.lastSession().Close()

	if err := pool.AwaitReady(context.Background(), s); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("Expected ErrSessionNotReady, got %v", err)
	}
}

func TestAwaitReadyCancelled(t *testing.T) {
	host := newFakeHost()
	host.notReady = true
	pool := NewPool(host, nil)

	s, _, err := pool.Acquire("Runner (bash)", "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := pool.AwaitReady(ctx, s); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("Expected ErrSessionNotReady on cancellation, got %v", err)
	}
}

func TestAcquireHostFailure(t *testing.T) {
	host := newFakeHost()
	host.createErr = errors.New("host down")
	pool := NewPool(host, nil)

	if _, _, err := pool.Acquire("Runner (bash)", ""); err == nil {
		t.Error("Acquire should surface host creation failure")
	}
	if pool.Len() != 0 {
		t.Error("Failed creation must not leave a session behind")
	}
}
