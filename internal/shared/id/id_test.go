package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	tests := []struct {
		prefix string
	}{
		{"sess"},
		{"cmd"},
		{"req"},
	}

	for _, tt := range tests {
		id := gen.GenerateWithPrefix(tt.prefix)

		if !strings.HasPrefix(id, tt.prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", tt.prefix, id)
		}

		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Errorf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}

		if !IsValid(parts[1]) {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	sessID := NewSessionID()
	cmdID := NewCommandID()
	reqID := NewRequestID()

	if !strings.HasPrefix(string(sessID), "sess_") {
		t.Errorf("SessionID should start with 'sess_', got: %s", sessID)
	}

	if !strings.HasPrefix(string(cmdID), "cmd_") {
		t.Errorf("CommandID should start with 'cmd_', got: %s", cmdID)
	}

	if !strings.HasPrefix(string(reqID), "req_") {
		t.Errorf("RequestID should start with 'req_', got: %s", reqID)
	}
}

func TestIsValid(t *testing.T) {
	gen := NewGenerator()

	valid := gen.GenerateString()
	if !IsValid(valid) {
		t.Errorf("Generated ULID should be valid: %s", valid)
	}

	if IsValid("not-a-ulid") {
		t.Error("Malformed string should not be valid")
	}
}

func TestTimestamp(t *testing.T) {
	gen := NewGenerator()

	before := time.Now().Add(-time.Second)
	id := gen.GenerateString()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Timestamp extraction failed: %v", err)
	}

	if ts.Before(before) || ts.After(after) {
		t.Errorf("Timestamp %v outside expected window [%v, %v]", ts, before, after)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const workers = 8
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := gen.GenerateString()
				mu.Lock()
				if seen[id] {
					t.Errorf("Duplicate ID generated: %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
