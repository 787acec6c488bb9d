package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		logAtDebug bool
	}{
		{"text info filters debug", "info", "text", false},
		{"text debug passes debug", "debug", "text", true},
		{"pretty info filters debug", "info", "pretty", false},
		{"pretty trace passes debug", "trace", "pretty", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.level, tt.format, &buf)

			logger.Debug("stepping", "iteration", 3)
			hasDebug := strings.Contains(buf.String(), "stepping")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("run finished", "snapshots", 9)
			if !strings.Contains(buf.String(), "run finished") {
				t.Errorf("info message missing (buf: %q)", buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "iteration done")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE level label, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("Discard logger should not be enabled at any level")
	}
}

func TestNewRunTrace_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	rt := NewRunTrace(dir, "info")

	if rt != nil {
		t.Error("expected nil RunTrace at info level")
	}

	// Nil trace should still be safe to use
	rt.Log(map[string]any{"event": "run_started"})

	if _, err := os.Stat(filepath.Join(dir, "runs.jsonl")); err == nil {
		t.Error("runs.jsonl should not exist at info level")
	}
}

func TestNewRunTrace_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	rt := NewRunTrace(dir, "debug")
	defer rt.Close()

	rt.Log(map[string]any{"event": "snapshot_recorded", "iteration": 50, "ident": 2})

	data, err := os.ReadFile(filepath.Join(dir, "runs.jsonl"))
	if err != nil {
		t.Fatalf("failed to read runs.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry["event"] != "snapshot_recorded" {
		t.Errorf("event = %v, want snapshot_recorded", entry["event"])
	}
	if entry["iteration"] != float64(50) {
		t.Errorf("iteration = %v, want 50", entry["iteration"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in run trace entry")
	}
}

func TestRunTrace_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	rt := NewRunTrace(dir, "trace")
	defer rt.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.Log(map[string]any{"event": "run_finished", "ident": i})
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, "runs.jsonl"))
	if err != nil {
		t.Fatalf("failed to read runs.jsonl: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("interleaved or corrupt line %q: %v", line, err)
		}
	}
}

func TestRunTrace_NilSafety(t *testing.T) {
	var rt *RunTrace
	rt.Log(map[string]any{"event": "should_not_panic"})
	rt.Close()
}

func TestRunTrace_DoesNotMutateCallerMap(t *testing.T) {
	rt := NewRunTrace(t.TempDir(), "debug")
	defer rt.Close()

	event := map[string]any{"event": "run_started"}
	rt.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
}

func TestRunTrace_LogAfterClose(t *testing.T) {
	rt := NewRunTrace(t.TempDir(), "debug")
	rt.Log(map[string]any{"event": "before_close"})
	rt.Close()

	// Should be a no-op, not panic or error
	rt.Log(map[string]any{"event": "after_close"})
}

func TestNewRunTrace_CreatesDirWithPrivatePermissions(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "sub", "dir")

	rt := NewRunTrace(nested, "debug")
	if rt == nil {
		t.Fatal("expected non-nil RunTrace when dir needs creation")
	}
	defer rt.Close()

	rt.Log(map[string]any{"event": "dir_create_test"})

	info, err := os.Stat(filepath.Join(nested, "runs.jsonl"))
	if err != nil {
		t.Fatalf("runs.jsonl should exist after dir creation: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
