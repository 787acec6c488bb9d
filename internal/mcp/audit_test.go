package mcp

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readAuditEntries(t *testing.T, path string) []AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("parsing audit entry %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_NilSafety(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "test"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil logger returned error: %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("Path() on nil logger = %q, want empty", logger.Path())
	}
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	defer logger.Close()

	wantPath := filepath.Join(dir, ".macrosim", AuditFile)
	if logger.Path() != wantPath {
		t.Errorf("Path() = %q, want %q", logger.Path(), wantPath)
	}

	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "macrosim_simulate", DurationMs: 42, Status: "success",
		Params: map[string]string{"scenario": "simple"}})
	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "macrosim_runs", Status: "error", Error: "boom"})

	entries := readAuditEntries(t, wantPath)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Tool != "macrosim_simulate" || entries[0].DurationMs != 42 || entries[0].Params["scenario"] != "simple" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Errorf("second entry = %+v", entries[1])
	}

	info, err := os.Stat(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("audit log permissions = %o, want 600", perm)
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	logger.Log(AuditEntry{Tool: "late"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if entries := readAuditEntries(t, logger.Path()); len(entries) != 0 {
		t.Errorf("entries after close = %d, want 0", len(entries))
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	logger := NewAuditLogger(t.TempDir())
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: "macrosim_scenarios", Status: "success"})
		}()
	}
	wg.Wait()

	if entries := readAuditEntries(t, logger.Path()); len(entries) != 50 {
		t.Errorf("got %d entries, want 50 intact lines", len(entries))
	}
}

func TestAuditLogger_BadPath(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the .macrosim directory should go.
	if err := os.WriteFile(filepath.Join(dir, ".macrosim"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if logger := NewAuditLogger(dir); logger != nil {
		logger.Close()
		t.Error("expected nil logger when the directory cannot be created")
	}
}

func TestSanitizeToolParams(t *testing.T) {
	seed := uint64(7)
	tests := []struct {
		name   string
		params map[string]any
		want   map[string]string
	}{
		{
			name:   "safe values are included",
			params: map[string]any{"scenario": "simple", "runs": 4, "seed": seedValue(&seed), "save": true},
			want:   map[string]string{"scenario": "simple", "runs": "4", "seed": "7", "save": "true", "_param_count": "4"},
		},
		{
			name:   "caller content is redacted",
			params: map[string]any{"spec": "compartments: {S: 1}", "output": "/home/user/out.csv"},
			want:   map[string]string{"spec": "(set)", "output": "(set)", "_param_count": "2"},
		},
		{
			name:   "unknown params are counted but excluded",
			params: map[string]any{"malicious_param": "x"},
			want:   map[string]string{"_param_count": "1"},
		},
		{
			name:   "zero values are absent",
			params: map[string]any{"spec": "", "runs": 0, "save": false, "seed": seedValue(nil)},
			want:   map[string]string{"_param_count": "0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeToolParams(tt.params)
			if len(got) != len(tt.want) {
				t.Fatalf("sanitizeToolParams() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}

	if got := sanitizeToolParams(nil); got != nil {
		t.Errorf("sanitizeToolParams(nil) = %v, want nil", got)
	}
}

func TestAuditTool(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	start := time.Now()
	time.Sleep(time.Millisecond)
	server.auditTool("macrosim_test", start, nil, map[string]string{"scenario": "simple"})

	entries := readAuditEntries(t, server.audit.Path())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if e := entries[0]; e.Tool != "macrosim_test" || e.Status != "success" || e.DurationMs < 1 {
		t.Errorf("entry = %+v", e)
	}
}
