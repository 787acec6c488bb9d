// Package logging provides leveled logging and run tracing for macrosim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output), plain or pretty
//   - A RunTrace for structured JSONL run events (<dir>/runs.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LevelTrace is a custom slog level below Debug. At this level the stepper
// logs every iteration, not just recorded ones.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing logfmt-style text to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewPrettyLogger creates a leveled slog.Logger with colored, human-oriented
// output for interactive terminals.
func NewPrettyLogger(level string, w io.Writer) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Level:           log.Level(ParseLevel(level)),
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	return slog.New(handler)
}

// New picks the pretty or plain logger by format name ("pretty" or "text").
func New(level, format string, w io.Writer) *slog.Logger {
	if strings.EqualFold(format, "pretty") {
		return NewPrettyLogger(level, w)
	}
	return NewLogger(level, w)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// RunTrace writes structured run events to a JSONL file.
// It is safe for concurrent use, so parallel runs can share one trace.
// A nil RunTrace is safe to use; all methods are no-ops on nil receiver.
type RunTrace struct {
	mu   sync.Mutex
	file *os.File
}

// NewRunTrace creates a run trace writing to dir/runs.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewRunTrace(dir string, level string) *RunTrace {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "runs.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &RunTrace{file: f}
}

// Log writes an event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (rt *RunTrace) Log(event map[string]any) {
	if rt == nil || rt.file == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = rt.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (rt *RunTrace) Close() {
	if rt == nil || rt.file == nil {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.file.Close()
	rt.file = nil
}
