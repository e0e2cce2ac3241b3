package core

import (
	"context"
	"log/slog"
	"sync"
)

// logEntry is one record seen by captureHandler.
type logEntry struct {
	Level slog.Level
	Msg   string
	Attrs map[string]any
}

type logSink struct {
	mu      sync.Mutex
	entries []logEntry
}

// captureHandler records every entry so tests can assert on warnings.
type captureHandler struct {
	sink  *logSink
	attrs []slog.Attr
}

func newCaptureLogger() (*slog.Logger, *logSink) {
	sink := &logSink{}
	return slog.New(&captureHandler{sink: sink}), sink
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	e := logEntry{Level: r.Level, Msg: r.Message, Attrs: make(map[string]any)}
	for _, a := range h.attrs {
		e.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	h.sink.entries = append(h.sink.entries, e)
	h.sink.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{sink: h.sink, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// withMsg returns the entries whose message is msg.
func (s *logSink) withMsg(msg string) []logEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []logEntry
	for _, e := range s.entries {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// atLevel counts entries at exactly level.
func (s *logSink) atLevel(level slog.Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
