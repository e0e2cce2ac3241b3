package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/logging"
)

// SetSummary describes one registered record set.
type SetSummary struct {
	Key       string   `json:"key"`
	Type      string   `json:"type"`
	Path      string   `json:"path"`
	Columns   []string `json:"columns"`
	Relations []string `json:"relations,omitempty"`
	Cached    bool     `json:"cached"`
}

// SetResponse is the body of GET /api/sets/{key}.
type SetResponse struct {
	Key      string            `json:"key"`
	Resolved bool              `json:"resolved"`
	Count    int               `json:"count"`
	Records  []core.RecordView `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.loader.Cache().Statistics())
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	schemas := s.loader.Schemas()
	cache := s.loader.Cache()

	keys := schemas.Keys()
	out := make([]SetSummary, 0, len(keys))
	for _, key := range keys {
		schema, _ := schemas.Get(key)
		summary := SetSummary{
			Key:    key,
			Type:   schema.Type.String(),
			Path:   s.loader.Path(key),
			Cached: cache.Contains(key),
		}
		for _, col := range schema.Columns {
			summary.Columns = append(summary.Columns, col.Column)
		}
		for _, rel := range schema.Relations {
			summary.Relations = append(summary.Relations, fmt.Sprintf("%s -> %s (%s)", rel.Field, rel.Target, rel.Cardinality))
		}
		out = append(out, summary)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleGetSet returns a set's records. Relationships are resolved unless
// the resolve query parameter is false.
func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ctx := r.Context()

	resolve := true
	if v := r.URL.Query().Get("resolve"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: resolve=%q", errBadRequest, v))
			return
		}
		resolve = b
	}

	views, err := s.loader.Views(ctx, key, resolve)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(ctx, "set", key).Debug("set served", "records", len(views), "resolved", resolve)
	writeJSON(w, r, http.StatusOK, SetResponse{
		Key:      key,
		Resolved: resolve,
		Count:    len(views),
		Records:  views,
	})
}

func (s *Server) handleInvalidateSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, ok := s.loader.Schemas().Get(key); !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownSchema, key))
		return
	}

	removed := s.loader.Invalidate(key)
	logging.WithFields(r.Context(), "set", key).Info("set invalidated", "removed", removed)
	writeJSON(w, r, http.StatusOK, map[string]any{"key": key, "removed": removed})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.loader.Cache().Clear()
	logging.FromContext(r.Context()).Info("cache cleared")
	w.WriteHeader(http.StatusNoContent)
}
