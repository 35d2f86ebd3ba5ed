package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// jsonResponse writes v as a JSON body with status, same shape as the
// teacher's own admin.go helper of the same name.
func jsonResponse(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

type collectionSummary struct {
	Name         string `json:"name"`
	LineCount    uint64 `json:"line_count"`
	ByteCount    uint64 `json:"byte_count"`
	IndexEntries int    `json:"index_entries"`
	NextEventID  uint64 `json:"next_event_id"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	out := make([]collectionSummary, 0, len(stats))
	for _, st := range stats {
		out = append(out, collectionSummary{
			Name:         st.Name,
			LineCount:    st.LineCount,
			ByteCount:    st.ByteCount,
			IndexEntries: st.IndexEntries,
			NextEventID:  st.NextEventID,
		})
	}
	jsonResponse(w, out, http.StatusOK)
}

func (s *Server) handleTruncateCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	coll, err := s.store.Collection(name)
	if err != nil {
		jsonResponse(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if err := coll.Truncate(); err != nil {
		jsonResponse(w, map[string]string{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	s.recordAudit("truncate_collection", name)
	jsonResponse(w, map[string]string{"status": "truncated"}, http.StatusOK)
}

func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.DropCollection(name); err != nil {
		jsonResponse(w, map[string]string{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	s.recordAudit("drop_collection", name)
	jsonResponse(w, map[string]string{"status": "dropped"}, http.StatusOK)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		jsonResponse(w, []struct{}{}, http.StatusOK)
		return
	}
	entries, err := s.audit.Recent(100)
	if err != nil {
		jsonResponse(w, map[string]string{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	jsonResponse(w, entries, http.StatusOK)
}

func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		jsonResponse(w, []string{}, http.StatusOK)
		return
	}
	jsonResponse(w, s.logs.Lines(), http.StatusOK)
}

// recordAudit best-effort-logs an admin action; a failure to record is
// logged but never fails the admin request itself.
func (s *Server) recordAudit(action, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(action, detail); err != nil {
		slog.Error("failed to record audit entry", "action", action, "error", err)
	}
}
