// Package server exposes the read side of the pipeline over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/classify"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
)

// Server provides the HTTP API over the classification store.
type Server struct {
	store     store.Store
	log       logging.Logger
	port      int
	threshold float64
}

// New creates a new HTTP server. threshold is the configured flagging
// cutoff, used as the default min_score for /api/v1/flagged.
func New(st store.Store, log logging.Logger, port int, threshold float64) *Server {
	if port == 0 {
		port = 8080
	}
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{store: st, log: log, port: port, threshold: threshold}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/flagged", s.handleFlagged)
	mux.HandleFunc("/api/v1/mentions", s.handleMentions)
	mux.HandleFunc("/api/v1/categories", s.handleCategories)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.WithFields(logging.Fields{"addr": addr}).Info("http server listening")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFlagged(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.ClassifiedOpts{MinHate: s.threshold}
	q := r.URL.Query()
	if v := q.Get("min_score"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts.MinHate = f
		}
	}
	if v := q.Get("type"); v != "" {
		opts.Types = []item.Type{item.Type(v)}
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = t
		}
	}
	opts.Limit = limitParam(q.Get("limit"))

	rows, err := s.store.ListClassified(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleMentions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	opts := store.TermMentionOpts{
		From:  q.Get("from"),
		To:    q.Get("to"),
		Terms: splitCSV(q.Get("terms")),
		Limit: limitParam(q.Get("limit")),
	}
	if v := q.Get("type"); v != "" {
		opts.Types = []item.Type{item.Type(v)}
	}

	rows, err := s.store.ListTermMentions(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	opts := store.CategoryMentionOpts{
		Category: q.Get("category"),
		Terms:    splitCSV(q.Get("terms")),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Limit:    limitParam(q.Get("limit")),
	}

	rows, err := s.store.ListCategoryMentions(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	counts, err := s.store.Summary(r.Context(), s.threshold)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":      counts,
		"threshold": s.threshold,
	})
}

func limitParam(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
