// Package api exposes the optional ops HTTP surface of both services:
// a health probe and catalog status counts.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/skyfilter/skyfilter/internal/domain/catalog"
)

// StatsSource provides the catalog counts served by /stats.
type StatsSource interface {
	CountByStatus(ctx context.Context) (map[int]int64, error)
}

// QueueDepth reports the ingest queue depth. Nil on the process service.
type QueueDepth interface {
	Len() int
}

// Server is the ops HTTP server.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the ops server. queue may be nil.
func NewServer(addr string, stats StatsSource, queue QueueDepth) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(stats, queue),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the ops routes. queue may be nil.
func NewRouter(stats StatsSource, queue QueueDepth) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recover)
	r.Use(Logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		counts, err := stats.CountByStatus(req.Context())
		if err != nil {
			log.Error().Err(err).Msg("Stats query failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
			return
		}

		statuses := make(map[string]int64, len(counts))
		for id, n := range counts {
			statuses[catalog.StatusName(id)] = n
		}
		body := map[string]any{"posts": statuses}
		if queue != nil {
			body["queue_depth"] = queue.Len()
		}
		writeJSON(w, http.StatusOK, body)
	})

	return r
}

// Start serves until Shutdown. Intended to run in its own goroutine.
func (s *Server) Start() {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Ops server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Ops server failed")
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Ops server shutdown failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
