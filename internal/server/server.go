// Package server exposes a read-only HTTP view over the plan artifacts in
// a store directory. It never writes; mutation stays on the orchestrator's
// persistence path.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/avaricia/agentflow/internal/log"
	"github.com/avaricia/agentflow/internal/plan"
	"github.com/avaricia/agentflow/internal/store"
)

// Server serves the viewer API.
type Server struct {
	store  *store.Store
	logger *log.Logger
	http   *http.Server
}

// New creates a viewer server bound to addr.
func New(st *store.Store, addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	s := &Server{store: st, logger: logger}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/plans", s.handleList)
	mux.HandleFunc("GET /api/plans/{id}", s.handlePlan)
	mux.HandleFunc("GET /api/plans/{id}/nodes/{node}", s.handleNode)
	return mux
}

// ListenAndServe blocks until ctx is cancelled, then shuts down
// gracefully with a short drain window.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("viewer listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type planSummary struct {
	PlanID  string          `json:"plan_id"`
	Name    string          `json:"name"`
	Status  plan.PlanStatus `json:"status"`
	Version int             `json:"version"`
	Path    string          `json:"path"`
	Counts  map[string]int  `json:"node_counts"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	paths, err := s.store.List()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]planSummary, 0, len(paths))
	for _, path := range paths {
		snap, err := s.store.Load(path)
		if err != nil {
			// Unreadable artifacts are skipped, not fatal to the listing.
			s.logger.Warn("skipping unreadable artifact", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, summarize(snap))
	}
	s.respond(w, http.StatusOK, map[string]any{"plans": summaries})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	snap := s.find(r.PathValue("id"))
	if snap == nil {
		s.fail(w, http.StatusNotFound, nil)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"summary": summarize(snap),
		"plan":    snap.Plan,
	})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	snap := s.find(r.PathValue("id"))
	if snap == nil {
		s.fail(w, http.StatusNotFound, nil)
		return
	}
	node := snap.Plan.NodeByID(r.PathValue("node"))
	if node == nil {
		s.fail(w, http.StatusNotFound, nil)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"plan_id": snap.Plan.ID,
		"node":    node,
	})
}

// find scans the store for the artifact whose plan_id matches.
func (s *Server) find(planID string) *store.Snapshot {
	paths, err := s.store.List()
	if err != nil {
		return nil
	}
	for _, path := range paths {
		snap, err := s.store.Load(path)
		if err != nil {
			continue
		}
		if snap.Plan.ID == planID {
			return snap
		}
	}
	return nil
}

func summarize(snap *store.Snapshot) planSummary {
	counts := make(map[string]int)
	for status, count := range snap.Plan.Counts() {
		counts[string(status)] = count
	}
	return planSummary{
		PlanID:  snap.Plan.ID,
		Name:    snap.Plan.Name,
		Status:  snap.Plan.Status,
		Version: snap.Lock.Version,
		Path:    snap.Path,
		Counts:  counts,
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	body := map[string]any{"error": http.StatusText(status)}
	if err != nil {
		body["detail"] = err.Error()
	}
	s.respond(w, status, body)
}
