package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davidschrooten/catalog-search-sync/internal/syncer"
)

// WatermarkReader exposes the persisted watermark for the status endpoint
type WatermarkReader interface {
	Read(ctx context.Context) time.Time
}

// Server represents the API server
type Server struct {
	syncService *syncer.Service
	watermarks  WatermarkReader

	// Serializes manually triggered runs; scheduled runs are serialized
	// by the job runner itself
	triggerMu sync.Mutex
}

// NewServer creates a new API server
func NewServer(syncService *syncer.Service, watermarks WatermarkReader) *Server {
	return &Server{
		syncService: syncService,
		watermarks:  watermarks,
	}
}

// Router setups the API routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/sync/full", s.handleTriggerFull)
	r.Post("/sync/incremental", s.handleTriggerIncremental)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response(w, http.StatusOK, map[string]interface{}{
		"watermark": s.watermarks.Read(r.Context()),
		"lastRuns":  s.syncService.LastReports(),
	})
}

func (s *Server) handleTriggerFull(w http.ResponseWriter, r *http.Request) {
	s.runTriggered(w, r, "full", s.syncService.FullSync)
}

func (s *Server) handleTriggerIncremental(w http.ResponseWriter, r *http.Request) {
	s.runTriggered(w, r, "incremental", s.syncService.IncrementalSync)
}

func (s *Server) runTriggered(w http.ResponseWriter, r *http.Request, kind string, run func(context.Context) (*syncer.Report, error)) {
	if !s.triggerMu.TryLock() {
		http.Error(w, "a sync run is already in progress", http.StatusConflict)
		return
	}
	defer s.triggerMu.Unlock()

	report, err := run(r.Context())
	if err != nil {
		log.Printf("Triggered %s sync failed: %v", kind, err)
		http.Error(w, "sync run failed", http.StatusInternalServerError)
		return
	}

	response(w, http.StatusOK, report)
}

func response(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
