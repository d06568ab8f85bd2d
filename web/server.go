// ABOUTME: JSON API server for triggers, data pushes, and sync status
// ABOUTME: The HTTP surface collaborators and the dashboard UI talk to
package web

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opspulse/opspulse/sched"
	"github.com/opspulse/opspulse/summon"
)

type Server struct {
	db        *sql.DB
	scheduler *sched.Scheduler
	summoner  *summon.Summoner
}

func NewServer(database *sql.DB, scheduler *sched.Scheduler, summoner *summon.Summoner) *Server {
	return &Server{
		db:        database,
		scheduler: scheduler,
		summoner:  summoner,
	}
}

// Router builds the route table. Split from Start so tests can drive
// handlers through httptest without binding a port.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	// Triggers
	api.HandleFunc("/refresh/{target}", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	api.HandleFunc("/summon", s.handleSummon).Methods(http.MethodPost)

	// Collaborator push endpoints, the ones summon instructions point at
	api.HandleFunc("/kpis", s.handlePushKPI).Methods(http.MethodPost)
	api.HandleFunc("/tasks", s.handlePushTask).Methods(http.MethodPost)
	api.HandleFunc("/milestones", s.handlePushMilestone).Methods(http.MethodPost)
	api.HandleFunc("/actions", s.handlePushAction).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handlePushStatus).Methods(http.MethodPost)

	// Read side
	api.HandleFunc("/sync/status", s.handleSyncStatus).Methods(http.MethodGet)
	api.HandleFunc("/health-scores", s.handleHealthScores).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting API server at http://localhost%s", addr)
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
