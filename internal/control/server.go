// Package control exposes a small local HTTP surface while a recording is
// running, so scripts and desktop keybindings can stop the session without
// the notification affordance.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bryanchriswhite/screenrec/internal/logger"
)

// Status is the state reported by GET /api/status.
type Status struct {
	State      string `json:"state"`
	OutputPath string `json:"output_path"`
	Pid        int    `json:"pid"`
	ElapsedSec int    `json:"elapsed_sec"`
}

// Server represents the HTTP control server
type Server struct {
	router *mux.Router
	srv    *http.Server

	status func() Status
	stop   func()
}

// NewServer creates a control server. status supplies the current session
// snapshot; stop triggers the same path as the clickable stop notification.
func NewServer(status func() Status, stop func()) *Server {
	s := &Server{
		router: mux.NewRouter(),
		status: status,
		stop:   stop,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start begins serving on localhost only; the control surface is not meant
// to leave the machine.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: s.router,
	}
	logger.WithComponent("control").Info().
		Str("addr", s.srv.Addr).Msg("control server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the control server.
func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	logger.WithComponent("control").Info().Msg("stop requested over HTTP")
	s.stop()
	writeJSON(w, http.StatusOK, map[string]string{"result": "stopping"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("control").Error().Err(err).Msg("failed to encode response")
	}
}
