package coordinator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"exportsweep/internal/ports"
)

// Server exposes the coordinator's control surface over HTTP for the
// presentation layer.
type Server struct {
	coord   *Coordinator
	history ports.RunRepository
	logger  *slog.Logger
	router  *mux.Router
}

// NewServer wires the routes.
func NewServer(coord *Coordinator, history ports.RunRepository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{coord: coord, history: history, logger: logger, router: mux.NewRouter()}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/export/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/export/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/export/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/export/should-stop", s.handleShouldStop).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)

	return s
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type startRequest struct {
	TargetID   string `json:"targetId"`
	Background bool   `json:"background"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"runId,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ackResponse{Message: "invalid request body"})
		return
	}

	runID, err := s.coord.Start(req.TargetID, req.Background)
	if err != nil {
		s.writeJSON(w, http.StatusConflict, ackResponse{Message: err.Error()})
		return
	}

	// Immediate acknowledgement; the result arrives later as an
	// exportComplete event.
	s.writeJSON(w, http.StatusAccepted, ackResponse{Success: true, Message: "export started", RunID: runID})
}

type stopRequest struct {
	TargetID string `json:"targetId"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ackResponse{Message: "invalid request body"})
		return
	}

	if err := s.coord.Stop(req.TargetID); err != nil {
		s.writeJSON(w, http.StatusNotFound, ackResponse{Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Success: true, Message: "stop requested; in-flight item will finish"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	targetID := r.URL.Query().Get("targetId")
	if targetID == "" {
		s.writeJSON(w, http.StatusBadRequest, ackResponse{Message: "targetId is required"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.coord.Status(targetID))
}

func (s *Server) handleShouldStop(w http.ResponseWriter, r *http.Request) {
	targetID := r.URL.Query().Get("targetId")
	s.writeJSON(w, http.StatusOK, map[string]bool{"shouldStop": s.coord.ShouldStop(targetID)})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusNotImplemented, ackResponse{Message: "run history is not configured"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := s.history.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Warn("cannot load run history", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, ackResponse{Message: "cannot load run history"})
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("cannot encode response", "error", err)
	}
}
