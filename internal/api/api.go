// Package api exposes the HTTP intake surface of the alert engine. Any
// external command surface (chat commands, forms) talks to these endpoints
// after translating user input into the condition shape; the engine never
// sees raw chat traffic.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"pricewatch/internal/model"
	"pricewatch/internal/registry"
)

// Server holds the intake handlers' dependencies.
type Server struct {
	reg *registry.Registry
	log *slog.Logger
}

// NewServer creates the intake server over a registry.
func NewServer(reg *registry.Registry, log *slog.Logger) *Server {
	return &Server{reg: reg, log: log}
}

// Router sets up HTTP routes for the intake API.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/alerts", s.handleAlerts)
	mux.HandleFunc("/api/v1/alerts/", s.handleAlertByID)

	return mux
}

type createRequest struct {
	Owner     string          `json:"owner"`
	Asset     string          `json:"asset"`
	OneShot   *bool           `json:"one_shot,omitempty"`
	Condition model.Condition `json:"condition"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createAlert(w, r)
	case http.MethodGet:
		s.listAlerts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createAlert(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.Owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	oneShot := true
	if req.OneShot != nil {
		oneShot = *req.OneShot
	}
	id, err := s.reg.Add(model.Alert{
		Owner:     req.Owner,
		Asset:     req.Asset,
		OneShot:   oneShot,
		Condition: req.Condition,
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidCondition) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("add alert failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info("alert created", "id", id, "owner", req.Owner, "asset", req.Asset)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner query parameter is required")
		return
	}
	alerts := s.reg.ListByOwner(owner)
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	owner := r.URL.Query().Get("owner")

	if err := s.reg.Cancel(id, owner); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		s.log.Error("cancel failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	c := s.reg.Count()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"alerts": map[string]int{
			"total":     c.Total,
			"active":    c.Active,
			"fired":     c.Fired,
			"cancelled": c.Cancelled,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
