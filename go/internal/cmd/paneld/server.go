package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/internal/directory"
	"github.com/familypark/playzone/go/internal/panel"
)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	h := &handlers{services: services}
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("GET /api/zones/{zone}/sessions", h.listActive)
	mux.HandleFunc("POST /api/zones/{zone}/sessions", h.startTurn)
	mux.HandleFunc("POST /api/zones/{zone}/sessions/{id}/finish", h.finish)
	mux.HandleFunc("GET /api/zones/{zone}/finished", h.listFinished)
	mux.HandleFunc("DELETE /api/zones/{zone}/finished", h.clearFinished)
	mux.HandleFunc("/health", h.health)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: c.Handler(mux),
	}
}

type handlers struct {
	services *Services
}

type loginRequest struct {
	LocalCode    string `json:"local_code"`
	OperatorCode string `json:"operator_code"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.services.Directory.Login(r.Context(), req.LocalCode, req.OperatorCode)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, directory.ErrMissingCode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrLocalNotFound),
		errors.Is(err, directory.ErrOperatorNotFound),
		errors.Is(err, directory.ErrOperatorInactive):
		writeError(w, http.StatusUnauthorized, "invalid login")
	default:
		log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
	}
}

func (h *handlers) startTurn(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.zone(w, r)
	if !ok {
		return
	}

	var req panel.StartTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := controller.StartTurn(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, s)
	case errors.Is(err, panel.ErrMissingFields), errors.Is(err, panel.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Phone normalization failures land here with the reason attached.
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *handlers) finish(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.zone(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := controller.Finish(r.Context(), id); err != nil {
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to finish session")
		writeError(w, http.StatusInternalServerError, "failed to finish session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listActive(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.zone(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, controller.ActiveSessions())
}

func (h *handlers) listFinished(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.zone(w, r)
	if !ok {
		return
	}

	sessions, err := controller.FinishedSessions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list finished sessions")
		writeError(w, http.StatusInternalServerError, "failed to list finished sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *handlers) clearFinished(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.zone(w, r)
	if !ok {
		return
	}

	n, err := controller.ClearFinished(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to clear finished sessions")
		writeError(w, http.StatusInternalServerError, "failed to clear finished sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// zone resolves the {zone} path segment to its panel controller.
func (h *handlers) zone(w http.ResponseWriter, r *http.Request) (*panel.Controller, bool) {
	controller, ok := h.services.Panels[r.PathValue("zone")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown zone")
		return nil, false
	}
	return controller, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
