// Package handler exposes the job contract over HTTP. Interactive requests
// and the operational endpoints share one dispatcher; authentication of
// callers is outside this service's boundary.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"missiondeck/internal/domain/models"
	"missiondeck/internal/httputil"
	"missiondeck/internal/jobs"
)

// Handler serves the mission content endpoints.
type Handler struct {
	dispatcher *jobs.Dispatcher
	logger     *slog.Logger
}

// New creates the HTTP handler.
func New(dispatcher *jobs.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// Routes mounts all endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/missions/{category}", h.GetMission)
	mux.HandleFunc("POST /v1/jobs", h.SubmitJob)
	mux.HandleFunc("POST /v1/maintenance/run", h.RunMaintenance)
	mux.HandleFunc("GET /health", h.Health)
	return mux
}

// GetMission serves one plan from the pool: GET /v1/missions/{category}?role=cadet
func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = models.DefaultRole
	}

	job := jobs.MissionJob{
		Category: r.PathValue("category"),
		Role:     role,
	}
	result, err := h.dispatcher.Dispatch(r.Context(), job)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

// jobEnvelope is the type-discriminated job submission body.
type jobEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitJob accepts {"type": "mission|ask|preflight|backfill", "payload": {...}}.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var env jobEnvelope
	if err := httputil.ParseJSON(w, r, &env); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := jobs.Decode(env.Type, env.Payload)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), job)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

// RunMaintenance triggers an immediate sweep. A skip (locked / too recent)
// is a 200 with ran=false, not an error.
func (h *Handler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.Dispatch(r.Context(), jobs.PreflightJob{})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
