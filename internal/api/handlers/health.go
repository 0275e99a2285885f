package handlers

import (
	"net/http"

	"github.com/voicegate/voicegate/internal/engine"
	"github.com/voicegate/voicegate/internal/speakers"
)

// HealthHandler serves the banner, liveness and engine status endpoints.
type HealthHandler struct {
	eng      engine.Engine
	registry *speakers.Registry
}

func NewHealthHandler(eng engine.Engine, reg *speakers.Registry) *HealthHandler {
	return &HealthHandler{eng: eng, registry: reg}
}

// Root returns the service banner.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "voicegate",
		"message": "multi-mode speech synthesis gateway",
		"docs":    "/api/v1/status",
	})
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports engine capabilities, the native output rate and speaker
// counts. Engine errors degrade the report instead of failing it.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"success":         true,
		"capabilities":    h.eng.Capabilities(),
		"sample_rate":     h.eng.SampleRate(),
		"custom_speakers": len(h.registry.ListDurable()),
	}

	prints, err := h.registry.ListEphemeral(r.Context())
	if err != nil {
		resp["engine"] = "degraded: " + err.Error()
	} else {
		resp["engine"] = "ok"
		resp["voice_prints"] = len(prints)
	}

	writeJSON(w, http.StatusOK, resp)
}
