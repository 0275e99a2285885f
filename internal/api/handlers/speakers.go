package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/speakers"
)

// SpeakerHandler serves voice-print listing and the durable custom-speaker
// registry.
type SpeakerHandler struct {
	registry *speakers.Registry
}

func NewSpeakerHandler(reg *speakers.Registry) *SpeakerHandler {
	return &SpeakerHandler{registry: reg}
}

type createSpeakerRequest struct {
	SpeakerName    string `json:"speaker_name"`
	PromptText     string `json:"prompt_text"`
	PromptAudioURL string `json:"prompt_audio_url"`
	Description    string `json:"description"`
}

// List returns the engine-side voice prints alongside the durable custom
// speakers.
func (h *SpeakerHandler) List(w http.ResponseWriter, r *http.Request) {
	prints, err := h.registry.ListEphemeral(r.Context())
	if err != nil {
		// The durable registry is still useful when the engine is down.
		prints = nil
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"speakers":        prints,
		"custom_speakers": h.registry.ListDurable(),
	})
}

// CreateCustom registers a durable custom speaker from a reference URL.
func (h *SpeakerHandler) CreateCustom(w http.ResponseWriter, r *http.Request) {
	var req createSpeakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SpeakerName == "" || req.PromptText == "" || req.PromptAudioURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "speaker_name, prompt_text and prompt_audio_url are required",
		})
		return
	}

	sp, err := h.registry.RegisterDurable(r.Context(), req.SpeakerName, req.PromptText,
		audio.URLInput(req.PromptAudioURL), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "speaker": sp})
}

// ListCustom returns the durable custom speakers.
func (h *SpeakerHandler) ListCustom(w http.ResponseWriter, r *http.Request) {
	list := h.registry.ListDurable()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"custom_speakers": list,
		"total":           len(list),
	})
}

// DeleteCustom removes a durable custom speaker and its managed audio file.
func (h *SpeakerHandler) DeleteCustom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.registry.DeleteDurable(id); err != nil {
		if errors.Is(err, speakers.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "speaker not found"})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": id})
}
