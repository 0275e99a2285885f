package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/speakers"
	"github.com/voicegate/voicegate/internal/synth"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps pipeline errors to HTTP status codes. Validation and input
// problems are the caller's fault; everything else is a gateway failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, synth.ErrEmptyText),
		errors.Is(err, synth.ErrTextTooLong),
		errors.Is(err, synth.ErrSpeedOutOfRange),
		errors.Is(err, synth.ErrMissingReference),
		errors.Is(err, audio.ErrInvalidAudioInput),
		errors.Is(err, audio.ErrUnsupportedSampleRate):
		return http.StatusBadRequest
	case errors.Is(err, audio.ErrDownloadFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, speakers.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
