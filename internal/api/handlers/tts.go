package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/synth"
)

// maxUploadBytes caps multipart reference uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// TTSHandler serves the synthesis endpoints.
type TTSHandler struct {
	dispatcher *synth.Dispatcher
}

func NewTTSHandler(d *synth.Dispatcher) *TTSHandler {
	return &TTSHandler{dispatcher: d}
}

// TTSResponse is the JSON body for non-streaming synthesis.
type TTSResponse struct {
	Success      bool    `json:"success"`
	AudioURL     string  `json:"audio_url,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	FileSize     int64   `json:"file_size,omitempty"`
	SampleRate   int     `json:"sample_rate,omitempty"`
	RequestID    string  `json:"request_id,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

type basicRequest struct {
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker"`
	Language   string  `json:"language"`
	Speed      float64 `json:"speed"`
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
}

type instructRequest struct {
	Text         string  `json:"text"`
	InstructText string  `json:"instruct_text"`
	Speaker      string  `json:"speaker"`
	Speed        float64 `json:"speed"`
	Format       string  `json:"format"`
}

type ultimateRequest struct {
	Text            string  `json:"text"`
	Mode            string  `json:"mode"`
	Language        string  `json:"language"`
	Speed           float64 `json:"speed"`
	Speaker         string  `json:"speaker"`
	PromptText      string  `json:"prompt_text"`
	PromptAudioURL  string  `json:"prompt_audio_url"`
	InstructText    string  `json:"instruct_text"`
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	Stream          bool    `json:"stream"`
	Seed            *int64  `json:"seed"`
	SaveSpeakerID   string  `json:"save_speaker_id"`
	UseSavedSpeaker string  `json:"use_saved_speaker"`
}

// Basic synthesizes with the engine's default voice or a pretrained speaker.
func (h *TTSHandler) Basic(w http.ResponseWriter, r *http.Request) {
	var req basicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.complete(w, r, synth.Request{
		Text:       req.Text,
		Mode:       synth.ModeBasic,
		Speaker:    req.Speaker,
		Language:   req.Language,
		Speed:      req.Speed,
		Format:     audio.ParseFormat(req.Format),
		SampleRate: req.SampleRate,
	})
}

// ZeroShot clones a voice from uploaded or referenced prompt audio. Accepts
// multipart form data with an optional prompt_audio file part.
func (h *TTSHandler) ZeroShot(w http.ResponseWriter, r *http.Request) {
	req, ok := h.formRequest(w, r)
	if !ok {
		return
	}
	req.Mode = synth.ModeZeroShot

	if req.Stream {
		h.streamBody(w, r, req)
		return
	}
	h.complete(w, r, req)
}

// CrossLingual synthesizes text in a different language than the reference.
func (h *TTSHandler) CrossLingual(w http.ResponseWriter, r *http.Request) {
	req, ok := h.formRequest(w, r)
	if !ok {
		return
	}
	req.Mode = synth.ModeCrossLingual
	h.complete(w, r, req)
}

// Instruct drives synthesis with a natural-language style instruction.
func (h *TTSHandler) Instruct(w http.ResponseWriter, r *http.Request) {
	var req instructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.complete(w, r, synth.Request{
		Text:        req.Text,
		Mode:        synth.ModeInstruct,
		Speaker:     req.Speaker,
		Speed:       req.Speed,
		Instruction: req.InstructText,
		Format:      audio.ParseFormat(req.Format),
	})
}

// Ultimate accepts the full request surface as JSON: every mode, auto
// resolution, seeds, saved-speaker reuse and the streaming flag.
func (h *TTSHandler) Ultimate(w http.ResponseWriter, r *http.Request) {
	var req ultimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sreq := req.toSynth()
	if sreq.Stream {
		h.streamBody(w, r, sreq)
		return
	}
	h.complete(w, r, sreq)
}

// UltimateUpload is the multipart variant of Ultimate: same fields as form
// values plus an optional prompt_audio file part.
func (h *TTSHandler) UltimateUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	req := ultimateRequest{
		Text:            r.FormValue("text"),
		Mode:            r.FormValue("mode"),
		Language:        r.FormValue("language"),
		Speaker:         r.FormValue("speaker"),
		PromptText:      r.FormValue("prompt_text"),
		PromptAudioURL:  r.FormValue("prompt_audio_url"),
		InstructText:    r.FormValue("instruct_text"),
		Format:          r.FormValue("format"),
		SaveSpeakerID:   r.FormValue("save_speaker_id"),
		UseSavedSpeaker: r.FormValue("use_saved_speaker"),
	}
	if v := r.FormValue("speed"); v != "" {
		req.Speed, _ = strconv.ParseFloat(v, 64)
	}
	if v := r.FormValue("sample_rate"); v != "" {
		req.SampleRate, _ = strconv.Atoi(v)
	}
	if v := r.FormValue("stream"); v != "" {
		req.Stream, _ = strconv.ParseBool(v)
	}
	if v := r.FormValue("seed"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.Seed = &seed
		}
	}

	sreq := req.toSynth()
	if ref, ok := uploadedAudio(r); ok {
		sreq.Reference = ref
	}

	if sreq.Stream {
		h.streamBody(w, r, sreq)
		return
	}
	h.complete(w, r, sreq)
}

// Stream returns raw encoded audio as a chunked response body.
func (h *TTSHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req ultimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.streamBody(w, r, req.toSynth())
}

func (req ultimateRequest) toSynth() synth.Request {
	mode, err := synth.ParseMode(req.Mode)
	if err != nil {
		mode = synth.ModeAuto
	}

	var ref audio.Input
	if req.PromptAudioURL != "" {
		ref = audio.URLInput(req.PromptAudioURL)
	}

	return synth.Request{
		Text:            req.Text,
		Mode:            mode,
		Language:        req.Language,
		Speed:           req.Speed,
		Format:          audio.ParseFormat(req.Format),
		SampleRate:      req.SampleRate,
		Speaker:         req.Speaker,
		Transcript:      req.PromptText,
		Reference:       ref,
		Instruction:     req.InstructText,
		Stream:          req.Stream,
		Seed:            req.Seed,
		SaveSpeakerID:   req.SaveSpeakerID,
		UseSavedSpeaker: req.UseSavedSpeaker,
	}
}

// formRequest parses the shared multipart surface of the per-mode endpoints.
func (h *TTSHandler) formRequest(w http.ResponseWriter, r *http.Request) (synth.Request, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return synth.Request{}, false
	}

	req := synth.Request{
		Text:       r.FormValue("text"),
		Language:   r.FormValue("language"),
		Transcript: r.FormValue("prompt_text"),
		Format:     audio.ParseFormat(r.FormValue("format")),
	}
	if v := r.FormValue("speed"); v != "" {
		req.Speed, _ = strconv.ParseFloat(v, 64)
	}
	if v := r.FormValue("stream"); v != "" {
		req.Stream, _ = strconv.ParseBool(v)
	}

	if ref, ok := uploadedAudio(r); ok {
		req.Reference = ref
	} else if u := r.FormValue("prompt_audio_url"); u != "" {
		req.Reference = audio.URLInput(u)
	}

	return req, true
}

// uploadedAudio reads the optional prompt_audio file part.
func uploadedAudio(r *http.Request) (audio.Input, bool) {
	file, _, err := r.FormFile("prompt_audio")
	if err != nil {
		return audio.Input{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return audio.Input{}, false
	}
	return audio.BytesInput(data), true
}

// complete runs a non-streaming synthesis and writes the standard response.
func (h *TTSHandler) complete(w http.ResponseWriter, r *http.Request, req synth.Request) {
	result, err := h.dispatcher.Synthesize(r.Context(), req)
	if err != nil {
		writeJSON(w, statusFor(err), TTSResponse{
			Success:      false,
			RequestID:    result.RequestID,
			ErrorMessage: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, TTSResponse{
		Success:    true,
		AudioURL:   "/audio/" + path.Base(result.ArtifactPath),
		Duration:   result.Duration,
		FileSize:   result.FileSize,
		SampleRate: result.SampleRate,
		RequestID:  result.RequestID,
	})
}

// streamBody writes the encoded audio as a chunked body, flushing each chunk.
func (h *TTSHandler) streamBody(w http.ResponseWriter, r *http.Request, req synth.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	ch, requestID := h.dispatcher.SynthesizeStream(r.Context(), req)

	wroteHeader := false
	for chunk := range ch {
		if chunk.Err != nil {
			if !wroteHeader {
				writeError(w, chunk.Err)
			}
			return
		}
		if !wroteHeader {
			w.Header().Set("Content-Type", req.Format.ContentType())
			w.Header().Set("X-Request-ID", requestID)
			w.WriteHeader(http.StatusOK)
			wroteHeader = true
		}
		if _, err := w.Write(chunk.Data); err != nil {
			return
		}
		flusher.Flush()
	}
}
