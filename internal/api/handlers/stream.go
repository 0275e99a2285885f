package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/synth"
)

// StreamHandler serves the framed streaming transports: Server-Sent Events
// and WebSocket.
type StreamHandler struct {
	dispatcher *synth.Dispatcher
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewStreamHandler(d *synth.Dispatcher, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			// Browser origins are vetted by the CORS layer; the socket
			// itself accepts any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

type sseRequest struct {
	Text           string  `json:"text"`
	PromptText     string  `json:"prompt_text"`
	PromptAudioURL string  `json:"prompt_audio_url"`
	Language       string  `json:"language"`
	Speed          float64 `json:"speed"`
	Format         string  `json:"format"`
}

// SSE streams zero-shot synthesis as Server-Sent Events: a processing
// status, base64 audio_chunk events, then a completed status. Errors become
// a terminal error event rather than an HTTP failure once streaming begins.
func (h *StreamHandler) SSE(w http.ResponseWriter, r *http.Request) {
	var req sseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	var ref audio.Input
	if req.PromptAudioURL != "" {
		ref = audio.URLInput(req.PromptAudioURL)
	}

	ch, _ := h.dispatcher.SynthesizeStream(r.Context(), synth.Request{
		Text:       req.Text,
		Mode:       synth.ModeZeroShot,
		Transcript: req.PromptText,
		Reference:  ref,
		Language:   req.Language,
		Speed:      req.Speed,
		Format:     audio.ParseFormat(req.Format),
		Stream:     true,
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendEvent(w, flusher, map[string]string{"status": "processing", "message": "synthesis started"})

	for chunk := range ch {
		if chunk.Err != nil {
			sendEvent(w, flusher, map[string]string{"error": chunk.Err.Error()})
			return
		}
		sendEvent(w, flusher, map[string]string{
			"type": "audio_chunk",
			"data": base64.StdEncoding.EncodeToString(chunk.Data),
		})
	}

	sendEvent(w, flusher, map[string]string{"status": "completed", "message": "synthesis complete"})
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

type wsRequest struct {
	Text           string  `json:"text"`
	Mode           string  `json:"mode"`
	Speaker        string  `json:"speaker"`
	Language       string  `json:"language"`
	Speed          float64 `json:"speed"`
	Format         string  `json:"format"`
	PromptText     string  `json:"prompt_text"`
	PromptAudioURL string  `json:"prompt_audio_url"`
	InstructText   string  `json:"instruct_text"`
}

type wsEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`
}

// WS serves framed streaming over one WebSocket connection. Each received
// JSON message is an independent synthesis request; the connection stays
// open across requests, and a malformed or failing request produces an
// error envelope instead of closing the socket.
func (h *StreamHandler) WS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.send(conn, wsEnvelope{Type: "error", Message: "invalid request payload"})
			continue
		}
		if req.Text == "" {
			h.send(conn, wsEnvelope{Type: "error", Message: "text is required"})
			continue
		}

		h.serveOne(r, conn, req)
	}
}

// serveOne runs a single synthesis request over an established socket.
func (h *StreamHandler) serveOne(r *http.Request, conn *websocket.Conn, req wsRequest) {
	mode, err := synth.ParseMode(req.Mode)
	if err != nil {
		h.send(conn, wsEnvelope{Type: "error", Message: err.Error()})
		return
	}
	if req.Mode == "" {
		mode = synth.ModeBasic
	}

	var ref audio.Input
	if req.PromptAudioURL != "" {
		ref = audio.URLInput(req.PromptAudioURL)
	}

	ch, _ := h.dispatcher.SynthesizeStream(r.Context(), synth.Request{
		Text:        req.Text,
		Mode:        mode,
		Speaker:     req.Speaker,
		Language:    req.Language,
		Speed:       req.Speed,
		Format:      audio.ParseFormat(req.Format),
		Transcript:  req.PromptText,
		Reference:   ref,
		Instruction: req.InstructText,
		Stream:      true,
	})

	if !h.send(conn, wsEnvelope{Type: "status", Message: "synthesis started"}) {
		return
	}

	for chunk := range ch {
		if chunk.Err != nil {
			h.send(conn, wsEnvelope{Type: "error", Message: chunk.Err.Error()})
			return
		}
		if !h.send(conn, wsEnvelope{Type: "audio_chunk", Data: base64.StdEncoding.EncodeToString(chunk.Data)}) {
			return
		}
	}

	h.send(conn, wsEnvelope{Type: "end", Message: "synthesis complete"})
}

func (h *StreamHandler) send(conn *websocket.Conn, env wsEnvelope) bool {
	if err := conn.WriteJSON(env); err != nil {
		h.log.Warn("websocket write failed", "error", err)
		return false
	}
	return true
}
