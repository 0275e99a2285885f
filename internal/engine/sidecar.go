package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/voicegate/voicegate/internal/audio"
)

// Sidecar wire operations. One JSON endpoint per synthesis mode keeps the
// sidecar's dispatch trivial.
const (
	opBasic           = "basic"
	opZeroShot        = "zero_shot"
	opCrossLingual    = "cross_lingual"
	opInstruct        = "instruct"
	opVoiceConversion = "voice_conversion"
)

// SidecarConfig configures the connection to the model sidecar.
type SidecarConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Sidecar is an Engine backed by a colocated HTTP model server. Reference
// waveforms travel as base64 16-bit PCM at the engine input rate; synthesized
// audio comes back the same way at the engine's native rate.
type Sidecar struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger

	initialized bool
	caps        Capabilities
	sampleRate  int
}

// NewSidecar creates an uninitialized sidecar client. Init must succeed
// before any synthesis call.
func NewSidecar(cfg SidecarConfig, log *slog.Logger) *Sidecar {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Sidecar{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type infoResponse struct {
	SampleRate   int          `json:"sample_rate"`
	Capabilities Capabilities `json:"capabilities"`
}

// Init probes the sidecar and records its native rate and capabilities.
func (s *Sidecar) Init(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/info", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: sidecar returned HTTP %d", ErrNotInitialized, resp.StatusCode)
	}

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("%w: decode info: %v", ErrNotInitialized, err)
	}
	if info.SampleRate <= 0 {
		return fmt.Errorf("%w: sidecar reported sample rate %d", ErrNotInitialized, info.SampleRate)
	}

	s.sampleRate = info.SampleRate
	s.caps = info.Capabilities
	s.initialized = true
	s.log.Info("engine sidecar ready", "sample_rate", s.sampleRate, "capabilities", s.caps)
	return nil
}

func (s *Sidecar) Capabilities() Capabilities { return s.caps }

func (s *Sidecar) SampleRate() int { return s.sampleRate }

type synthesizeRequest struct {
	Op          string  `json:"op"`
	Text        string  `json:"text,omitempty"`
	Transcript  string  `json:"transcript,omitempty"`
	Instruction string  `json:"instruction,omitempty"`
	SpeakerID   string  `json:"speaker_id,omitempty"`
	Speed       float64 `json:"speed,omitempty"`
	Seed        *int64  `json:"seed,omitempty"`
	Reference   string  `json:"reference,omitempty"` // base64 PCM16 @ 16 kHz
	Source      string  `json:"source,omitempty"`    // base64 PCM16, voice conversion
}

type synthesizeResponse struct {
	Audio      string `json:"audio"` // base64 PCM16 @ native rate
	SampleRate int    `json:"sample_rate"`
	Error      string `json:"error,omitempty"`
}

func (s *Sidecar) SynthesizeBasic(ctx context.Context, p Params) (audio.Waveform, error) {
	return s.synthesize(ctx, opBasic, p)
}

func (s *Sidecar) SynthesizeZeroShot(ctx context.Context, p Params) (audio.Waveform, error) {
	return s.synthesize(ctx, opZeroShot, p)
}

func (s *Sidecar) SynthesizeCrossLingual(ctx context.Context, p Params) (audio.Waveform, error) {
	return s.synthesize(ctx, opCrossLingual, p)
}

func (s *Sidecar) SynthesizeInstruct(ctx context.Context, p Params) (audio.Waveform, error) {
	return s.synthesize(ctx, opInstruct, p)
}

func (s *Sidecar) SynthesizeVoiceConversion(ctx context.Context, p Params) (audio.Waveform, error) {
	return s.synthesize(ctx, opVoiceConversion, p)
}

func (s *Sidecar) synthesize(ctx context.Context, op string, p Params) (audio.Waveform, error) {
	if !s.initialized {
		return audio.Waveform{}, ErrNotInitialized
	}

	wire := synthesizeRequest{
		Op:          op,
		Text:        p.Text,
		Transcript:  p.Transcript,
		Instruction: p.Instruction,
		SpeakerID:   p.SpeakerID,
		Speed:       p.Speed,
		Seed:        p.Seed,
	}
	if p.Reference != nil {
		wire.Reference = encodePCM16(*p.Reference)
	}
	if p.Source != nil {
		wire.Source = encodePCM16(*p.Source)
	}

	var out synthesizeResponse
	if err := s.post(ctx, "/synthesize", wire, &out); err != nil {
		return audio.Waveform{}, err
	}
	if out.Error != "" {
		return audio.Waveform{}, fmt.Errorf("%w: %s", ErrInference, out.Error)
	}

	rate := out.SampleRate
	if rate <= 0 {
		rate = s.sampleRate
	}
	samples, err := decodePCM16(out.Audio)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return audio.Waveform{Samples: samples, SampleRate: rate}, nil
}

type registerRequest struct {
	SpeakerID  string `json:"speaker_id"`
	Transcript string `json:"transcript"`
	Reference  string `json:"reference"`
}

// RegisterVoicePrint delegates voice-print persistence to the sidecar's own
// store; we keep no copy.
func (s *Sidecar) RegisterVoicePrint(ctx context.Context, id, transcript string, ref audio.Waveform) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	wire := registerRequest{SpeakerID: id, Transcript: transcript, Reference: encodePCM16(ref)}
	var out struct {
		Error string `json:"error,omitempty"`
	}
	if err := s.post(ctx, "/voice-prints", wire, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return fmt.Errorf("%w: %s", ErrInference, out.Error)
	}
	return nil
}

// ListVoicePrints returns the sidecar's known voice print ids.
func (s *Sidecar) ListVoicePrints(ctx context.Context) ([]string, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/voice-prints", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrInference, resp.StatusCode)
	}

	var out struct {
		Speakers []string `json:"speakers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return out.Speakers, nil
}

func (s *Sidecar) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInference, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: HTTP %d: %s", ErrInference, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrInference, err)
	}
	return nil
}

// encodePCM16 serializes a waveform as base64 little-endian 16-bit PCM.
func encodePCM16(wf audio.Waveform) string {
	raw := make([]byte, len(wf.Samples)*2)
	for i, s := range wf.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(raw[2*i:2*i+2], uint16(int16(math.Round(s*32767))))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// decodePCM16 parses base64 little-endian 16-bit PCM into float samples.
func decodePCM16(encoded string) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	out := make([]float64, len(raw)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(raw[2*i:2*i+2]))) / 32768.0
	}
	return out, nil
}
