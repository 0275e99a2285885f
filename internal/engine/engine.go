// Package engine defines the contract with the external voice-synthesis
// engine and a client for the HTTP sidecar that hosts it. The engine itself
// (model loading, inference) is a black box; everything here treats it as a
// set of blocking operations returning raw waveforms at a native rate.
package engine

import (
	"context"
	"errors"

	"github.com/voicegate/voicegate/internal/audio"
)

var (
	// ErrNotInitialized means the engine was never loaded. Fatal at startup.
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrInference wraps any failure surfaced by the engine during synthesis.
	ErrInference = errors.New("engine inference failed")
)

// Capabilities reports which operations the loaded model supports.
type Capabilities struct {
	Basic           bool `json:"basic"`
	ZeroShot        bool `json:"zero_shot"`
	CrossLingual    bool `json:"cross_lingual"`
	Instruct        bool `json:"instruct"`
	VoiceConversion bool `json:"voice_conversion"`
}

// Params carries everything a single synthesis call may need. Fields not
// relevant to an operation are ignored by it.
type Params struct {
	Text        string
	Transcript  string // text content of the reference audio
	Instruction string // natural-language style directive
	Reference   *audio.Waveform
	Source      *audio.Waveform // voice conversion input
	SpeakerID   string          // engine-side zero-shot voice print id
	Speed       float64
	Seed        *int64
}

// Engine is the blocking synthesis surface. Implementations are not assumed
// to be safely concurrent beyond a small degree; callers bound concurrency.
type Engine interface {
	// Init loads the model. A failure here is fatal.
	Init(ctx context.Context) error

	// Capabilities reports what the loaded model supports.
	Capabilities() Capabilities

	// SampleRate is the native rate of waveforms the engine produces.
	SampleRate() int

	SynthesizeBasic(ctx context.Context, p Params) (audio.Waveform, error)
	SynthesizeZeroShot(ctx context.Context, p Params) (audio.Waveform, error)
	SynthesizeCrossLingual(ctx context.Context, p Params) (audio.Waveform, error)
	SynthesizeInstruct(ctx context.Context, p Params) (audio.Waveform, error)
	SynthesizeVoiceConversion(ctx context.Context, p Params) (audio.Waveform, error)

	// RegisterVoicePrint persists an ephemeral zero-shot speaker inside the
	// engine's own store. This layer keeps no state beyond the id.
	RegisterVoicePrint(ctx context.Context, id, transcript string, ref audio.Waveform) error

	// ListVoicePrints returns the ids of voice prints the engine knows.
	ListVoicePrints(ctx context.Context) ([]string, error)
}
