package synth

import (
	"errors"
	"fmt"

	"github.com/voicegate/voicegate/internal/audio"
)

const (
	maxTextLength = 1000
	minSpeed      = 0.5
	maxSpeed      = 2.0
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrTextTooLong     = fmt.Errorf("text exceeds %d characters", maxTextLength)
	ErrSpeedOutOfRange = fmt.Errorf("speed must be between %.1f and %.1f", minSpeed, maxSpeed)

	// ErrMissingReference means the chosen mode needs reference audio or a
	// transcript that was not supplied and cannot be substituted.
	ErrMissingReference = errors.New("missing required reference")
)

// Request describes one synthesis call. It is built once by the transport
// layer and consumed exactly once by the Dispatcher.
type Request struct {
	Text        string
	Mode        Mode
	Language    string
	Speed       float64
	Format      audio.Format
	SampleRate  int // 0 keeps the engine's native rate
	Speaker     string
	Transcript  string // text content of the reference audio
	Reference   audio.Input
	Instruction string
	Stream      bool
	Seed        *int64

	// UseSavedSpeaker reuses a previously registered voice print; it takes
	// precedence over any freshly supplied reference.
	UseSavedSpeaker string
	// SaveSpeakerID persists the supplied reference as an ephemeral voice
	// print under this id before synthesis.
	SaveSpeakerID string
}

// Validate checks the request bounds. Speed zero means "unset" and is
// normalized to 1.0 by the dispatcher.
func (r *Request) Validate() error {
	if r.Text == "" && r.Mode != ModeVoiceConversion {
		return ErrEmptyText
	}
	if len([]rune(r.Text)) > maxTextLength {
		return ErrTextTooLong
	}
	if r.Speed != 0 && (r.Speed < minSpeed || r.Speed > maxSpeed) {
		return ErrSpeedOutOfRange
	}
	return nil
}
