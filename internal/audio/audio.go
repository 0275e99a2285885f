// Package audio normalizes heterogeneous audio references (local paths,
// remote URLs, raw bytes) into the canonical waveform shape the synthesis
// engine expects, and encodes engine output into deliverable containers.
package audio

import (
	"errors"
	"time"
)

// EngineInputRate is the sample rate reference audio must be delivered at.
// The engine assumes all conditioning audio arrives at this rate.
const EngineInputRate = 16000

var (
	ErrInvalidAudioInput     = errors.New("invalid audio input")
	ErrDownloadFailed        = errors.New("audio download failed")
	ErrUnsupportedSampleRate = errors.New("unsupported sample rate")
)

// Waveform is a single-channel floating-point audio buffer. Samples are in
// [-1, 1] after normalization.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// DurationTime returns the waveform length as a time.Duration.
func (w Waveform) DurationTime() time.Duration {
	return time.Duration(w.Duration() * float64(time.Second))
}

// Empty reports whether the waveform holds no samples.
func (w Waveform) Empty() bool {
	return len(w.Samples) == 0
}

// InputKind identifies the variant of an audio Input.
type InputKind int

const (
	InputNone InputKind = iota
	InputPath
	InputURL
	InputBytes
)

// Input is a tagged union over the three supported reference-audio sources.
// The zero value means "no reference supplied". Variants are validated at
// construction; an Input never mixes kinds.
type Input struct {
	kind InputKind
	path string
	url  string
	data []byte
}

// PathInput references an audio file on the local filesystem.
func PathInput(path string) Input {
	return Input{kind: InputPath, path: path}
}

// URLInput references an audio file fetched over HTTP(S).
func URLInput(url string) Input {
	return Input{kind: InputURL, url: url}
}

// BytesInput wraps an in-memory audio blob, typically from a file upload.
func BytesInput(data []byte) Input {
	return Input{kind: InputBytes, data: data}
}

// Kind returns the variant of the input.
func (in Input) Kind() InputKind { return in.kind }

// Present reports whether any reference audio was supplied.
func (in Input) Present() bool { return in.kind != InputNone }

// ReferenceAudio is an ingested, canonical reference waveform plus its
// provenance. Path points at the backing file; when Temporary is true the
// caller owns deletion (via the TempGuard returned alongside).
type ReferenceAudio struct {
	Waveform  Waveform
	Path      string
	Origin    InputKind
	Temporary bool
}
