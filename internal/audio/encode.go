package audio

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Format is a closed enumeration of deliverable audio containers.
type Format int

const (
	FormatWAV Format = iota
	FormatMP3
	FormatFLAC
)

// ParseFormat maps a wire-format string to a Format. Unknown values fall
// back to WAV, matching the upstream API's lenient parsing.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "mp3":
		return FormatMP3
	case "flac":
		return FormatFLAC
	default:
		return FormatWAV
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatFLAC:
		return "flac"
	default:
		return "wav"
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

func (f Format) String() string { return f.Ext() }

// Encoder turns waveforms into container bytes. WAV is encoded natively;
// MP3 and FLAC go through ffmpeg.
type Encoder struct {
	log *slog.Logger
}

// NewEncoder creates an Encoder.
func NewEncoder(log *slog.Logger) *Encoder {
	if log == nil {
		log = slog.Default()
	}
	return &Encoder{log: log}
}

// Encode serializes the waveform into the requested container.
func (e *Encoder) Encode(wf Waveform, format Format) ([]byte, error) {
	switch format {
	case FormatWAV:
		var buf bytes.Buffer
		if err := EncodeWAV(&buf, wf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatMP3, FormatFLAC:
		return e.encodeViaFFmpeg(wf, format)
	default:
		return nil, fmt.Errorf("unknown audio format %d", format)
	}
}

// EncodeToFile serializes the waveform into the requested container at path.
func (e *Encoder) EncodeToFile(wf Waveform, format Format, path string) error {
	data, err := e.Encode(wf, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func (e *Encoder) encodeViaFFmpeg(wf Waveform, format Format) ([]byte, error) {
	in, err := os.CreateTemp("", "voicegate-enc-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(in.Name())

	if err := EncodeWAV(in, wf); err != nil {
		in.Close()
		return nil, err
	}
	in.Close()

	out, err := os.CreateTemp("", "voicegate-enc-*."+format.Ext())
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	codec := "libmp3lame"
	if format == FormatFLAC {
		codec = "flac"
	}

	err = ffmpeg.Input(in.Name()).
		Output(out.Name(), ffmpeg.KwArgs{"acodec": codec}).
		OverWriteOutput().
		Run()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format.Ext(), err)
	}

	data, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, fmt.Errorf("read encoded file: %w", err)
	}
	return data, nil
}
