package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// WAV container support. PCM16 and float32 payloads cover everything the
// engine sidecar and the fixture files produce; other containers go through
// the ffmpeg transcode path in ingest.go.

var errNotWAV = errors.New("not a RIFF/WAVE file")

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// pcm holds decoded, still-interleaved sample data.
type pcm struct {
	channels   int
	sampleRate int
	samples    []float64 // interleaved
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// decodeWAV parses a WAV file into interleaved float64 samples.
func decodeWAV(data []byte) (*pcm, error) {
	if !IsWAV(data) {
		return nil, errNotWAV
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body // tolerate truncated size fields
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav: fmt chunk too short (%d bytes)", size)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("wav: data chunk before fmt chunk")
			}
			samples, err := decodeSamples(data[body:body+size], format, bits)
			if err != nil {
				return nil, err
			}
			return &pcm{
				channels:   int(channels),
				sampleRate: int(sampleRate),
				samples:    samples,
			}, nil
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	return nil, errors.New("wav: no data chunk found")
}

func decodeSamples(raw []byte, format, bits uint16) ([]float64, error) {
	switch {
	case format == wavFormatPCM && bits == 16:
		n := len(raw) / 2
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(raw[2*i : 2*i+2]))
			out[i] = float64(v) / 32768.0
		}
		return out, nil
	case format == wavFormatFloat && bits == 32:
		n := len(raw) / 4
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			u := binary.LittleEndian.Uint32(raw[4*i : 4*i+4])
			out[i] = float64(math.Float32frombits(u))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wav: unsupported encoding (format %d, %d bit)", format, bits)
	}
}

// EncodeWAV writes a mono waveform as 16-bit PCM WAV.
func EncodeWAV(w io.Writer, wf Waveform) error {
	if wf.SampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", wf.SampleRate)
	}

	dataLen := len(wf.Samples) * 2
	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, uint32(36+dataLen))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&hdr, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&hdr, binary.LittleEndian, uint32(wf.SampleRate))
	binary.Write(&hdr, binary.LittleEndian, uint32(wf.SampleRate*2)) // byte rate
	binary.Write(&hdr, binary.LittleEndian, uint16(2))               // block align
	binary.Write(&hdr, binary.LittleEndian, uint16(16))              // bits
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, uint32(dataLen))

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}

	body := make([]byte, dataLen)
	for i, s := range wf.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(s * 32767))
		binary.LittleEndian.PutUint16(body[2*i:2*i+2], uint16(v))
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wav: write samples: %w", err)
	}
	return nil
}

// EncodeWAVBytes is EncodeWAV into a fresh buffer.
func EncodeWAVBytes(wf Waveform) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeWAV(&buf, wf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
