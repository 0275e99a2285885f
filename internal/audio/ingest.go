package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const downloadChunkSize = 8192

// contentTypeExt maps download content types to file extensions. Unknown
// types fall back to .wav, matching what the upstream engines assume.
var contentTypeExt = map[string]string{
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/wave":   ".wav",
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/ogg":    ".ogg",
	"audio/mp4":    ".m4a",
}

// Ingestor turns an audio Input into a canonical ReferenceAudio: a local
// backing file plus a mono waveform at the engine input rate, trimmed and
// peak-limited.
type Ingestor struct {
	client     *http.Client
	targetRate int
	protected  []string
	log        *slog.Logger
}

// NewIngestor builds an Ingestor that normalizes to targetRate. Files whose
// base name appears in protected are never deleted by the returned guards.
func NewIngestor(targetRate int, protected []string, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		client:     &http.Client{Timeout: 60 * time.Second},
		targetRate: targetRate,
		protected:  protected,
		log:        log,
	}
}

// Ingest resolves the input to a local file, decodes and normalizes it, and
// returns the reference plus a guard for any temporary file created along the
// way. The guard must be released on every exit path; it is a no-op when the
// input was an existing local file.
func (ig *Ingestor) Ingest(ctx context.Context, in Input) (*ReferenceAudio, *TempGuard, error) {
	path, temporary, err := ig.resolve(ctx, in)
	if err != nil {
		return nil, NewTempGuard("", nil, ig.log), err
	}

	guardPath := ""
	if temporary {
		guardPath = path
	}
	guard := NewTempGuard(guardPath, ig.protected, ig.log)

	wf, err := ig.decodeFile(path)
	if err != nil {
		guard.Release()
		return nil, NewTempGuard("", nil, ig.log), err
	}

	ig.validate(wf, path)

	return &ReferenceAudio{
		Waveform:  wf,
		Path:      path,
		Origin:    in.Kind(),
		Temporary: temporary,
	}, guard, nil
}

// resolve maps the input variant to a local file path. The second return
// value reports whether the file is temporary and owned by the caller.
func (ig *Ingestor) resolve(ctx context.Context, in Input) (string, bool, error) {
	switch in.Kind() {
	case InputPath:
		abs, err := filepath.Abs(in.path)
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrInvalidAudioInput, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", false, fmt.Errorf("%w: audio file not found: %s", ErrInvalidAudioInput, in.path)
		}
		return abs, false, nil

	case InputURL:
		path, err := ig.download(ctx, in.url)
		if err != nil {
			return "", false, err
		}
		return path, true, nil

	case InputBytes:
		if len(in.data) == 0 {
			return "", false, fmt.Errorf("%w: empty audio buffer", ErrInvalidAudioInput)
		}
		f, err := os.CreateTemp("", "voicegate-ref-*.wav")
		if err != nil {
			return "", false, fmt.Errorf("create temp file: %w", err)
		}
		if _, err := f.Write(in.data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", false, fmt.Errorf("write temp file: %w", err)
		}
		f.Close()
		ig.log.Info("audio bytes saved", "bytes", len(in.data), "path", f.Name())
		return f.Name(), true, nil

	default:
		return "", false, fmt.Errorf("%w: no reference audio supplied", ErrInvalidAudioInput)
	}
}

// download fetches a remote audio file to a temp file in bounded chunks.
func (ig *Ingestor) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d from %s", ErrDownloadFailed, resp.StatusCode, url)
	}

	ext, ok := contentTypeExt[resp.Header.Get("Content-Type")]
	if !ok {
		ext = ".wav"
	}

	f, err := os.CreateTemp("", "voicegate-dl-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	buf := make([]byte, downloadChunkSize)
	if _, err := io.CopyBuffer(f, resp.Body, buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	f.Close()

	ig.log.Info("audio downloaded", "url", url, "path", f.Name())
	return f.Name(), nil
}

// decodeFile loads a local audio file as a mono waveform at the target rate.
// Non-WAV containers are transcoded through ffmpeg first.
func (ig *Ingestor) decodeFile(path string) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", ErrInvalidAudioInput, err)
	}

	if !IsWAV(data) {
		data, err = ig.transcodeToWAV(path)
		if err != nil {
			return Waveform{}, err
		}
	}

	decoded, err := decodeWAV(data)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", ErrInvalidAudioInput, err)
	}

	mono := downmix(decoded)
	if len(mono) == 0 {
		return Waveform{}, fmt.Errorf("%w: decoded audio is empty", ErrInvalidAudioInput)
	}
	if decoded.sampleRate < ig.targetRate {
		return Waveform{}, fmt.Errorf("%w: source rate %d below required %d",
			ErrUnsupportedSampleRate, decoded.sampleRate, ig.targetRate)
	}
	if decoded.sampleRate > ig.targetRate {
		mono = Resample(mono, decoded.sampleRate, ig.targetRate)
	}

	mono = TrimSilence(mono, trimTopDB, trimFrameLen, trimHopLen)
	mono = LimitPeak(mono, peakCeiling)

	return Waveform{Samples: mono, SampleRate: ig.targetRate}, nil
}

// transcodeToWAV shells to ffmpeg for containers the native decoder does not
// understand (mp3, flac, ogg, ...).
func (ig *Ingestor) transcodeToWAV(path string) ([]byte, error) {
	f, err := os.CreateTemp("", "voicegate-xcode-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	f.Close()
	defer os.Remove(f.Name())

	err = ffmpeg.Input(path).
		Output(f.Name(), ffmpeg.KwArgs{"acodec": "pcm_s16le"}).
		OverWriteOutput().
		Run()
	if err != nil {
		return nil, fmt.Errorf("%w: transcode failed: %v", ErrInvalidAudioInput, err)
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return nil, fmt.Errorf("read transcoded file: %w", err)
	}
	return data, nil
}

// validate applies the advisory duration policy: decoded audio outside the
// 1-60s window is logged, not rejected.
func (ig *Ingestor) validate(wf Waveform, path string) {
	dur := wf.Duration()
	if dur < minAdvisoryDur || dur > maxAdvisoryDur {
		ig.log.Warn("reference audio duration outside advisory window",
			"path", path, "duration_s", dur)
	}
}
