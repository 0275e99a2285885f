package synth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/engine"
	"github.com/voicegate/voicegate/internal/metrics"
	"github.com/voicegate/voicegate/internal/speakers"
)

// StreamChunkSize bounds memory per in-flight streamed response and gives
// the transport layer natural backpressure points.
const StreamChunkSize = 8192

// Transcript substituted when basic mode falls back to a default reference.
const fallbackTranscript = "你好"

// Result describes a completed non-streaming synthesis.
type Result struct {
	RequestID    string
	ArtifactPath string
	Duration     float64 // seconds
	FileSize     int64
	SampleRate   int
	ModeUsed     Mode
}

// Chunk is one element of a streamed synthesis. Err, when set, terminates
// the stream.
type Chunk struct {
	Data  []byte
	Index int
	Final bool
	Err   error
}

// DispatcherConfig carries the dispatcher's tunables.
type DispatcherConfig struct {
	// MaxConcurrent bounds in-flight engine calls. The engine is not known
	// to be safely concurrent beyond a small degree; one slot serializes it.
	MaxConcurrent int
	OutputDir     string
	// FixturePaths are searched, in order, for a default reference sample
	// when a mode needs one and the caller supplied none.
	FixturePaths []string
}

// Dispatcher owns the request pipeline: mode resolution, reference
// acquisition, the bounded engine call, post-processing and delivery.
type Dispatcher struct {
	eng      engine.Engine
	ingestor *audio.Ingestor
	registry *speakers.Registry
	encoder  *audio.Encoder
	sem      *semaphore.Weighted
	cfg      DispatcherConfig
	met      *metrics.Metrics
	log      *slog.Logger
}

// NewDispatcher wires the pipeline. met may be nil.
func NewDispatcher(eng engine.Engine, ingestor *audio.Ingestor, registry *speakers.Registry,
	encoder *audio.Encoder, cfg DispatcherConfig, met *metrics.Metrics, log *slog.Logger) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		eng:      eng,
		ingestor: ingestor,
		registry: registry,
		encoder:  encoder,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:      cfg,
		met:      met,
		log:      log,
	}
}

// Synthesize runs one request to completion and writes the encoded artifact
// to a per-request file. The returned Result always carries the request id;
// on error it is the only populated field besides ModeUsed.
func (d *Dispatcher) Synthesize(ctx context.Context, req Request) (Result, error) {
	requestID := uuid.NewString()
	start := time.Now()

	wf, mode, err := d.run(ctx, requestID, req)
	d.observe(mode, err, start)
	if err != nil {
		return Result{RequestID: requestID, ModeUsed: mode}, err
	}

	if err := os.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
		return Result{RequestID: requestID, ModeUsed: mode}, fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(d.cfg.OutputDir, requestID+"."+req.Format.Ext())
	if err := d.encoder.EncodeToFile(wf, req.Format, path); err != nil {
		return Result{RequestID: requestID, ModeUsed: mode}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{RequestID: requestID, ModeUsed: mode}, fmt.Errorf("stat artifact: %w", err)
	}

	d.log.Info("synthesis complete",
		"request_id", requestID, "mode", mode.String(),
		"duration_s", wf.Duration(), "bytes", info.Size())

	return Result{
		RequestID:    requestID,
		ArtifactPath: path,
		Duration:     wf.Duration(),
		FileSize:     info.Size(),
		SampleRate:   wf.SampleRate,
		ModeUsed:     mode,
	}, nil
}

// SynthesizeStream runs one request and yields the encoded bytes in fixed
// 8 KiB chunks. Work happens on a separate goroutine; the channel is closed
// after the final chunk or an error chunk. The consumer stopping (context
// cancellation) stops delivery, though an engine call already in flight runs
// to completion and its output is discarded.
func (d *Dispatcher) SynthesizeStream(ctx context.Context, req Request) (<-chan Chunk, string) {
	requestID := uuid.NewString()
	out := make(chan Chunk, 4)

	go func() {
		defer close(out)
		start := time.Now()

		wf, mode, err := d.run(ctx, requestID, req)
		d.observe(mode, err, start)
		if err != nil {
			out <- Chunk{Err: err}
			return
		}

		data, err := d.encoder.Encode(wf, req.Format)
		if err != nil {
			out <- Chunk{Err: err}
			return
		}

		index := 0
		for off := 0; off < len(data); off += StreamChunkSize {
			end := off + StreamChunkSize
			if end > len(data) {
				end = len(data)
			}
			chunk := Chunk{Data: data[off:end], Index: index, Final: end == len(data)}
			select {
			case out <- chunk:
				if d.met != nil {
					d.met.StreamChunks.Inc()
				}
			case <-ctx.Done():
				return
			}
			index++
		}
	}()

	return out, requestID
}

// run executes the shared pipeline up to the post-processed waveform.
func (d *Dispatcher) run(ctx context.Context, requestID string, req Request) (audio.Waveform, Mode, error) {
	if err := req.Validate(); err != nil {
		return audio.Waveform{}, req.Mode, err
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}

	mode := req.Mode
	if mode == ModeAuto {
		mode = Resolve(req)
		d.log.Info("auto mode resolved", "request_id", requestID, "mode", mode.String())
	}

	// Optional voice-print persistence happens before any saved-speaker
	// substitution, so a request can save the supplied reference and speak
	// with a stored one in the same call.
	if req.SaveSpeakerID != "" && req.Reference.Present() && req.Transcript != "" {
		if err := d.registry.RegisterEphemeral(ctx, req.SaveSpeakerID, req.Transcript, req.Reference); err != nil {
			d.log.Warn("voice print save failed", "request_id", requestID,
				"speaker_id", req.SaveSpeakerID, "error", err)
		}
	}

	// A saved voice print takes precedence over any freshly supplied
	// reference. A durable custom speaker resolves to its stored audio and
	// transcript; anything else is treated as an engine-side print id.
	speakerID := req.Speaker
	if req.UseSavedSpeaker != "" {
		req.Reference = audio.Input{}
		req.Transcript = ""
		if sp, err := d.registry.GetDurable(req.UseSavedSpeaker); err == nil {
			req.Reference = audio.PathInput(sp.AudioPath)
			req.Transcript = sp.Transcript
		} else {
			speakerID = req.UseSavedSpeaker
		}
	}

	ref, guard, err := d.acquireReference(ctx, mode, req, speakerID != "")
	if err != nil {
		return audio.Waveform{}, mode, err
	}
	defer guard.Release()

	transcript := req.Transcript
	if mode == ModeZeroShot && transcript == "" && speakerID == "" {
		return audio.Waveform{}, mode, fmt.Errorf("%w: zero-shot synthesis needs the reference transcript", ErrMissingReference)
	}
	if (mode == ModeInstruct || mode == ModeInstruct2) && req.Instruction == "" {
		return audio.Waveform{}, mode, fmt.Errorf("%w: instruct synthesis needs an instruction", ErrMissingReference)
	}
	if mode == ModeBasic && transcript == "" {
		transcript = fallbackTranscript
	}

	params := engine.Params{
		Text:        req.Text,
		Transcript:  transcript,
		Instruction: req.Instruction,
		SpeakerID:   speakerID,
		Speed:       req.Speed,
		Seed:        req.Seed,
	}
	if ref != nil {
		params.Reference = &ref.Waveform
		if mode == ModeVoiceConversion {
			params.Source = &ref.Waveform
		}
	}

	wf, err := d.invoke(ctx, mode, params)
	if err != nil {
		return audio.Waveform{}, mode, err
	}

	return d.postProcess(requestID, wf, req), mode, nil
}

// acquireReference ingests the supplied reference, or applies the fallback
// policy when the mode needs one and none was given: a checked-in fixture if
// present, else (basic mode only) a one-second silent placeholder. The
// silent fallback exists solely so basic mode stays usable on an engine with
// no built-in default voice.
func (d *Dispatcher) acquireReference(ctx context.Context, mode Mode, req Request, hasSpeaker bool) (*audio.ReferenceAudio, *audio.TempGuard, error) {
	if req.Reference.Present() {
		return d.ingestor.Ingest(ctx, req.Reference)
	}

	noop := audio.NewTempGuard("", nil, d.log)

	if hasSpeaker && mode != ModeVoiceConversion {
		// The engine resolves the print internally.
		return nil, noop, nil
	}

	if !mode.needsReference() && mode != ModeBasic {
		return nil, noop, nil
	}

	for _, fixture := range d.cfg.FixturePaths {
		if _, err := os.Stat(fixture); err == nil {
			ref, guard, err := d.ingestor.Ingest(ctx, audio.PathInput(fixture))
			if err == nil {
				return ref, guard, nil
			}
			d.log.Warn("fixture reference unusable", "path", fixture, "error", err)
			guard.Release()
		}
	}

	if mode == ModeBasic {
		wf := audio.Silence(1.0, audio.EngineInputRate)
		return &audio.ReferenceAudio{Waveform: wf, Origin: audio.InputNone}, noop, nil
	}

	return nil, noop, fmt.Errorf("%w: %s synthesis needs reference audio", ErrMissingReference, mode)
}

// invoke runs the blocking engine call on the bounded pool. The semaphore is
// the only concurrency ceiling on the engine; with one slot, synthesis is
// fully serialized.
func (d *Dispatcher) invoke(ctx context.Context, mode Mode, params engine.Params) (audio.Waveform, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return audio.Waveform{}, fmt.Errorf("waiting for engine slot: %w", err)
	}
	defer d.sem.Release(1)

	if d.met != nil {
		d.met.EngineInFlight.Inc()
		defer d.met.EngineInFlight.Dec()
	}

	switch mode {
	case ModeBasic:
		return d.eng.SynthesizeBasic(ctx, params)
	case ModeZeroShot:
		return d.eng.SynthesizeZeroShot(ctx, params)
	case ModeCrossLingual:
		return d.eng.SynthesizeCrossLingual(ctx, params)
	case ModeInstruct, ModeInstruct2:
		return d.eng.SynthesizeInstruct(ctx, params)
	case ModeVoiceConversion:
		return d.eng.SynthesizeVoiceConversion(ctx, params)
	default:
		return audio.Waveform{}, fmt.Errorf("unresolved synthesis mode %s", mode)
	}
}

// postProcess applies speed change and output-rate resampling. Failures here
// degrade to the unmodified waveform; a worse-sounding result beats a failed
// request.
func (d *Dispatcher) postProcess(requestID string, wf audio.Waveform, req Request) audio.Waveform {
	if req.Speed != 1.0 {
		newLen := int(float64(len(wf.Samples)) / req.Speed)
		if newLen > 0 {
			wf.Samples = audio.ResampleLength(wf.Samples, newLen)
		} else {
			d.log.Warn("speed change skipped", "request_id", requestID, "speed", req.Speed)
		}
	}

	if req.SampleRate > 0 && req.SampleRate != wf.SampleRate {
		resampled := audio.Resample(wf.Samples, wf.SampleRate, req.SampleRate)
		if len(resampled) > 0 {
			wf.Samples = resampled
			wf.SampleRate = req.SampleRate
		} else {
			d.log.Warn("output resample skipped", "request_id", requestID,
				"from", wf.SampleRate, "to", req.SampleRate)
		}
	}

	return wf
}

func (d *Dispatcher) observe(mode Mode, err error, start time.Time) {
	if d.met == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	d.met.SynthesisTotal.WithLabelValues(mode.String(), outcome).Inc()
	d.met.SynthesisDuration.Observe(time.Since(start).Seconds())
}
