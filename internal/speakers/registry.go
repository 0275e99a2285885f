// Package speakers maintains the process-local registry of reusable voice
// prints: durable custom speakers owned by this layer, and ephemeral
// zero-shot prints whose persistence is delegated to the engine.
package speakers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/engine"
)

// ErrNotFound is returned for lookups and deletions of unknown speaker ids.
var ErrNotFound = errors.New("speaker not found")

// CustomSpeaker is a durable voice print tracked by this layer. Records live
// in memory for the process lifetime; only the reference-audio file survives
// a restart.
type CustomSpeaker struct {
	ID          string    `json:"speaker_id"`
	Name        string    `json:"speaker_name"`
	Transcript  string    `json:"prompt_text"`
	AudioPath   string    `json:"prompt_audio_path"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Registry stores custom speakers and forwards ephemeral registrations to
// the engine. All mutation is serialized by one lock so two concurrent
// registrations can never race on the same derived id.
type Registry struct {
	mu        sync.Mutex
	byID      map[string]CustomSpeaker
	dir       string
	protected []string
	ingestor  *audio.Ingestor
	eng       engine.Engine
	log       *slog.Logger
}

// NewRegistry creates a Registry persisting audio copies under dir.
func NewRegistry(dir string, protected []string, ingestor *audio.Ingestor, eng engine.Engine, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byID:      make(map[string]CustomSpeaker),
		dir:       dir,
		protected: protected,
		ingestor:  ingestor,
		eng:       eng,
		log:       log,
	}
}

// DeriveID returns the deterministic 16-hex-digit id for a (name,
// transcript) pair. Registering the same pair twice yields the same id.
func DeriveID(name, transcript string) string {
	sum := md5.Sum([]byte(name + "_" + transcript))
	return hex.EncodeToString(sum[:])[:16]
}

// RegisterDurable validates the reference audio and records a custom
// speaker. Audio supplied as an existing local path is referenced in place;
// bytes and URLs are copied to a durable file under the registry directory.
// Re-registering an existing id replaces the record; a previous managed
// backing file that differs from the new one is deleted first.
//
// The copy is staged to a unique temp file and renamed into place under the
// registry lock, so two concurrent registrations of the same derived id
// never write the managed file concurrently, and a concurrent delete can
// never observe a record whose backing file is mid-copy.
func (r *Registry) RegisterDurable(ctx context.Context, name, transcript string, in audio.Input, description string) (CustomSpeaker, error) {
	ref, guard, err := r.ingestor.Ingest(ctx, in)
	if err != nil {
		return CustomSpeaker{}, err
	}
	defer guard.Release()

	id := DeriveID(name, transcript)

	staged := ""
	if ref.Temporary {
		staged, err = r.stageCopy(ref.Path)
		if err != nil {
			return CustomSpeaker{}, err
		}
	}

	if description == "" {
		description = "custom speaker: " + name
	}

	sp := CustomSpeaker{
		ID:          id,
		Name:        name,
		Transcript:  transcript,
		AudioPath:   ref.Path,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	r.mu.Lock()
	if staged != "" {
		sp.AudioPath = filepath.Join(r.dir, id+".wav")
		if err := os.Rename(staged, sp.AudioPath); err != nil {
			r.mu.Unlock()
			os.Remove(staged)
			return CustomSpeaker{}, fmt.Errorf("persist speaker audio: %w", err)
		}
	}
	if prev, ok := r.byID[id]; ok && prev.AudioPath != sp.AudioPath && r.isManaged(prev.AudioPath) {
		r.removeFile(prev.AudioPath)
	}
	r.byID[id] = sp
	r.mu.Unlock()

	r.log.Info("custom speaker registered", "speaker_id", id, "name", name)
	return sp, nil
}

// ListDurable returns a stable-order snapshot of the custom speakers.
func (r *Registry) ListDurable() []CustomSpeaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CustomSpeaker, 0, len(r.byID))
	for _, sp := range r.byID {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetDurable looks up one custom speaker.
func (r *Registry) GetDurable(id string) (CustomSpeaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.byID[id]
	if !ok {
		return CustomSpeaker{}, ErrNotFound
	}
	return sp, nil
}

// DeleteDurable removes a custom speaker and its backing file. Files whose
// name matches a protected fixture are spared; the registry entry goes away
// regardless.
func (r *Registry) DeleteDurable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)

	if !r.isProtected(sp.AudioPath) {
		r.removeFile(sp.AudioPath)
	}
	r.log.Info("custom speaker deleted", "speaker_id", id)
	return nil
}

// RegisterEphemeral validates the reference and hands the voice print to the
// engine's own store. No local state is kept beyond what the engine reports
// through ListVoicePrints.
func (r *Registry) RegisterEphemeral(ctx context.Context, id, transcript string, in audio.Input) error {
	ref, guard, err := r.ingestor.Ingest(ctx, in)
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := r.eng.RegisterVoicePrint(ctx, id, transcript, ref.Waveform); err != nil {
		return fmt.Errorf("register voice print %q: %w", id, err)
	}
	r.log.Info("ephemeral voice print registered", "speaker_id", id)
	return nil
}

// ListEphemeral returns the engine-side voice print ids.
func (r *Registry) ListEphemeral(ctx context.Context) ([]string, error) {
	return r.eng.ListVoicePrints(ctx)
}

// stageCopy copies a temporary reference file to a uniquely named file in
// the managed directory, ready to be renamed over the final path.
func (r *Registry) stageCopy(src string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create speaker dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open reference audio: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(r.dir, "staged-*.wav")
	if err != nil {
		return "", fmt.Errorf("stage speaker audio: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("copy speaker audio: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("close speaker audio: %w", err)
	}
	return out.Name(), nil
}

func (r *Registry) isManaged(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dir, err := filepath.Abs(r.dir)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, dir+string(filepath.Separator))
}

func (r *Registry) isProtected(path string) bool {
	base := filepath.Base(path)
	for _, name := range r.protected {
		if base == name {
			return true
		}
	}
	return false
}

func (r *Registry) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.log.Warn("failed to remove speaker audio", "path", path, "error", err)
	}
}
