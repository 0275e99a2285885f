package speakers

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicegate/voicegate/internal/audio"
	"github.com/voicegate/voicegate/internal/engine"
)

type printStore struct {
	prints map[string]string
}

func (p *printStore) Init(context.Context) error             { return nil }
func (p *printStore) Capabilities() engine.Capabilities      { return engine.Capabilities{} }
func (p *printStore) SampleRate() int                        { return 22050 }
func (p *printStore) SynthesizeBasic(context.Context, engine.Params) (audio.Waveform, error) {
	return audio.Waveform{}, engine.ErrInference
}
func (p *printStore) SynthesizeZeroShot(context.Context, engine.Params) (audio.Waveform, error) {
	return audio.Waveform{}, engine.ErrInference
}
func (p *printStore) SynthesizeCrossLingual(context.Context, engine.Params) (audio.Waveform, error) {
	return audio.Waveform{}, engine.ErrInference
}
func (p *printStore) SynthesizeInstruct(context.Context, engine.Params) (audio.Waveform, error) {
	return audio.Waveform{}, engine.ErrInference
}
func (p *printStore) SynthesizeVoiceConversion(context.Context, engine.Params) (audio.Waveform, error) {
	return audio.Waveform{}, engine.ErrInference
}
func (p *printStore) RegisterVoicePrint(_ context.Context, id, transcript string, _ audio.Waveform) error {
	if p.prints == nil {
		p.prints = map[string]string{}
	}
	p.prints[id] = transcript
	return nil
}
func (p *printStore) ListVoicePrints(context.Context) ([]string, error) {
	out := make([]string, 0, len(p.prints))
	for id := range p.prints {
		out = append(out, id)
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func refWAV(t *testing.T, dir, name string) ([]byte, string) {
	t.Helper()
	n := 2 * audio.EngineInputRate
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.EngineInputRate))
	}
	data, err := audio.EncodeWAVBytes(audio.Waveform{Samples: samples, SampleRate: audio.EngineInputRate})
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return data, path
}

func newTestRegistry(t *testing.T, protected []string) (*Registry, string) {
	t.Helper()
	log := testLogger()
	dir := t.TempDir()
	ingestor := audio.NewIngestor(audio.EngineInputRate, protected, log)
	return NewRegistry(dir, protected, ingestor, &printStore{}, log), dir
}

func TestDeriveID(t *testing.T) {
	t.Parallel()

	id := DeriveID("alice", "hello there")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), id)
	assert.Equal(t, id, DeriveID("alice", "hello there"), "derivation is deterministic")
	assert.NotEqual(t, id, DeriveID("alice", "different text"))
	assert.NotEqual(t, id, DeriveID("bob", "hello there"))
}

func TestRegisterDurableFromPath(t *testing.T) {
	t.Parallel()

	reg, dir := newTestRegistry(t, nil)
	_, src := refWAV(t, t.TempDir(), "voice.wav")

	sp, err := reg.RegisterDurable(context.Background(), "alice", "hello there", audio.PathInput(src), "")
	require.NoError(t, err)

	assert.Equal(t, DeriveID("alice", "hello there"), sp.ID)
	assert.Equal(t, "alice", sp.Name)
	assert.Equal(t, src, sp.AudioPath, "existing local files are referenced in place")
	assert.NotEmpty(t, sp.Description)
	assert.False(t, sp.CreatedAt.IsZero())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no copy is made for caller-owned paths")
}

func TestRegisterDurableFromBytes(t *testing.T) {
	t.Parallel()

	reg, dir := newTestRegistry(t, nil)
	data, _ := refWAV(t, t.TempDir(), "voice.wav")

	sp, err := reg.RegisterDurable(context.Background(), "bob", "sample text", audio.BytesInput(data), "deep voice")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, sp.ID+".wav"), sp.AudioPath)
	assert.FileExists(t, sp.AudioPath)
	assert.Equal(t, "deep voice", sp.Description)
}

func TestRegisterDurableReplacesManagedFile(t *testing.T) {
	t.Parallel()

	reg, dir := newTestRegistry(t, nil)
	data, src := refWAV(t, t.TempDir(), "voice.wav")

	first, err := reg.RegisterDurable(context.Background(), "carol", "same words", audio.BytesInput(data), "")
	require.NoError(t, err)
	managed := filepath.Join(dir, first.ID+".wav")
	assert.FileExists(t, managed)

	// Same derived id, now backed by a caller-owned path: the managed copy
	// must be deleted, not leaked.
	second, err := reg.RegisterDurable(context.Background(), "carol", "same words", audio.PathInput(src), "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, src, second.AudioPath)

	_, err = os.Stat(managed)
	assert.True(t, os.IsNotExist(err), "stale managed audio must be removed")

	list := reg.ListDurable()
	require.Len(t, list, 1)
}

func TestRegisterDurableConcurrentSameID(t *testing.T) {
	t.Parallel()

	reg, dir := newTestRegistry(t, nil)
	data, _ := refWAV(t, t.TempDir(), "voice.wav")

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := reg.RegisterDurable(context.Background(), "frank", "same words", audio.BytesInput(data), "")
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
	}

	list := reg.ListDurable()
	require.Len(t, list, 1)
	assert.Equal(t, DeriveID("frank", "same words"), list[0].ID)

	// The managed file must be intact, never a torn interleaving of two
	// writers, and no staged leftovers may remain.
	ing := audio.NewIngestor(audio.EngineInputRate, nil, testLogger())
	ref, guard, err := ing.Ingest(context.Background(), audio.PathInput(list[0].AudioPath))
	require.NoError(t, err)
	guard.Release()
	assert.Equal(t, audio.EngineInputRate, ref.Waveform.SampleRate)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, list[0].ID+".wav", entries[0].Name())
}

func TestGetAndDeleteDurable(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t, nil)
	data, _ := refWAV(t, t.TempDir(), "voice.wav")

	sp, err := reg.RegisterDurable(context.Background(), "dave", "words", audio.BytesInput(data), "")
	require.NoError(t, err)

	got, err := reg.GetDurable(sp.ID)
	require.NoError(t, err)
	assert.Equal(t, sp.ID, got.ID)

	require.NoError(t, reg.DeleteDurable(sp.ID))
	_, err = os.Stat(sp.AudioPath)
	assert.True(t, os.IsNotExist(err))

	_, err = reg.GetDurable(sp.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, reg.DeleteDurable(sp.ID), ErrNotFound)
}

func TestDeleteDurableSparesProtectedFixture(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t, []string{"test_audio_better.wav"})
	_, src := refWAV(t, t.TempDir(), "test_audio_better.wav")

	sp, err := reg.RegisterDurable(context.Background(), "eve", "fixture words", audio.PathInput(src), "")
	require.NoError(t, err)

	require.NoError(t, reg.DeleteDurable(sp.ID))
	_, err = os.Stat(src)
	assert.NoError(t, err, "protected fixtures survive deletion")
}

func TestListDurableSorted(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t, nil)
	_, src := refWAV(t, t.TempDir(), "voice.wav")

	for _, name := range []string{"zed", "amy", "mia"} {
		_, err := reg.RegisterDurable(context.Background(), name, "words", audio.PathInput(src), "")
		require.NoError(t, err)
	}

	list := reg.ListDurable()
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestRegisterEphemeral(t *testing.T) {
	t.Parallel()

	log := testLogger()
	store := &printStore{}
	ingestor := audio.NewIngestor(audio.EngineInputRate, nil, log)
	reg := NewRegistry(t.TempDir(), nil, ingestor, store, log)

	_, src := refWAV(t, t.TempDir(), "voice.wav")
	require.NoError(t, reg.RegisterEphemeral(context.Background(), "narrator", "spoken words", audio.PathInput(src)))
	assert.Equal(t, "spoken words", store.prints["narrator"])

	ids, err := reg.ListEphemeral(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"narrator"}, ids)
}
