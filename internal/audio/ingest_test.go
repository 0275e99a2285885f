package audio

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeTestWAV(t *testing.T, dir, name string, rate int, seconds float64) string {
	t.Helper()
	wf := Waveform{Samples: sine(440, 0.5, seconds, rate), SampleRate: rate}
	data, err := EncodeWAVBytes(wf)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestIngestLocalPath(t *testing.T) {
	t.Parallel()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	path := writeTestWAV(t, t.TempDir(), "ref.wav", EngineInputRate, 2.0)

	ref, guard, err := ig.Ingest(context.Background(), PathInput(path))
	require.NoError(t, err)
	defer guard.Release()

	assert.Equal(t, EngineInputRate, ref.Waveform.SampleRate)
	assert.False(t, ref.Waveform.Empty())
	assert.False(t, ref.Temporary)
	assert.Equal(t, InputPath, ref.Origin)

	// A caller-supplied file must survive the guard.
	guard.Release()
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestIngestDownsamples(t *testing.T) {
	t.Parallel()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	path := writeTestWAV(t, t.TempDir(), "hi.wav", 48000, 1.0)

	ref, guard, err := ig.Ingest(context.Background(), PathInput(path))
	require.NoError(t, err)
	defer guard.Release()

	assert.Equal(t, EngineInputRate, ref.Waveform.SampleRate)
	// 1s at 48k downsampled to 16k, minus whatever the trim takes.
	assert.InDelta(t, EngineInputRate, len(ref.Waveform.Samples), float64(trimFrameLen)*2)
}

func TestIngestRejectsLowSampleRate(t *testing.T) {
	t.Parallel()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	path := writeTestWAV(t, t.TempDir(), "low.wav", 8000, 1.0)

	_, guard, err := ig.Ingest(context.Background(), PathInput(path))
	guard.Release()
	assert.ErrorIs(t, err, ErrUnsupportedSampleRate)
}

func TestIngestMissingFile(t *testing.T) {
	t.Parallel()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	_, guard, err := ig.Ingest(context.Background(), PathInput("/no/such/file.wav"))
	guard.Release()
	assert.ErrorIs(t, err, ErrInvalidAudioInput)
}

func TestIngestNoInput(t *testing.T) {
	t.Parallel()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	_, guard, err := ig.Ingest(context.Background(), Input{})
	guard.Release()
	assert.ErrorIs(t, err, ErrInvalidAudioInput)
}

func TestIngestBytes(t *testing.T) {
	t.Parallel()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	wf := Waveform{Samples: sine(440, 0.5, 1.5, EngineInputRate), SampleRate: EngineInputRate}
	data, err := EncodeWAVBytes(wf)
	require.NoError(t, err)

	ref, guard, err := ig.Ingest(context.Background(), BytesInput(data))
	require.NoError(t, err)

	assert.True(t, ref.Temporary)
	assert.FileExists(t, ref.Path)

	guard.Release()
	_, err = os.Stat(ref.Path)
	assert.True(t, os.IsNotExist(err), "temp file should be removed on release")
}

func TestIngestEmptyBytes(t *testing.T) {
	t.Parallel()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	_, guard, err := ig.Ingest(context.Background(), BytesInput(nil))
	guard.Release()
	assert.ErrorIs(t, err, ErrInvalidAudioInput)
}

func TestIngestURL(t *testing.T) {
	t.Parallel()

	wf := Waveform{Samples: sine(440, 0.5, 1.0, EngineInputRate), SampleRate: EngineInputRate}
	data, err := EncodeWAVBytes(wf)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(data)
	}))
	defer srv.Close()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	ref, guard, err := ig.Ingest(context.Background(), URLInput(srv.URL+"/sample.wav"))
	require.NoError(t, err)

	assert.True(t, ref.Temporary)
	assert.Equal(t, InputURL, ref.Origin)
	assert.False(t, ref.Waveform.Empty())

	guard.Release()
	_, err = os.Stat(ref.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestIngestURLNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ig := NewIngestor(EngineInputRate, nil, testLogger())
	_, guard, err := ig.Ingest(context.Background(), URLInput(srv.URL+"/missing.wav"))
	guard.Release()
	assert.ErrorIs(t, err, ErrDownloadFailed)
}

func TestTempGuardProtectedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestWAV(t, dir, "test_audio_better.wav", EngineInputRate, 1.0)

	guard := NewTempGuard(path, []string{"test_audio_better.wav"}, testLogger())
	guard.Release()

	_, err := os.Stat(path)
	assert.NoError(t, err, "protected files must never be deleted")
}

func TestTempGuardReleaseOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestWAV(t, dir, "tmp.wav", EngineInputRate, 1.0)

	guard := NewTempGuard(path, nil, testLogger())
	guard.Release()
	guard.Release() // second release is a no-op

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
