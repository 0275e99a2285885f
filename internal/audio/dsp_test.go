package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampleHalvesLength(t *testing.T) {
	t.Parallel()

	in := sine(440, 0.5, 1.0, 32000)
	out := Resample(in, 32000, 16000)
	assert.InDelta(t, len(in)/2, len(out), 1)
}

func TestResampleIdentity(t *testing.T) {
	t.Parallel()

	in := sine(440, 0.5, 0.1, 16000)
	out := Resample(in, 16000, 16000)
	assert.Equal(t, len(in), len(out))
}

func TestResampleLength(t *testing.T) {
	t.Parallel()

	in := []float64{0, 1, 2, 3}
	out := ResampleLength(in, 7)
	require.Len(t, out, 7)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 3.0, out[6])
	assert.InDelta(t, 1.5, out[3], 1e-9)

	assert.Nil(t, ResampleLength(in, 0))
	assert.Nil(t, ResampleLength(nil, 4))
}

func TestTrimSilenceRemovesPadding(t *testing.T) {
	t.Parallel()

	pad := make([]float64, 8000)
	voiced := sine(440, 0.5, 0.5, 16000)
	in := append(append(append([]float64{}, pad...), voiced...), pad...)

	out := TrimSilence(in, trimTopDB, trimFrameLen, trimHopLen)
	assert.Less(t, len(out), len(in))
	assert.GreaterOrEqual(t, len(out), len(voiced)-trimFrameLen)
}

func TestTrimSilenceAllQuiet(t *testing.T) {
	t.Parallel()

	in := make([]float64, 4000)
	out := TrimSilence(in, trimTopDB, trimFrameLen, trimHopLen)
	assert.Equal(t, in, out)
}

func TestLimitPeak(t *testing.T) {
	t.Parallel()

	loud := sine(440, 1.0, 0.1, 16000)
	out := LimitPeak(loud, peakCeiling)
	var peak float64
	for _, s := range out {
		if s > peak {
			peak = s
		}
	}
	assert.InDelta(t, peakCeiling, peak, 0.01)

	quiet := sine(440, 0.3, 0.1, 16000)
	assert.Equal(t, quiet, LimitPeak(quiet, peakCeiling))
}

func TestSilence(t *testing.T) {
	t.Parallel()

	wf := Silence(1.0, EngineInputRate)
	assert.Len(t, wf.Samples, EngineInputRate)
	assert.InDelta(t, 1.0, wf.Duration(), 1e-9)
	for _, s := range wf.Samples {
		require.Zero(t, s)
	}
}
