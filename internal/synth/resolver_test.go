package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voicegate/voicegate/internal/audio"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	ref := audio.PathInput("ref.wav")

	tests := []struct {
		name string
		req  Request
		want Mode
	}{
		{
			name: "instruction with reference wins",
			req:  Request{Text: "hello", Instruction: "speak slowly", Reference: ref, Transcript: "hi"},
			want: ModeInstruct2,
		},
		{
			name: "same script transcript clones the voice",
			req:  Request{Text: "good morning", Transcript: "hello there", Reference: ref},
			want: ModeZeroShot,
		},
		{
			name: "chinese text with english transcript crosses languages",
			req:  Request{Text: "你好世界", Transcript: "hello world", Reference: ref},
			want: ModeCrossLingual,
		},
		{
			name: "english text with chinese transcript crosses languages",
			req:  Request{Text: "hello world", Transcript: "你好世界", Reference: ref},
			want: ModeCrossLingual,
		},
		{
			name: "explicit foreign target language crosses languages",
			req:  Request{Text: "hello world", Transcript: "hi there", Reference: ref, Language: "en"},
			want: ModeCrossLingual,
		},
		{
			name: "explicit chinese target stays zero shot",
			req:  Request{Text: "你好", Transcript: "你好呀", Reference: ref, Language: "zh"},
			want: ModeZeroShot,
		},
		{
			name: "mixed script text stays zero shot",
			req:  Request{Text: "你好 world", Transcript: "hello", Reference: ref},
			want: ModeZeroShot,
		},
		{
			name: "transcript without reference falls through",
			req:  Request{Text: "hello", Transcript: "hi"},
			want: ModeBasic,
		},
		{
			name: "named speaker only",
			req:  Request{Text: "hello", Speaker: "presenter"},
			want: ModeBasic,
		},
		{
			name: "bare text",
			req:  Request{Text: "hello"},
			want: ModeBasic,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Resolve(tt.req))
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{
		"":                 ModeAuto,
		"auto":             ModeAuto,
		"basic":            ModeBasic,
		"sft":              ModeBasic,
		"zero_shot":        ModeZeroShot,
		"cross_lingual":    ModeCrossLingual,
		"instruct":         ModeInstruct,
		"instruct2":        ModeInstruct2,
		"voice_conversion": ModeVoiceConversion,
	} {
		got, err := ParseMode(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("falsetto")
	assert.Error(t, err)
}

func TestModeStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, m := range []Mode{ModeBasic, ModeZeroShot, ModeCrossLingual, ModeInstruct, ModeInstruct2, ModeVoiceConversion} {
		parsed, err := ParseMode(m.String())
		assert.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, (&Request{}).Validate(), ErrEmptyText)
	assert.NoError(t, (&Request{Mode: ModeVoiceConversion}).Validate())

	long := make([]rune, maxTextLength+1)
	for i := range long {
		long[i] = '字'
	}
	assert.ErrorIs(t, (&Request{Text: string(long)}).Validate(), ErrTextTooLong)

	assert.ErrorIs(t, (&Request{Text: "hi", Speed: 0.1}).Validate(), ErrSpeedOutOfRange)
	assert.ErrorIs(t, (&Request{Text: "hi", Speed: 3}).Validate(), ErrSpeedOutOfRange)
	assert.NoError(t, (&Request{Text: "hi", Speed: 1.5}).Validate())
	assert.NoError(t, (&Request{Text: "hi"}).Validate())
}
