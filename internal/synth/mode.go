// Package synth resolves multi-mode synthesis requests and dispatches them
// to the engine, applying reference-audio policy and output post-processing.
package synth

import "fmt"

// Mode is the closed set of synthesis operations. Auto is resolved to a
// concrete mode before dispatch; it never reaches the engine.
type Mode int

const (
	ModeAuto Mode = iota
	ModeBasic
	ModeZeroShot
	ModeCrossLingual
	ModeInstruct
	ModeInstruct2
	ModeVoiceConversion
)

// ParseMode maps a wire-format mode string to a Mode. "sft" is accepted as
// an alias for basic, mirroring the upstream API.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "basic", "sft":
		return ModeBasic, nil
	case "zero_shot":
		return ModeZeroShot, nil
	case "cross_lingual":
		return ModeCrossLingual, nil
	case "instruct":
		return ModeInstruct, nil
	case "instruct2":
		return ModeInstruct2, nil
	case "voice_conversion":
		return ModeVoiceConversion, nil
	default:
		return ModeAuto, fmt.Errorf("unknown synthesis mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeBasic:
		return "basic"
	case ModeZeroShot:
		return "zero_shot"
	case ModeCrossLingual:
		return "cross_lingual"
	case ModeInstruct:
		return "instruct"
	case ModeInstruct2:
		return "instruct2"
	case ModeVoiceConversion:
		return "voice_conversion"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// needsReference reports whether the mode conditions on reference audio.
func (m Mode) needsReference() bool {
	switch m {
	case ModeZeroShot, ModeCrossLingual, ModeInstruct, ModeInstruct2, ModeVoiceConversion:
		return true
	default:
		return false
	}
}
