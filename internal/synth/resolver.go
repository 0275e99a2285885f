package synth

import "unicode"

// Resolve deduces a concrete mode for a request whose mode is Auto. It is a
// pure function of the request's populated fields:
//
//  1. instruction + reference audio  -> Instruct2
//  2. transcript + reference audio   -> CrossLingual when an explicit
//     non-Chinese target language is requested, or when the target text and
//     the reference transcript are written in different scripts; ZeroShot
//     otherwise
//  3. a named speaker, no reference  -> Basic (pretrained-speaker stand-in)
//  4. anything else                  -> Basic
//
// The script heuristic is deliberately conservative: each side must be
// exclusively CJK or exclusively Latin for a "different language" verdict, so
// mixed-script text never triggers cross-lingual classification. Callers that
// need determinism should set the mode explicitly.
func Resolve(r Request) Mode {
	hasRef := r.Reference.Present()

	switch {
	case r.Instruction != "" && hasRef:
		return ModeInstruct2
	case r.Transcript != "" && hasRef:
		if (r.Language != "" && r.Language != "zh") || differentScript(r.Text, r.Transcript) {
			return ModeCrossLingual
		}
		return ModeZeroShot
	default:
		return ModeBasic
	}
}

// differentScript reports whether one text is exclusively CJK and the other
// exclusively Latin.
func differentScript(a, b string) bool {
	aCJK, aLatin := scriptProfile(a)
	bCJK, bLatin := scriptProfile(b)

	if aCJK && !aLatin && bLatin && !bCJK {
		return true
	}
	if aLatin && !aCJK && bCJK && !bLatin {
		return true
	}
	return false
}

// scriptProfile reports whether the text contains CJK ideographs and whether
// it contains Latin letters. Punctuation and digits are ignored.
func scriptProfile(s string) (cjk, latin bool) {
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			cjk = true
		case r < 128 && unicode.IsLetter(r):
			latin = true
		}
	}
	return cjk, latin
}
