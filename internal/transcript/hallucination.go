package transcript

import (
	"strings"
)

const (
	// Sentence fragments longer than this that repeat three or more times
	// indicate a transcription model repetition loop.
	minFragmentLen    = 5
	fragmentRepeatMax = 2

	// Words longer than two characters repeated five or more times
	// consecutively are treated the same way.
	minWordLen    = 3
	wordRepeatMax = 4
)

// IsHallucination reports whether text exhibits the pathological repetition
// patterns that speech models produce on silence or noise. It flags either
// a normalized sentence fragment repeating 3+ times or a single word
// repeated 5+ times consecutively. Pure function, safe for concurrent use.
func IsHallucination(text string) bool {
	return hasRepeatedFragment(text) || hasRepeatedWord(text)
}

// hasRepeatedFragment splits text on terminal punctuation and looks for a
// normalized fragment that occurs more than fragmentRepeatMax times.
func hasRepeatedFragment(text string) bool {
	fragments := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	counts := make(map[string]int, len(fragments))
	for _, f := range fragments {
		norm := normalizeFragment(f)
		if len(norm) <= minFragmentLen {
			continue
		}

		counts[norm]++
		if counts[norm] > fragmentRepeatMax {
			return true
		}
	}

	return false
}

// hasRepeatedWord looks for a run of more than wordRepeatMax consecutive
// occurrences of the same word.
func hasRepeatedWord(text string) bool {
	words := strings.Fields(strings.ToLower(text))

	run := 0
	prev := ""
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'")
		if len(w) < minWordLen {
			prev = ""
			run = 0
			continue
		}

		if w == prev {
			run++
			if run > wordRepeatMax {
				return true
			}
		} else {
			prev = w
			run = 1
		}
	}

	return false
}

func normalizeFragment(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
