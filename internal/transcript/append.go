package transcript

import "strings"

// Append merges a newly transcribed segment into the accumulated transcript
// with smart spacing: a separating space is inserted unless the transcript
// already ends in terminal punctuation, in which case the segment's own
// leading whitespace (whisper output carries one after a sentence boundary)
// is preserved as-is. The transcript is only ever extended, never shortened.
func Append(accumulated, segment string) string {
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return accumulated
	}

	if accumulated == "" {
		return trimmed
	}

	if strings.HasSuffix(accumulated, " ") {
		return accumulated + trimmed
	}

	if endsInTerminalPunct(accumulated) {
		if strings.HasPrefix(segment, " ") {
			return accumulated + " " + trimmed
		}
		return accumulated + trimmed
	}

	return accumulated + " " + trimmed
}

func endsInTerminalPunct(s string) bool {
	s = strings.TrimRight(s, " \t\n")
	if s == "" {
		return false
	}

	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
