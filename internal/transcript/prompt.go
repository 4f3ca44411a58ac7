package transcript

import (
	"strings"
	"unicode/utf8"

	"github.com/scribekit/dictation-service/internal/dictionary"
)

const (
	// ContextBudget is the hard character cap for the whole context prompt,
	// shared between the transcript tail and the vocabulary fill.
	ContextBudget = dictionary.PromptBudget

	// tailBudget caps how much of the accumulated transcript is fed back
	// as context for the next transcription call.
	tailBudget = 180
)

// BuildContextPrompt assembles the prompt for a flush: up to the last
// tailBudget characters of the accumulated transcript (skipped entirely if
// the tail itself looks like a hallucination loop, so model errors never
// compound), with the remaining budget filled by whole vocabulary entries.
func BuildContextPrompt(accumulated string, entries []dictionary.Entry) string {
	tail := transcriptTail(accumulated, tailBudget)
	if tail != "" && IsHallucination(tail) {
		tail = ""
	}

	remaining := ContextBudget - len(tail)
	if tail != "" {
		remaining -= 1 // space between vocabulary and tail
	}

	vocab := dictionary.BuildPrompt(entries, remaining)

	switch {
	case vocab == "":
		return tail
	case tail == "":
		return vocab
	default:
		return vocab + " " + tail
	}
}

// transcriptTail returns the last max characters of s, starting at a word
// boundary where possible so the model sees whole words.
func transcriptTail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}

	tail := s[len(s)-max:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx < len(tail)-1 {
		return tail[idx+1:]
	}

	// No word boundary to snap to. The byte slice may have split a
	// multi-byte rune; skip forward to the next rune start.
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return tail
}
