package transcript

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/scribekit/dictation-service/internal/dictionary"
)

func TestBuildContextPromptShortTranscript(t *testing.T) {
	entries := []dictionary.Entry{
		{Phrase: "kubernetes", Priority: 90},
		{Phrase: "grafana", Priority: 80},
	}

	prompt := BuildContextPrompt("deploy the service", entries)

	if !strings.Contains(prompt, "deploy the service") {
		t.Errorf("Expected transcript tail in prompt, got %q", prompt)
	}

	if !strings.Contains(prompt, "kubernetes") {
		t.Errorf("Expected vocabulary in prompt, got %q", prompt)
	}

	if len(prompt) > ContextBudget {
		t.Errorf("Prompt exceeds budget: %d > %d", len(prompt), ContextBudget)
	}
}

func TestBuildContextPromptLongTranscriptTail(t *testing.T) {
	long := strings.Repeat("alpha bravo charlie delta echo ", 20)

	prompt := BuildContextPrompt(long, nil)

	if len(prompt) > tailBudget {
		t.Errorf("Tail exceeds budget: %d > %d", len(prompt), tailBudget)
	}

	// Tail must come from the end of the transcript.
	if !strings.HasSuffix(strings.TrimSpace(long), prompt) {
		t.Errorf("Prompt is not a suffix of the transcript: %q", prompt)
	}

	// Should start on a word boundary.
	if strings.HasPrefix(prompt, " ") {
		t.Errorf("Tail starts with whitespace: %q", prompt)
	}
}

func TestBuildContextPromptSkipsHallucinatedTail(t *testing.T) {
	looped := strings.Repeat("thank you for watching. ", 5)
	entries := []dictionary.Entry{{Phrase: "terraform", Priority: 50}}

	prompt := BuildContextPrompt(looped, entries)

	if strings.Contains(prompt, "thank you for watching") {
		t.Errorf("Hallucinated tail must not be reused as context, got %q", prompt)
	}

	if prompt != "terraform" {
		t.Errorf("Expected vocabulary-only prompt, got %q", prompt)
	}
}

func TestBuildContextPromptHardCap(t *testing.T) {
	long := strings.Repeat("words and more words ", 30)
	var entries []dictionary.Entry
	for i := 0; i < 50; i++ {
		entries = append(entries, dictionary.Entry{Phrase: strings.Repeat("v", 8), Priority: i})
	}

	prompt := BuildContextPrompt(long, entries)
	if len(prompt) > ContextBudget {
		t.Errorf("Prompt exceeds hard cap: %d > %d", len(prompt), ContextBudget)
	}
}

func TestTranscriptTailSnapsToRuneBoundary(t *testing.T) {
	// Spaceless CJK dictation: a byte-count cut lands mid-rune, so the
	// tail has to skip forward to the next rune start.
	long := strings.Repeat("あ", 100)

	tail := transcriptTail(long, 100)

	if !utf8.ValidString(tail) {
		t.Fatalf("Tail contains invalid UTF-8: %q", tail)
	}
	if !strings.HasSuffix(long, tail) {
		t.Errorf("Tail is not a suffix of the transcript: %q", tail)
	}
	if len(tail) == 0 || len(tail) > 100 {
		t.Errorf("Unexpected tail length %d", len(tail))
	}
}

func TestBuildContextPromptEmptyInputs(t *testing.T) {
	if prompt := BuildContextPrompt("", nil); prompt != "" {
		t.Errorf("Expected empty prompt, got %q", prompt)
	}
}
