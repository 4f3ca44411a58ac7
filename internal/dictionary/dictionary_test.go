package dictionary

import (
	"strings"
	"testing"
)

func TestTerm(t *testing.T) {
	e := Entry{Phrase: "kubectl", Canonical: "kube control"}
	if e.Term() != "kube control" {
		t.Errorf("Expected canonical form, got %q", e.Term())
	}

	e = Entry{Phrase: "kubectl"}
	if e.Term() != "kubectl" {
		t.Errorf("Expected phrase, got %q", e.Term())
	}
}

func TestBuildPromptPriorityOrder(t *testing.T) {
	entries := []Entry{
		{Phrase: "low", Priority: 10},
		{Phrase: "high", Priority: 90},
		{Phrase: "mid", Priority: 50},
	}

	prompt := BuildPrompt(entries, PromptBudget)
	if prompt != "high, mid, low" {
		t.Errorf("Expected priority-ordered prompt, got %q", prompt)
	}
}

func TestBuildPromptStableTies(t *testing.T) {
	entries := []Entry{
		{Phrase: "first", Priority: 50},
		{Phrase: "second", Priority: 50},
	}

	prompt := BuildPrompt(entries, PromptBudget)
	if prompt != "first, second" {
		t.Errorf("Expected stable order for equal priority, got %q", prompt)
	}
}

func TestBuildPromptBudget(t *testing.T) {
	// Entries whose concatenation exceeds the budget must yield only whole
	// entries with total length within the budget.
	var entries []Entry
	for i := 0; i < 40; i++ {
		entries = append(entries, Entry{Phrase: strings.Repeat("x", 10), Priority: 100 - i})
	}

	prompt := BuildPrompt(entries, PromptBudget)
	if len(prompt) > PromptBudget {
		t.Errorf("Prompt exceeds budget: %d > %d", len(prompt), PromptBudget)
	}

	for _, part := range strings.Split(prompt, ", ") {
		if len(part) != 10 {
			t.Errorf("Found truncated entry %q", part)
		}
	}
}

func TestBuildPromptNeverSplitsEntry(t *testing.T) {
	entries := []Entry{
		{Phrase: strings.Repeat("a", 20), Priority: 90},
		{Phrase: strings.Repeat("b", 20), Priority: 80},
	}

	// Budget fits the first entry but not the second.
	prompt := BuildPrompt(entries, 30)
	if prompt != strings.Repeat("a", 20) {
		t.Errorf("Expected only first whole entry, got %q", prompt)
	}
}

func TestBuildPromptOversizedEntrySkipped(t *testing.T) {
	entries := []Entry{
		{Phrase: strings.Repeat("a", 300), Priority: 90},
	}

	if prompt := BuildPrompt(entries, PromptBudget); prompt != "" {
		t.Errorf("Expected empty prompt when the top entry overflows, got %q", prompt)
	}
}

func TestBuildPromptEmpty(t *testing.T) {
	if prompt := BuildPrompt(nil, PromptBudget); prompt != "" {
		t.Errorf("Expected empty prompt for no entries, got %q", prompt)
	}

	if prompt := BuildPrompt([]Entry{{Phrase: "x"}}, 0); prompt != "" {
		t.Errorf("Expected empty prompt for zero budget, got %q", prompt)
	}
}
