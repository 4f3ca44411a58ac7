// Package dictionary models the user vocabulary consumed by dictation
// sessions. Entries are read as an immutable snapshot at session start;
// later edits never affect an in-flight session.
package dictionary

import (
	"sort"
	"strings"
)

// PromptBudget is the hard character cap for vocabulary prompts. Whisper
// context prompts are limited to 224 tokens, so the character budget stays
// comfortably below that.
const PromptBudget = 224

// Entry is a single prioritized vocabulary item.
type Entry struct {
	Phrase       string
	Canonical    string
	Substitution string
	Notes        string
	Priority     int // 0-100, higher wins
}

// Term returns the text that represents this entry in a prompt: the
// canonical form when present, the raw phrase otherwise.
func (e Entry) Term() string {
	if e.Canonical != "" {
		return e.Canonical
	}
	return e.Phrase
}

// SortByPriority orders entries by descending priority, stable for ties.
func SortByPriority(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority > entries[j].Priority
	})
}

// BuildPrompt concatenates entry terms by descending priority into a
// comma-separated vocabulary prompt of at most budget characters. Entries
// are never truncated mid-term: the first entry that would overflow the
// budget stops the scan.
func BuildPrompt(entries []Entry, budget int) string {
	if budget <= 0 || len(entries) == 0 {
		return ""
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	SortByPriority(sorted)

	var b strings.Builder
	for _, e := range sorted {
		term := strings.TrimSpace(e.Term())
		if term == "" {
			continue
		}

		need := len(term)
		if b.Len() > 0 {
			need += 2 // ", " separator
		}

		if b.Len()+need > budget {
			break
		}

		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(term)
	}

	return b.String()
}
