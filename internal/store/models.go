// Package store provides durable SQLite persistence for dictation
// sessions: the session record itself, append-only transcript chunks,
// and read access to user settings and dictionary entries.
package store

import "time"

// Session statuses. Streaming is the only state that accepts audio; the
// other three are terminal.
const (
	StatusStreaming = "streaming"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// IsTerminal reports whether a session status is final.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusCancelled
}

// Session is the durable record of a dictation session.
type Session struct {
	ID            string
	UserID        string
	Title         string
	Status        string
	Language      string
	Model         string
	PromptContext string
	Transcript    string
	DurationMs    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Chunk is one append-only transcript segment produced by a flush,
// keyed by (session, sequence).
type Chunk struct {
	SessionID string
	Sequence  int
	Text      string
	CreatedAt time.Time
}

// Settings holds per-user transcription preferences.
type Settings struct {
	UserID          string
	DefaultLanguage string
	Model           string
}
