package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scribekit/dictation-service/internal/dictionary"
)

// Store wraps the SQLite database holding session state.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	language       TEXT NOT NULL,
	model          TEXT NOT NULL,
	prompt_context TEXT NOT NULL DEFAULT '',
	transcript     TEXT NOT NULL DEFAULT '',
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL,
	completed_at   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at);

CREATE TABLE IF NOT EXISTS transcript_chunks (
	session_id TEXT NOT NULL,
	sequence   INTEGER NOT NULL,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, sequence)
);

CREATE TABLE IF NOT EXISTS dictionary_entries (
	user_id      TEXT NOT NULL,
	phrase       TEXT NOT NULL,
	canonical    TEXT NOT NULL DEFAULT '',
	substitution TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	priority     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_dictionary_user ON dictionary_entries(user_id, priority);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id          TEXT PRIMARY KEY,
	default_language TEXT NOT NULL,
	model            TEXT NOT NULL
);
`

// Open opens (creating if necessary) the session database with WAL enabled.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, title, status, language, model,
			prompt_context, transcript, duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.UserID, sess.Title, sess.Status, sess.Language, sess.Model,
		sess.PromptContext, sess.Transcript, sess.DurationMs,
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the session with the given id, or nil if absent.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, status, language, model, prompt_context,
			transcript, duration_ms, created_at, updated_at, completed_at
		FROM sessions
		WHERE id = ?
	`, id)

	var sess Session
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64

	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.Status,
		&sess.Language, &sess.Model, &sess.PromptContext, &sess.Transcript,
		&sess.DurationMs, &createdAt, &updatedAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.UpdatedAt = time.UnixMilli(updatedAt)
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		sess.CompletedAt = &t
	}

	return &sess, nil
}

// UpdateTranscript replaces the accumulated transcript of a session.
func (s *Store) UpdateTranscript(ctx context.Context, id, transcript string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET transcript = ?, updated_at = ? WHERE id = ?
	`, transcript, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	return nil
}

// AddDuration increments the cumulative audio duration of a session.
func (s *Store) AddDuration(ctx context.Context, id string, deltaMs int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET duration_ms = duration_ms + ?, updated_at = ? WHERE id = ?
	`, deltaMs, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("add duration: %w", err)
	}
	return nil
}

// Finish moves a session into a terminal status with its final transcript.
func (s *Store) Finish(ctx context.Context, id, status, transcript string, completedAt time.Time) error {
	if !IsTerminal(status) {
		return fmt.Errorf("finish requires a terminal status, got %q", status)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, transcript = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, status, transcript, completedAt.UnixMilli(), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// AppendChunk upserts one transcript chunk keyed by (session, sequence).
func (s *Store) AppendChunk(ctx context.Context, sessionID string, sequence int, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript_chunks (session_id, sequence, text, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, sequence) DO UPDATE SET text = excluded.text
	`, sessionID, sequence, text, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append chunk: %w", err)
	}
	return nil
}

// ChunksForSession returns all transcript chunks for a session in flush order.
func (s *Store) ChunksForSession(ctx context.Context, sessionID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, sequence, text, created_at
		FROM transcript_chunks
		WHERE session_id = ?
		ORDER BY sequence ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var createdAt int64
		if err := rows.Scan(&c.SessionID, &c.Sequence, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Settings returns the settings row for a user, or nil if absent.
func (s *Store) Settings(ctx context.Context, userID string) (*Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, default_language, model
		FROM user_settings
		WHERE user_id = ?
	`, userID)

	var st Settings
	if err := row.Scan(&st.UserID, &st.DefaultLanguage, &st.Model); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan settings: %w", err)
	}

	return &st, nil
}

// PutSettings creates or replaces a user's settings row.
func (s *Store) PutSettings(ctx context.Context, st *Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, default_language, model)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			default_language = excluded.default_language,
			model = excluded.model
	`, st.UserID, st.DefaultLanguage, st.Model)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// DictionaryEntries returns all vocabulary entries for a user ordered by
// descending priority.
func (s *Store) DictionaryEntries(ctx context.Context, userID string) ([]dictionary.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phrase, canonical, substitution, notes, priority
		FROM dictionary_entries
		WHERE user_id = ?
		ORDER BY priority DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query dictionary: %w", err)
	}
	defer rows.Close()

	var entries []dictionary.Entry
	for rows.Next() {
		var e dictionary.Entry
		if err := rows.Scan(&e.Phrase, &e.Canonical, &e.Substitution, &e.Notes, &e.Priority); err != nil {
			return nil, fmt.Errorf("scan dictionary entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddDictionaryEntry inserts one vocabulary entry for a user.
func (s *Store) AddDictionaryEntry(ctx context.Context, userID string, e dictionary.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dictionary_entries (user_id, phrase, canonical, substitution, notes, priority)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, e.Phrase, e.Canonical, e.Substitution, e.Notes, e.Priority)
	if err != nil {
		return fmt.Errorf("add dictionary entry: %w", err)
	}
	return nil
}
