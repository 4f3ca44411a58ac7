package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scribekit/dictation-service/internal/audio"
	"github.com/scribekit/dictation-service/internal/config"
	"github.com/scribekit/dictation-service/internal/dictionary"
	"github.com/scribekit/dictation-service/internal/events"
	"github.com/scribekit/dictation-service/internal/metrics"
	"github.com/scribekit/dictation-service/internal/store"
	"github.com/scribekit/dictation-service/internal/transcript"
	"github.com/scribekit/dictation-service/internal/transcription"
)

const sweepInterval = 30 * time.Second

// Persistence is the durable storage the coordinator writes through.
// *store.Store satisfies it.
type Persistence interface {
	CreateSession(ctx context.Context, sess *store.Session) error
	GetSession(ctx context.Context, id string) (*store.Session, error)
	UpdateTranscript(ctx context.Context, id, transcript string) error
	AddDuration(ctx context.Context, id string, deltaMs int64) error
	Finish(ctx context.Context, id, status, transcript string, completedAt time.Time) error
	AppendChunk(ctx context.Context, sessionID string, sequence int, text string) error
	ChunksForSession(ctx context.Context, sessionID string) ([]store.Chunk, error)
	Settings(ctx context.Context, userID string) (*store.Settings, error)
	DictionaryEntries(ctx context.Context, userID string) ([]dictionary.Entry, error)
}

// Transcriber converts one WAV batch into text. *transcription.Client
// satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, request *transcription.Request) (*transcription.Response, error)
}

// Coordinator owns the lifecycle of live dictation sessions: it
// buffers incoming audio, decides when to flush a batch to the
// speech-to-text backend, accumulates the transcript, and drives every
// session to a terminal durable state.
type Coordinator struct {
	cfg      config.FlushConfig
	sessions *registry
	db       Persistence
	stt      Transcriber
	events   *events.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger

	now func() time.Time // Injected for tests

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a session coordinator. Call StartSweeper to begin
// reaping abandoned sessions and Close on shutdown.
func New(cfg config.FlushConfig, db Persistence, stt Transcriber, pub *events.Publisher,
	m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		sessions: newRegistry(),
		db:       db,
		stt:      stt,
		events:   pub,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// StartParams describes a new dictation session. Language and Model
// fall back to the user's stored settings when empty; PromptContext is
// an optional free-text hint fed to the backend until the session has
// transcript of its own.
type StartParams struct {
	UserID        string
	Title         string
	Language      string
	Model         string
	PromptContext string
}

// Start creates a durable session row and registers the in-memory
// working state that subsequent chunk uploads attach to.
func (c *Coordinator) Start(ctx context.Context, p StartParams) (*store.Session, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrBadRequest)
	}

	language, model := p.Language, p.Model
	if language == "" || model == "" {
		settings, err := c.db.Settings(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		if settings != nil {
			if language == "" {
				language = settings.DefaultLanguage
			}
			if model == "" {
				model = settings.Model
			}
		}
	}
	if language == "" {
		language = "en"
	}

	entries, err := c.db.DictionaryEntries(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}
	dictionary.SortByPriority(entries)

	id := uuid.NewString()
	sess := &store.Session{
		ID:            id,
		UserID:        p.UserID,
		Title:         p.Title,
		Status:        store.StatusStreaming,
		Language:      language,
		Model:         model,
		PromptContext: p.PromptContext,
	}
	if err := c.db.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	now := c.now()
	c.sessions.put(id, &session{
		id:            id,
		userID:        p.UserID,
		language:      language,
		model:         model,
		promptContext: p.PromptContext,
		entries:       entries,
		lastFlushAt:   now,
		lastActivity:  now,
		flushDone:     closedChan(),
		persistDone:   closedChan(),
	})

	c.metrics.SessionsStarted.Inc()
	c.metrics.ActiveSessions.Inc()
	c.logger.Info("session started",
		slog.String("session_id", id),
		slog.String("user_id", p.UserID),
		slog.String("language", language))
	c.publishLifecycle(ctx, id, p.UserID, store.StatusStreaming, 0, events.TypeSessionStarted)

	return c.lookup(ctx, id)
}

// Ingest decodes one base64 PCM chunk into the session's buffer and
// evaluates the flush trigger policy. It returns before any backend
// call completes. Sessions owned by another user look absent.
func (c *Coordinator) Ingest(ctx context.Context, id, userID, chunk string) error {
	raw, err := audio.DecodeChunk(chunk)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	s := c.sessions.get(id)
	if s == nil {
		s, err = c.recover(ctx, id, userID)
		if err != nil {
			return err
		}
	}
	if s.userID != userID {
		return ErrNotFound
	}

	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return ErrConflict
	}

	now := c.now()
	s.pending = append(s.pending, raw)
	s.lastActivity = now

	rms := audio.RMS(raw)
	if rms < c.cfg.SilenceRMS {
		s.wasSilent = true
	} else if s.wasSilent && rms >= c.cfg.SilenceRMS*c.cfg.ResumeFactor {
		s.resumed = true
		s.wasSilent = false
	}

	c.metrics.ChunksIngested.Inc()
	c.metrics.AudioBytes.Add(float64(len(raw)))

	// At most one flush in flight per session. Backlog outranks the
	// resume and interval triggers.
	var reason string
	switch {
	case s.flushing:
	case len(s.pending) > c.cfg.BacklogCeiling:
		reason = "backlog"
	case s.resumed && len(s.pending) >= c.cfg.ResumeMinChunks:
		reason = "resume"
	case now.Sub(s.lastFlushAt) >= c.cfg.GetInterval():
		reason = "interval"
	}

	if reason == "" {
		s.mu.Unlock()
		return nil
	}

	batch := s.pending
	s.pending = nil
	resumed := s.resumed
	s.resumed = false
	s.flushing = true
	s.flushDone = make(chan struct{})
	s.mu.Unlock()

	c.metrics.FlushesTriggered.WithLabelValues(reason).Inc()
	go c.flush(s, batch, resumed, false)

	return nil
}

// Finalize drains the session and moves it to the completed status.
// It waits for the in-flight flush, sends any remaining audio in one
// final batch, and joins all outstanding persistence writes before
// marking the durable row. Calling it again on a finished session
// returns the stored row without side effects.
func (c *Coordinator) Finalize(ctx context.Context, id string) (*store.Session, error) {
	s := c.sessions.get(id)
	if s == nil {
		return c.finalizeLost(ctx, id)
	}

	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return c.lookup(ctx, id)
	}
	s.terminal = true

	for s.flushing {
		done := s.flushDone
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}

	var batch [][]byte
	if len(s.pending) > 0 {
		batch = s.pending
		s.pending = nil
		s.flushing = true
		s.flushDone = make(chan struct{})
	}
	resumed := s.resumed
	s.resumed = false
	s.mu.Unlock()

	if batch != nil {
		c.metrics.FlushesTriggered.WithLabelValues("finalize").Inc()
		c.flush(s, batch, resumed, true)
	}

	s.persist.Wait()

	s.mu.Lock()
	final := s.accumulated
	s.mu.Unlock()

	if err := c.db.Finish(ctx, id, store.StatusCompleted, final, c.now()); err != nil {
		s.mu.Lock()
		s.terminal = false
		s.mu.Unlock()
		return nil, fmt.Errorf("finish session: %w", err)
	}

	c.sessions.remove(id)
	c.metrics.ActiveSessions.Dec()
	c.metrics.SessionsCompleted.Inc()

	sess, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	c.metrics.SessionDuration.Observe(float64(sess.DurationMs) / 1000)
	c.logger.Info("session completed",
		slog.String("session_id", id),
		slog.Int64("duration_ms", sess.DurationMs),
		slog.Int("transcript_len", len(final)))
	c.publishLifecycle(ctx, id, s.userID, store.StatusCompleted, sess.DurationMs, events.TypeSessionFinished)

	return sess, nil
}

// finalizeLost handles finalize for a session with no in-memory
// state. A durable row still marked streaming means the buffer died
// with a previous process, so the session cannot be completed.
func (c *Coordinator) finalizeLost(ctx context.Context, id string) (*store.Session, error) {
	sess, err := c.db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if store.IsTerminal(sess.Status) {
		return sess, nil
	}

	// The unprocessed audio tail only ever lived in memory, so the
	// transcript cannot be completed. Leave an explanation in place of
	// the missing tail.
	const note = "[Recording interrupted: audio captured after the last transcription was lost.]"
	tr := sess.Transcript
	if tr != "" {
		tr += " " + note
	} else {
		tr = note
	}

	if err := c.db.Finish(ctx, id, store.StatusFailed, tr, c.now()); err != nil {
		return nil, fmt.Errorf("fail orphaned session: %w", err)
	}

	c.metrics.SessionsFailed.Inc()
	c.logger.Warn("finalize on session without in-memory buffer, marking failed",
		slog.String("session_id", id))
	c.publishLifecycle(ctx, id, sess.UserID, store.StatusFailed, sess.DurationMs, events.TypeSessionFinished)

	return nil, fmt.Errorf("%w: in-memory buffer lost", ErrNotFound)
}

// Cancel discards the session's buffered audio and marks it cancelled.
// An in-flight flush is not awaited; its result is dropped when it
// lands. Cancelling a finished session is a no-op.
func (c *Coordinator) Cancel(ctx context.Context, id string) error {
	s := c.sessions.get(id)
	if s == nil {
		sess, err := c.db.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if sess == nil {
			return ErrNotFound
		}
		if store.IsTerminal(sess.Status) {
			return nil
		}
		if err := c.db.Finish(ctx, id, store.StatusCancelled, sess.Transcript, c.now()); err != nil {
			return fmt.Errorf("cancel session: %w", err)
		}
		c.metrics.SessionsCancelled.Inc()
		c.publishLifecycle(ctx, id, sess.UserID, store.StatusCancelled, sess.DurationMs, events.TypeSessionFinished)
		return nil
	}

	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return nil
	}
	s.terminal = true
	s.cancelled = true
	s.pending = nil
	tr := s.accumulated
	s.mu.Unlock()

	if err := c.db.Finish(ctx, id, store.StatusCancelled, tr, c.now()); err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}

	c.sessions.remove(id)
	c.metrics.ActiveSessions.Dec()
	c.metrics.SessionsCancelled.Inc()
	c.logger.Info("session cancelled", slog.String("session_id", id))
	c.publishLifecycle(ctx, id, s.userID, store.StatusCancelled, 0, events.TypeSessionFinished)

	return nil
}

// Get returns the durable session row plus its transcript chunk log.
// For a live session the transcript is overlaid from memory, which is
// ahead of the asynchronously written row.
func (c *Coordinator) Get(ctx context.Context, id string) (*store.Session, []store.Chunk, error) {
	sess, err := c.db.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrNotFound
	}

	if s := c.sessions.get(id); s != nil {
		s.mu.Lock()
		sess.Transcript = s.accumulated
		s.mu.Unlock()
	}

	chunks, err := c.db.ChunksForSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sess, chunks, nil
}

// recover rebuilds in-memory state for a session whose durable row is
// still streaming but whose buffer belonged to a previous process.
// Audio buffered before the restart is gone; the persisted transcript
// survives. Ownership is checked against the durable row before any
// state is registered so probing another user's id leaves no trace.
func (c *Coordinator) recover(ctx context.Context, id, userID string) (*session, error) {
	sess, err := c.db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, ErrNotFound
	}
	if store.IsTerminal(sess.Status) {
		return nil, ErrConflict
	}

	entries, err := c.db.DictionaryEntries(ctx, sess.UserID)
	if err != nil {
		c.logger.Warn("dictionary reload failed during recovery",
			slog.String("session_id", id), slog.String("error", err.Error()))
		entries = nil
	}
	dictionary.SortByPriority(entries)

	chunks, err := c.db.ChunksForSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load chunk log: %w", err)
	}
	seq := 0
	acc := sess.Transcript
	if n := len(chunks); n > 0 {
		seq = chunks[n-1].Sequence + 1
		// The chunk log holds every committed segment, so it wins over
		// a transcript row a crash caught mid-write.
		parts := make([]string, 0, len(chunks))
		for _, ch := range chunks {
			parts = append(parts, ch.Text)
		}
		if rebuilt := strings.Join(parts, " "); len(rebuilt) > len(acc) {
			acc = rebuilt
		}
	}

	now := c.now()
	s, inserted := c.sessions.getOrPut(id, &session{
		id:            id,
		userID:        sess.UserID,
		language:      sess.Language,
		model:         sess.Model,
		promptContext: sess.PromptContext,
		entries:       entries,
		accumulated:   acc,
		seq:           seq,
		lastFlushAt:   now,
		lastActivity:  now,
		flushDone:     closedChan(),
		persistDone:   closedChan(),
	})
	if inserted {
		c.metrics.SessionsRecovered.Inc()
		c.metrics.ActiveSessions.Inc()
		c.logger.Warn("rebuilt session state after restart, buffered audio lost",
			slog.String("session_id", id),
			slog.Int("next_sequence", seq))
	}
	return s, nil
}

// flush sends one audio batch through the speech-to-text backend and
// commits the resulting text. final marks the drain at finalize: the
// minimum-duration guard is waived and a backend failure drops the
// audio instead of restoring it.
func (c *Coordinator) flush(s *session, batch [][]byte, resumed, final bool) {
	start := c.now()
	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.lastFlushAt = c.now()
		close(s.flushDone)
		s.mu.Unlock()
		c.metrics.FlushDuration.Observe(c.now().Sub(start).Seconds())
	}()

	total := 0
	for _, chunk := range batch {
		total += len(chunk)
	}
	raw := make([]byte, 0, total)
	for _, chunk := range batch {
		raw = append(raw, chunk...)
	}

	minAudio := c.cfg.GetMinAudio()
	if resumed {
		minAudio = c.cfg.GetResumeMinAudio()
	}
	if !final && audio.Duration(len(raw)) < minAudio {
		c.restore(s, batch, resumed)
		c.metrics.FlushesSkipped.WithLabelValues("too_short").Inc()
		return
	}

	if audio.RMS(raw) < c.cfg.SilenceRMS {
		c.metrics.FlushesSkipped.WithLabelValues("silence").Inc()
		c.logger.Debug("flush discarded below silence floor",
			slog.String("session_id", s.id),
			slog.Int("bytes", len(raw)))
		return
	}

	wav, err := audio.EncodeWAV(raw, audio.SampleRate)
	if err != nil {
		c.logger.Error("wav encoding failed, dropping batch",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	// Until the session has transcript of its own, the caller-supplied
	// hint fills the context slot.
	base := s.accumulated
	if base == "" {
		base = s.promptContext
	}
	prompt := transcript.BuildContextPrompt(base, s.entries)
	seq := s.seq
	s.mu.Unlock()

	resp, err := c.stt.Transcribe(context.Background(), &transcription.Request{
		Audio:     wav,
		Language:  s.language,
		Model:     s.model,
		Prompt:    prompt,
		RequestID: fmt.Sprintf("%s-%04d", s.id, seq),
	})
	if err != nil {
		c.metrics.TranscriptionFailures.Inc()
		if final {
			c.logger.Error("final flush failed, tail audio lost",
				slog.String("session_id", s.id),
				slog.Int64("audio_ms", audio.DurationMs(len(raw))),
				slog.String("error", err.Error()))
			return
		}
		c.restore(s, batch, resumed)
		c.metrics.FlushesRestored.Inc()
		c.logger.Warn("flush failed, audio restored to buffer",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
		return
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		c.metrics.FlushesSkipped.WithLabelValues("empty").Inc()
		return
	}

	if transcript.IsHallucination(text) {
		c.metrics.HallucinationsDiscarded.Inc()
		c.logger.Warn("discarded hallucinated segment",
			slog.String("session_id", s.id),
			slog.Int("chars", len(text)))
		return
	}

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.seq++
	s.accumulated = transcript.Append(s.accumulated, resp.Text)
	acc := s.accumulated
	// Durable writes must land in flush order or a stalled earlier
	// write could roll the transcript row back behind a newer one.
	// Each write waits for its predecessor before starting.
	prev := s.persistDone
	next := make(chan struct{})
	s.persistDone = next
	s.mu.Unlock()

	durMs := audio.DurationMs(len(raw))
	s.persist.Add(1)
	go func() {
		defer close(next)
		<-prev
		c.persistSegment(s, seq, text, acc, durMs)
	}()
}

// persistSegment writes one committed segment behind the session's
// persist WaitGroup. Failures are logged and counted; the in-memory
// transcript remains authoritative until finalize.
func (c *Coordinator) persistSegment(s *session, seq int, text, accumulated string, durMs int64) {
	defer s.persist.Done()
	ctx := context.Background()

	if err := c.db.UpdateTranscript(ctx, s.id, accumulated); err != nil {
		c.metrics.PersistFailures.Inc()
		c.logger.Error("transcript persist failed",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
	}
	if err := c.db.AppendChunk(ctx, s.id, seq, text); err != nil {
		c.metrics.PersistFailures.Inc()
		c.logger.Error("chunk persist failed",
			slog.String("session_id", s.id),
			slog.Int("sequence", seq),
			slog.String("error", err.Error()))
	}
	if err := c.db.AddDuration(ctx, s.id, durMs); err != nil {
		c.metrics.PersistFailures.Inc()
		c.logger.Error("duration persist failed",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
	}

	if err := c.events.PublishTranscript(ctx, events.TranscriptEvent{
		SessionID: s.id,
		UserID:    s.userID,
		Sequence:  seq,
		Text:      text,
	}); err != nil {
		c.logger.Warn("transcript event publish failed",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
	}
}

// restore puts a failed or undersized batch back at the head of the
// pending buffer so no audio is lost.
func (c *Coordinator) restore(s *session, batch [][]byte, resumed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.pending = append(batch, s.pending...)
	s.resumed = s.resumed || resumed
}

// StartSweeper launches the background reaper that fails sessions
// with no chunk activity past the idle timeout.
func (c *Coordinator) StartSweeper() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *Coordinator) sweep() {
	cutoff := c.now().Add(-c.cfg.GetIdleTimeout())

	for _, id := range c.sessions.ids() {
		s := c.sessions.get(id)
		if s == nil {
			continue
		}

		s.mu.Lock()
		// A flushing session is still making progress; the next sweep
		// will catch it if it stalls.
		if s.terminal || s.flushing || s.lastActivity.After(cutoff) {
			s.mu.Unlock()
			continue
		}
		s.terminal = true
		s.cancelled = true
		tr := s.accumulated
		s.mu.Unlock()

		ctx := context.Background()
		if err := c.db.Finish(ctx, id, store.StatusFailed, tr, c.now()); err != nil {
			c.logger.Error("failed to reap idle session",
				slog.String("session_id", id), slog.String("error", err.Error()))
			continue
		}

		c.sessions.remove(id)
		c.metrics.ActiveSessions.Dec()
		c.metrics.SessionsFailed.Inc()
		c.logger.Warn("reaped idle session",
			slog.String("session_id", id),
			slog.String("user_id", s.userID))
		c.publishLifecycle(ctx, id, s.userID, store.StatusFailed, 0, events.TypeSessionFinished)
	}
}

// Close stops the sweeper. Live sessions stay in the registry and can
// still be finalized until the process exits.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// ActiveCount returns the number of live sessions.
func (c *Coordinator) ActiveCount() int {
	return c.sessions.count()
}

func (c *Coordinator) lookup(ctx context.Context, id string) (*store.Session, error) {
	sess, err := c.db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (c *Coordinator) publishLifecycle(ctx context.Context, id, userID, status string, durMs int64, eventType string) {
	if err := c.events.PublishLifecycle(ctx, events.LifecycleEvent{
		EventType:  eventType,
		SessionID:  id,
		UserID:     userID,
		Status:     status,
		DurationMs: durMs,
	}); err != nil {
		c.logger.Warn("lifecycle event publish failed",
			slog.String("session_id", id), slog.String("error", err.Error()))
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
