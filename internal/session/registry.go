package session

import (
	"sync"
	"time"

	"github.com/scribekit/dictation-service/internal/dictionary"
)

// session holds the in-memory working state of one live dictation
// session. All fields below mu are guarded by it; persist carries the
// fire-and-forget writes joined at finalize.
type session struct {
	id            string
	userID        string
	language      string
	model         string
	promptContext string
	entries       []dictionary.Entry

	persist sync.WaitGroup

	mu           sync.Mutex
	pending      [][]byte // Raw PCM chunks awaiting a flush, in arrival order
	seq          int
	accumulated  string
	lastFlushAt  time.Time
	lastActivity time.Time
	flushing     bool
	flushDone    chan struct{} // Closed when the in-flight flush settles
	persistDone  chan struct{} // Closed when the newest persistence write lands; chains writes in flush order
	wasSilent    bool
	resumed      bool
	terminal     bool
	cancelled    bool
}

// registry is the in-memory index of live sessions.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

func (r *registry) get(id string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

func (r *registry) put(id string, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

// getOrPut inserts s unless another goroutine already registered the
// id. It returns the winning entry and whether s was inserted.
func (r *registry) getOrPut(id string, s *session) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing, false
	}
	r.sessions[id] = s
	return s, true
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
