// Package pending tracks questions the bot could not answer and asked the
// user to teach it.
package pending

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is an outstanding teach question for one session.
type Entry struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	LoadAll() ([]Entry, error)
	Upsert(e Entry) error
	Remove(sessionID string) error
}

// Tracker holds at most one pending question per session. The in-memory map
// is authoritative; the optional repository only mirrors it.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]Entry
	repo    Repository
	log     zerolog.Logger
	now     func() time.Time
}

// NewTracker builds a tracker preloaded from repo. repo may be nil.
func NewTracker(repo Repository, log zerolog.Logger) *Tracker {
	t := &Tracker{
		entries: make(map[string]Entry),
		repo:    repo,
		log:     log.With().Str("component", "pending").Logger(),
		now:     time.Now,
	}
	if repo != nil {
		items, err := repo.LoadAll()
		if err != nil {
			t.log.Warn().Err(err).Msg("failed loading pending questions")
		}
		for _, e := range items {
			if e.SessionID != "" {
				t.entries[e.SessionID] = e
			}
		}
	}
	return t
}

func (t *Tracker) IsWaiting(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[sessionID]
	return ok
}

// Register records question as pending for sessionID, replacing any earlier one.
func (t *Tracker) Register(sessionID, question string) {
	e := Entry{SessionID: sessionID, Question: question, CreatedAt: t.now().UTC()}
	t.mu.Lock()
	t.entries[sessionID] = e
	t.mu.Unlock()
	if t.repo != nil {
		if err := t.repo.Upsert(e); err != nil {
			t.log.Warn().Err(err).Str("session", sessionID).Msg("failed persisting pending question")
		}
	}
}

// Take removes and returns the pending question for sessionID.
func (t *Tracker) Take(sessionID string) (string, bool) {
	t.mu.Lock()
	e, ok := t.entries[sessionID]
	if ok {
		delete(t.entries, sessionID)
	}
	t.mu.Unlock()
	if !ok {
		return "", false
	}
	if t.repo != nil {
		if err := t.repo.Remove(sessionID); err != nil {
			t.log.Warn().Err(err).Str("session", sessionID).Msg("failed removing pending question")
		}
	}
	return e.Question, true
}

// List returns the outstanding entries.
func (t *Tracker) List() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
