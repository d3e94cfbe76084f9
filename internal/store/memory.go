package store

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Message is one conversation turn.
type Message struct {
	Timestamp int64  `json:"timestamp"`
	UserText  string `json:"user_text"`
	BotText   string `json:"bot_text"`
}

// Session groups the turns of one conversation. AwaitingAnswer holds the
// question the bot asked to be taught, if any.
type Session struct {
	ID             string    `json:"id"`
	Messages       []Message `json:"messages"`
	AwaitingAnswer string    `json:"awaiting_answer,omitempty"`
}

// Transcript is the memory.json document.
type Transcript struct {
	Sessions []Session `json:"sessions"`
}

// Find returns the index of the session with id, or -1.
func (t Transcript) Find(id string) int {
	for i, s := range t.Sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (t Transcript) clone() Transcript {
	out := Transcript{Sessions: make([]Session, len(t.Sessions))}
	copy(out.Sessions, t.Sessions)
	return out
}

// NewSessionID derives a session id from the current unix time.
func NewSessionID(now time.Time) string {
	return strconv.FormatInt(now.Unix(), 10)
}

// Memory is the conversation transcript in memory.json.
type Memory struct {
	doc *document[Transcript]
	now func() time.Time
}

func NewMemory(path string, log zerolog.Logger) (*Memory, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if err := touchJSON(path, Transcript{Sessions: []Session{}}); err != nil {
		return nil, err
	}
	doc := newDocument(path, func() Transcript { return Transcript{Sessions: []Session{}} }, log.With().Str("store", "memory").Logger())
	return &Memory{doc: doc, now: time.Now}, nil
}

// Load returns the cached transcript. It must not be modified.
func (m *Memory) Load() Transcript { return m.doc.get() }

func (m *Memory) Session(id string) (Session, bool) {
	t := m.doc.get()
	if i := t.Find(id); i >= 0 {
		return t.Sessions[i], true
	}
	return Session{}, false
}

// AppendMessage records msg in the session sessionID, creating it when
// missing. An empty sessionID appends to the most recent session, or starts a
// new one. The id actually used is returned.
func (m *Memory) AppendMessage(sessionID string, msg Message) (string, error) {
	if msg.Timestamp == 0 {
		msg.Timestamp = m.now().Unix()
	}
	used := sessionID
	err := m.doc.update(func(cur Transcript) (Transcript, error) {
		next := cur.clone()
		i := -1
		if sessionID != "" {
			i = next.Find(sessionID)
		} else if len(next.Sessions) > 0 {
			i = len(next.Sessions) - 1
		}
		if i < 0 {
			if used == "" {
				used = NewSessionID(m.now())
			}
			next.Sessions = append(next.Sessions, Session{ID: used})
			i = len(next.Sessions) - 1
		}
		s := next.Sessions[i]
		used = s.ID
		msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
		copy(msgs, s.Messages)
		s.Messages = append(msgs, msg)
		next.Sessions[i] = s
		return next, nil
	})
	if err != nil {
		return "", err
	}
	return used, nil
}

// SetAwaiting stores (or clears, with an empty question) the teach marker of
// a session, creating the session when needed.
func (m *Memory) SetAwaiting(sessionID, question string) error {
	err := m.doc.update(func(cur Transcript) (Transcript, error) {
		i := cur.Find(sessionID)
		if i < 0 && question == "" {
			return cur, errUnchanged
		}
		if i >= 0 && cur.Sessions[i].AwaitingAnswer == question {
			return cur, errUnchanged
		}
		next := cur.clone()
		if i < 0 {
			next.Sessions = append(next.Sessions, Session{ID: sessionID, Messages: []Message{}})
			i = len(next.Sessions) - 1
		}
		next.Sessions[i].AwaitingAnswer = question
		return next, nil
	})
	if err == errUnchanged {
		return nil
	}
	return err
}

// Reset drops every session.
func (m *Memory) Reset() error {
	return m.doc.update(func(Transcript) (Transcript, error) {
		return Transcript{Sessions: []Session{}}, nil
	})
}

func (m *Memory) Invalidate() { m.doc.invalidate() }

func (m *Memory) Path() string { return m.doc.path }
