package store

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// LastSession remembers the id of the most recently started session.
type LastSession struct {
	path string
	mu   sync.Mutex
}

func NewLastSession(path string) (*LastSession, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &LastSession{path: path}, nil
}

// Get returns the stored id, or "" when nothing is stored or the file is unreadable.
func (l *LastSession) Get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := os.ReadFile(l.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (l *LastSession) Set(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return writeFileAtomic(l.path, []byte(id))
}
