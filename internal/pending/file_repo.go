package pending

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileRepository persists outstanding teach questions as a JSON array so
// they survive a restart.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) LoadAll() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *FileRepository) Upsert(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, _ := r.loadUnlocked()
	updated := false
	for i, x := range entries {
		if x.SessionID == e.SessionID {
			entries[i] = e
			updated = true
			break
		}
	}
	if !updated {
		entries = append(entries, e)
	}
	return r.saveUnlocked(entries)
}

func (r *FileRepository) Remove(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, _ := r.loadUnlocked()
	out := make([]Entry, 0, len(entries))
	for _, x := range entries {
		if x.SessionID != sessionID {
			out = append(out, x)
		}
	}
	return r.saveUnlocked(out)
}

func (r *FileRepository) loadUnlocked() ([]Entry, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	var entries []Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		if err == io.EOF {
			return []Entry{}, nil
		}
		// empty or malformed -> start fresh
		return []Entry{}, nil
	}
	return entries, nil
}

func (r *FileRepository) saveUnlocked(entries []Entry) error {
	tmp := r.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open write: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return os.Rename(tmp, r.path)
}
