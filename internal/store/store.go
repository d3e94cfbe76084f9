// Package store holds the file-backed repositories the responder reads and
// learns into: knowledge base, dataset, conversation memory and runtime flags.
//
// Every store caches its last loaded value behind an atomic pointer. Readers
// never lock; writers take the store's own mutex, write the whole file to a
// temporary sibling, rename it into place and then swap the cached value.
// A missing or malformed file is logged and replaced by the store's default.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	ErrDuplicatePair = errors.New("pair already exists")
	ErrEmptyPair     = errors.New("question and answer must not be blank")
	errUnchanged     = errors.New("unchanged")
)

// Invalidator drops a cached value so the next read goes back to disk.
type Invalidator interface {
	Invalidate()
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path with data so that readers observe either the
// old or the new content.
func writeFileAtomic(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// marshalIndent encodes v as indented JSON without HTML escaping, so Arabic
// text and punctuation stay readable in the files.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// touchJSON writes def to path when the file does not exist yet.
func touchJSON(path string, def any) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat: %w", err)
	}
	data, err := marshalIndent(def)
	if err != nil {
		return fmt.Errorf("encode default: %w", err)
	}
	return writeFileAtomic(path, data)
}

// document is a JSON file with a cached decoded value.
type document[T any] struct {
	path string
	def  func() T
	log  zerolog.Logger

	mu  sync.Mutex
	cur atomic.Pointer[T]
}

func newDocument[T any](path string, def func() T, log zerolog.Logger) *document[T] {
	return &document[T]{path: path, def: def, log: log}
}

// get returns the cached value, loading it on first use. Callers must treat
// the result as read-only.
func (d *document[T]) get() T {
	if p := d.cur.Load(); p != nil {
		return *p
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.cur.Load(); p != nil {
		return *p
	}
	v := d.readUnlocked()
	d.cur.Store(&v)
	return v
}

func (d *document[T]) readUnlocked() T {
	data, err := os.ReadFile(d.path)
	if err != nil {
		d.log.Warn().Err(err).Str("path", d.path).Msg("failed reading store, using default")
		return d.def()
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		d.log.Warn().Err(err).Str("path", d.path).Msg("failed parsing store, using default")
		return d.def()
	}
	return v
}

// update applies fn to the current value and persists the result. fn must
// build a new value instead of mutating its argument. Returning errUnchanged
// skips the write. On a write error the cache keeps the previous value.
func (d *document[T]) update(fn func(cur T) (T, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var base T
	if p := d.cur.Load(); p != nil {
		base = *p
	} else {
		base = d.readUnlocked()
	}
	next, err := fn(base)
	if err != nil {
		return err
	}
	data, err := marshalIndent(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(d.path), err)
	}
	if err := writeFileAtomic(d.path, data); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(d.path), err)
	}
	d.cur.Store(&next)
	return nil
}

func (d *document[T]) invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cur.Store(nil)
}
