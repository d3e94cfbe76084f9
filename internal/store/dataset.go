package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Pair is one learned question/answer row.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var datasetHeader = []string{"question", "answer"}

// Dataset is the append-only log of learned pairs. Pairs are returned in
// insertion order. Implementations must be safe for concurrent use.
type Dataset interface {
	Pairs(ctx context.Context) []Pair
	Contains(ctx context.Context, p Pair) bool
	// Append stores p with both fields trimmed. It returns ErrEmptyPair for a
	// blank field and ErrDuplicatePair when the trimmed pair exists.
	Append(ctx context.Context, p Pair) error
	// Delete removes the pairs for question; an empty answer removes all of them.
	Delete(ctx context.Context, question, answer string) (int, error)
	Reset(ctx context.Context) error
	Export(ctx context.Context, w io.Writer) error
	Invalidate()
}

// Trimmed returns p without surrounding whitespace; ok is false when a field
// is blank. Stored pairs are always in this form.
func (p Pair) Trimmed() (Pair, bool) {
	p.Question, p.Answer = strings.TrimSpace(p.Question), strings.TrimSpace(p.Answer)
	return p, p.Question != "" && p.Answer != ""
}

func containsPair(pairs []Pair, p Pair) bool {
	p, ok := p.Trimmed()
	if !ok {
		return false
	}
	for _, x := range pairs {
		if x == p {
			return true
		}
	}
	return false
}

func writeCSV(w io.Writer, pairs []Pair) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(datasetHeader); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := cw.Write([]string{p.Question, p.Answer}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVDataset keeps pairs in dataset.csv with a question,answer header.
type CSVDataset struct {
	path string
	log  zerolog.Logger

	mu  sync.Mutex
	cur atomic.Pointer[[]Pair]
}

func NewCSVDataset(path string, log zerolog.Logger) (*CSVDataset, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		var buf bytes.Buffer
		if err := writeCSV(&buf, nil); err != nil {
			return nil, fmt.Errorf("encode header: %w", err)
		}
		if err := writeFileAtomic(path, buf.Bytes()); err != nil {
			return nil, fmt.Errorf("init dataset: %w", err)
		}
	}
	return &CSVDataset{path: path, log: log.With().Str("store", "dataset").Logger()}, nil
}

func (d *CSVDataset) Pairs(_ context.Context) []Pair {
	return d.load()
}

func (d *CSVDataset) load() []Pair {
	if p := d.cur.Load(); p != nil {
		return *p
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadUnlocked()
}

func (d *CSVDataset) loadUnlocked() []Pair {
	if p := d.cur.Load(); p != nil {
		return *p
	}
	pairs := d.readUnlocked()
	d.cur.Store(&pairs)
	return pairs
}

func (d *CSVDataset) readUnlocked() []Pair {
	f, err := os.Open(d.path)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed loading dataset, using empty")
		return []Pair{}
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	pairs := []Pair{}
	header := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.log.Warn().Err(err).Int("loaded", len(pairs)).Msg("failed loading dataset rows")
			break
		}
		if header {
			header = false
			continue
		}
		if len(row) < 2 {
			continue
		}
		q, a := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if q != "" && a != "" {
			pairs = append(pairs, Pair{Question: q, Answer: a})
		}
	}
	d.log.Debug().Int("pairs", len(pairs)).Msg("dataset loaded")
	return pairs
}

func (d *CSVDataset) Contains(_ context.Context, p Pair) bool {
	return containsPair(d.load(), p)
}

// Append adds one row to the end of the file and reloads the cache.
func (d *CSVDataset) Append(_ context.Context, p Pair) error {
	p, ok := p.Trimmed()
	if !ok {
		return ErrEmptyPair
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if containsPair(d.loadUnlocked(), p) {
		return ErrDuplicatePair
	}

	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat: %w", err)
	}
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if st.Size() == 0 {
		_ = cw.Write(datasetHeader)
	}
	_ = cw.Write([]string{p.Question, p.Answer})
	cw.Flush()
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append row: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	pairs := d.readUnlocked()
	d.cur.Store(&pairs)
	return nil
}

func (d *CSVDataset) Delete(_ context.Context, question, answer string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pairs := d.readUnlocked()
	kept := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Question == question && (answer == "" || p.Answer == answer) {
			continue
		}
		kept = append(kept, p)
	}
	removed := len(pairs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := d.rewriteUnlocked(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (d *CSVDataset) Reset(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rewriteUnlocked(nil)
}

func (d *CSVDataset) rewriteUnlocked(pairs []Pair) error {
	var buf bytes.Buffer
	if err := writeCSV(&buf, pairs); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := writeFileAtomic(d.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	fresh := d.readUnlocked()
	d.cur.Store(&fresh)
	return nil
}

// Export streams the file as stored on disk.
func (d *CSVDataset) Export(_ context.Context, w io.Writer) error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

func (d *CSVDataset) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cur.Store(nil)
}

func (d *CSVDataset) Path() string { return d.path }
