// Package maintenance implements the administrative operations around the
// stores: statistics, backups, resets and dataset and flag editing.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-khaled/internal/analytics"
	"ai-khaled/internal/store"
)

const (
	// ResetConfirmation must be passed to Reset.
	ResetConfirmation = "yes"
	topQuestions      = 5
)

var (
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrInvalidPair          = errors.New("question and answer required")
	ErrQuestionRequired     = errors.New("question required")
)

type Memory interface {
	Load() store.Transcript
	Reset() error
	Path() string
}

type LastSession interface {
	Get() string
}

// CacheInvalidator drops a cached reply.
type CacheInvalidator interface {
	Delete(ctx context.Context, text string)
}

// Service bundles the stores the admin operations work on. Files lists the
// paths copied by Backup.
type Service struct {
	memory      Memory
	dataset     store.Dataset
	flags       *store.FlagStore
	lastSession LastSession
	backupDir   string
	files       []string
	cache       CacheInvalidator
	log         zerolog.Logger
	now         func() time.Time
}

type Options struct {
	BackupDir string
	// Files are backed up in order. Missing files are skipped with a warning.
	Files []string
}

func New(memory Memory, dataset store.Dataset, flags *store.FlagStore, lastSession LastSession, opts Options, log zerolog.Logger) *Service {
	return &Service{
		memory:      memory,
		dataset:     dataset,
		flags:       flags,
		lastSession: lastSession,
		backupDir:   opts.BackupDir,
		files:       opts.Files,
		log:         log.With().Str("component", "maintenance").Logger(),
		now:         time.Now,
	}
}

// WithCache lets dataset edits drop stale cached replies.
func (s *Service) WithCache(c CacheInvalidator) *Service {
	s.cache = c
	return s
}

func (s *Service) Stats(ctx context.Context) *analytics.Stats {
	return analytics.Analyze(s.memory.Load(), len(s.dataset.Pairs(ctx)), s.lastSession.Get(), topQuestions)
}

func (s *Service) DailyStats(day time.Time) *analytics.DailyStats {
	return analytics.AnalyzeDay(s.memory.Load(), day)
}

// Backup copies every configured file to BackupDir as
// <stem>_<YYYYmmdd_HHMMSS><ext> and returns the created paths. Failures of
// single files are logged and skipped.
func (s *Service) Backup() ([]string, error) {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	stamp := s.now().Format("20060102_150405")
	created := []string{}
	for _, src := range s.files {
		ext := filepath.Ext(src)
		stem := strings.TrimSuffix(filepath.Base(src), ext)
		dst := filepath.Join(s.backupDir, stem+"_"+stamp+ext)
		if err := copyFile(src, dst); err != nil {
			s.log.Warn().Err(err).Str("file", src).Msg("backup failed")
			continue
		}
		created = append(created, dst)
	}
	s.log.Info().Int("files", len(created)).Msg("backup created")
	return created, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(in)
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	return out.Close()
}

// Reset clears memory and the dataset. The knowledge base and flags are
// kept. confirm must equal ResetConfirmation.
func (s *Service) Reset(ctx context.Context, confirm string) error {
	if confirm != ResetConfirmation {
		return ErrConfirmationRequired
	}
	if err := s.memory.Reset(); err != nil {
		return fmt.Errorf("reset memory: %w", err)
	}
	if err := s.dataset.Reset(ctx); err != nil {
		return fmt.Errorf("reset dataset: %w", err)
	}
	s.log.Warn().Msg("memory and dataset reset")
	return nil
}

// ListPairs returns the total number of pairs and at most limit of them;
// limit <= 0 returns all.
func (s *Service) ListPairs(ctx context.Context, limit int) (int, []store.Pair) {
	pairs := s.dataset.Pairs(ctx)
	total := len(pairs)
	if limit > 0 && limit < total {
		pairs = pairs[:limit]
	}
	out := make([]store.Pair, len(pairs))
	copy(out, pairs)
	return total, out
}

// AddPair appends a pair. An existing identical pair yields store.ErrDuplicatePair.
func (s *Service) AddPair(ctx context.Context, question, answer string) error {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return ErrInvalidPair
	}
	if err := s.dataset.Append(ctx, store.Pair{Question: question, Answer: answer}); err != nil {
		return err
	}
	s.log.Info().Str("question", question).Msg("dataset pair added")
	return nil
}

// DeletePairs removes the pairs for question, or only the one with answer
// when answer is set.
func (s *Service) DeletePairs(ctx context.Context, question, answer string) (int, error) {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" {
		return 0, ErrQuestionRequired
	}
	n, err := s.dataset.Delete(ctx, question, answer)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.cache != nil {
		s.cache.Delete(ctx, question)
	}
	s.log.Info().Int("removed", n).Str("question", question).Msg("dataset pairs deleted")
	return n, nil
}

func (s *Service) ExportDataset(ctx context.Context, w io.Writer) error {
	return s.dataset.Export(ctx, w)
}

func (s *Service) Flags() store.Flags { return s.flags.Load() }

func (s *Service) UpdateFlags(patch map[string]any) (store.Flags, error) {
	f, err := s.flags.Update(patch)
	if err != nil {
		return nil, err
	}
	s.log.Info().Interface("patch", patch).Msg("flags updated")
	return f, nil
}

// ParseFlagValue reads a flag value typed on a command line. JSON literals
// (true, 3, "x", null) are decoded; anything else is kept as a string.
func ParseFlagValue(raw string) any {
	raw = strings.TrimSpace(raw)
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// ParseFlagAssignments turns key=value arguments into a flag patch.
func ParseFlagAssignments(args []string) (map[string]any, error) {
	patch := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		patch[k] = ParseFlagValue(v)
	}
	return patch, nil
}
