// Package trainer builds the similarity model from the learned dataset and
// the conversation memory.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-khaled/internal/metrics"
	"ai-khaled/internal/model"
	"ai-khaled/internal/store"
)

var ErrBusy = errors.New("training already running")

// TranscriptSource provides the conversation memory.
type TranscriptSource interface {
	Load() store.Transcript
}

type Result struct {
	Examples int
	Path     string
	Took     time.Duration
}

type Trainer struct {
	dataset store.Dataset
	memory  TranscriptSource
	path    string
	opts    model.Options
	log     zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(dataset store.Dataset, memory TranscriptSource, modelPath string, opts model.Options, log zerolog.Logger) *Trainer {
	return &Trainer{
		dataset: dataset,
		memory:  memory,
		path:    modelPath,
		opts:    opts,
		log:     log.With().Str("component", "trainer").Logger(),
	}
}

// Examples collects dataset pairs followed by every complete memory turn.
func (t *Trainer) Examples(ctx context.Context) []model.Example {
	var out []model.Example
	for _, p := range t.dataset.Pairs(ctx) {
		out = append(out, model.Example{Text: p.Question, Label: p.Answer})
	}
	for _, s := range t.memory.Load().Sessions {
		for _, m := range s.Messages {
			u, b := strings.TrimSpace(m.UserText), strings.TrimSpace(m.BotText)
			if u != "" && b != "" {
				out = append(out, model.Example{Text: u, Label: b})
			}
		}
	}
	return out
}

// Run trains and writes the artifact. Only one run proceeds at a time;
// others get ErrBusy.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	if !t.running.CompareAndSwap(false, true) {
		metrics.RecordRetrain("skipped")
		return Result{}, ErrBusy
	}
	defer t.running.Store(false)

	start := time.Now()
	examples := t.Examples(ctx)
	m, err := model.Train(examples, t.opts)
	if err != nil {
		metrics.RecordRetrain("failed")
		return Result{}, fmt.Errorf("train: %w", err)
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordRetrain("failed")
		return Result{}, err
	}
	if err := model.Save(t.path, m); err != nil {
		metrics.RecordRetrain("failed")
		return Result{}, fmt.Errorf("save model: %w", err)
	}
	res := Result{Examples: len(m.Labels), Path: t.path, Took: time.Since(start)}
	metrics.RecordRetrain("ok")
	t.log.Info().Int("examples", res.Examples).Dur("took", res.Took).Str("path", res.Path).Msg("model trained")
	return res, nil
}

// Trigger starts a background run unless one is already in progress.
func (t *Trainer) Trigger() {
	if t.running.Load() {
		t.log.Debug().Msg("retrain already running, trigger ignored")
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if _, err := t.Run(context.Background()); err != nil && !errors.Is(err, ErrBusy) {
			t.log.Warn().Err(err).Msg("background retrain failed")
		}
	}()
}

// Wait blocks until background runs started by Trigger have finished.
func (t *Trainer) Wait() { t.wg.Wait() }
