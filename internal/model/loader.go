package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Predictor answers a question with a predicted reply.
type Predictor interface {
	Predict(ctx context.Context, text string) (string, error)
}

// Loader serves predictions from the artifact at path. The artifact is read
// lazily and read again whenever its modification time changes, so a retrain
// is picked up without a restart. Concurrent loads share one read.
type Loader struct {
	path  string
	log   zerolog.Logger
	group singleflight.Group

	mu      sync.RWMutex
	model   *Model
	modTime time.Time
}

func NewLoader(path string, log zerolog.Logger) *Loader {
	return &Loader{path: path, log: log.With().Str("component", "model_loader").Logger()}
}

func (l *Loader) Path() string { return l.path }

func (l *Loader) Predict(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := l.Current()
	if err != nil {
		return "", err
	}
	return m.Predict(text)
}

// Current returns the loaded model, reloading it when the file changed.
func (l *Loader) Current() (*Model, error) {
	st, err := os.Stat(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.mu.Lock()
		l.model, l.modTime = nil, time.Time{}
		l.mu.Unlock()
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, fmt.Errorf("stat model: %w", err)
	}

	l.mu.RLock()
	m, mt := l.model, l.modTime
	l.mu.RUnlock()
	if m != nil && mt.Equal(st.ModTime()) {
		return m, nil
	}

	v, err, _ := l.group.Do("load", func() (any, error) {
		loaded, err := Load(l.path)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.model, l.modTime = loaded, st.ModTime()
		l.mu.Unlock()
		l.log.Info().Int("examples", len(loaded.Labels)).Time("trained_at", loaded.TrainedAt).Msg("model loaded")
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}
