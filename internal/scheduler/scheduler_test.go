package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.Add(Job{Name: "backup", Spec: "not a cron", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
	assert.False(t, s.IsRunning())
}

func TestEmptySpecDisablesJob(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Add(Job{Name: "retrain", Spec: "", Run: func(context.Context) error { return nil }}))
	assert.False(t, s.IsRunning())
}

func TestJobRuns(t *testing.T) {
	s := New(zerolog.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) error {
		runs.Add(1)
		return errors.New("failures are only logged")
	}}))
	assert.True(t, s.IsRunning())

	s.Start()
	defer s.Stop()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
