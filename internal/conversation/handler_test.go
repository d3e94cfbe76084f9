package conversation

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-khaled/internal/cache"
	"ai-khaled/internal/pending"
	"ai-khaled/internal/responder"
	"ai-khaled/internal/storage"
	"ai-khaled/internal/store"
)

type fakeRetrain struct{ calls atomic.Int32 }

func (f *fakeRetrain) Trigger() { f.calls.Add(1) }

type fixture struct {
	h       *Handler
	kb      *store.KnowledgeBase
	mem     *store.Memory
	ds      *store.CSVDataset
	flags   *store.FlagStore
	last    *store.LastSession
	tracker *pending.Tracker
	retrain *fakeRetrain
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := zerolog.Nop()
	kb, err := store.NewKnowledgeBase(filepath.Join(dir, "kb.json"), log)
	require.NoError(t, err)
	mem, err := store.NewMemory(filepath.Join(dir, "memory.json"), log)
	require.NoError(t, err)
	ds, err := store.NewCSVDataset(filepath.Join(dir, "dataset.csv"), log)
	require.NoError(t, err)
	flags, err := store.NewFlagStore(filepath.Join(dir, "config.json"), log)
	require.NoError(t, err)
	last, err := store.NewLastSession(filepath.Join(dir, "last_session.txt"))
	require.NoError(t, err)

	f := &fixture{kb: kb, mem: mem, ds: ds, flags: flags, last: last, tracker: pending.NewTracker(nil, log), retrain: &fakeRetrain{}}
	svc := responder.New(responder.Deps{
		Cache:   cache.NewMemory(0),
		KB:      kb,
		Memory:  mem,
		Dataset: ds,
		Pending: f.tracker,
		Flags:   flags,
		Retrain: f.retrain,
	}, responder.DefaultOptions(), log)
	f.h = NewHandler(svc, mem, ds, flags, last, f.retrain, nil, log)
	f.h.now = func() time.Time { return time.Unix(1700000000, 0) }
	return f
}

func TestFilter(t *testing.T) {
	f := NewFilter(DefaultBlockedWords)
	assert.Equal(t, "مرحبا", f.Clean("  مرحبا "))
	assert.Equal(t, Censored, f.Clean("انت زب"))
	assert.Equal(t, "", f.Clean("   "))
	assert.Equal(t, "anything", NewFilter([]string{" ", ""}).Clean("anything"))
}

func TestHandleEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.Handle(context.Background(), "s1", "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandleRecordsAndAutoTrains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.h.Handle(ctx, "s1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, responder.StageKB, res.Stage)
	assert.Equal(t, store.DefaultKnowledge["hello"], res.Reply)
	assert.Equal(t, "s1", f.last.Get())

	sess, ok := f.mem.Session("s1")
	require.True(t, ok)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "hello there", sess.Messages[0].UserText)

	assert.True(t, f.ds.Contains(ctx, store.Pair{Question: "hello there", Answer: res.Reply}))
	assert.Zero(t, f.retrain.calls.Load())

	_, err = f.flags.Update(map[string]any{store.FlagAutoRetrain: true})
	require.NoError(t, err)
	_, err = f.h.Handle(ctx, "s1", "hello again")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.retrain.calls.Load())
}

func TestHandleAutoTrainStoresRepeatedTurnOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kb.Put("hello", "hi "))

	for i := 0; i < 3; i++ {
		_, err := f.h.Handle(ctx, "s1", "hello")
		require.NoError(t, err)
	}

	assert.Equal(t, []store.Pair{{Question: "hello", Answer: "hi"}}, f.ds.Pairs(ctx))
}

func TestHandleWithoutAutoTrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.flags.Update(map[string]any{store.FlagAutoTrain: false})
	require.NoError(t, err)

	_, err = f.h.Handle(ctx, "s1", "hello there")
	require.NoError(t, err)
	assert.Empty(t, f.ds.Pairs(ctx))
}

func TestHandleTeachFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.h.Handle(ctx, "S2", "xyz123abc")
	require.NoError(t, err)
	assert.Equal(t, responder.TeachPrompt, res.Reply)
	_, ok := f.mem.Session("S2")
	assert.False(t, ok, "teach prompt must not be recorded")

	res, err = f.h.Handle(ctx, "S2", "unknown term")
	require.NoError(t, err)
	assert.Equal(t, responder.LearnedMessage, res.Reply)
	assert.True(t, res.Learned)
	assert.True(t, f.ds.Contains(ctx, store.Pair{Question: "xyz123abc", Answer: "unknown term"}))
	assert.False(t, f.tracker.IsWaiting("S2"))

	sess, ok := f.mem.Session("S2")
	require.True(t, ok)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "xyz123abc", sess.Messages[0].UserText)
	assert.Equal(t, responder.LearnedMessage, sess.Messages[1].BotText)

	res, err = f.h.Handle(ctx, "S2", "xyz123abc")
	require.NoError(t, err)
	assert.Equal(t, "unknown term", res.Reply)
}

func TestHandleNewSessionID(t *testing.T) {
	f := newFixture(t)
	res, err := f.h.Handle(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "1700000000", res.SessionID)
	assert.Equal(t, "1700000000", f.last.Get())
}

func TestHandleCensoredMessage(t *testing.T) {
	f := newFixture(t)
	res, err := f.h.Handle(context.Background(), "s1", "يا كسم")
	require.NoError(t, err)
	assert.Equal(t, responder.StageTeach, res.Stage)
	entries := f.tracker.List()
	require.Len(t, entries, 1)
	assert.Equal(t, Censored, entries[0].Question)
}

func TestHandleLegacyAwaitingMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mem.SetAwaiting("S1", "old question"))
	f.tracker.Register("S1", "other question")

	res, err := f.h.Handle(ctx, "S1", "old answer")
	require.NoError(t, err)
	assert.Equal(t, responder.LearnedMessage, res.Reply)
	assert.True(t, f.ds.Contains(ctx, store.Pair{Question: "old question", Answer: "old answer"}))
	assert.False(t, f.tracker.IsWaiting("S1"))

	sess, ok := f.mem.Session("S1")
	require.True(t, ok)
	assert.Empty(t, sess.AwaitingAnswer)
}

func TestTeach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.h.Teach(ctx, "", "q", "a")
	assert.ErrorIs(t, err, ErrMissingField)

	saved, err := f.h.Teach(ctx, "s1", "ما اسمك", "خالد")
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = f.h.Teach(ctx, "s1", "ما اسمك", "خالد")
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestHandleJournalsInteractions(t *testing.T) {
	f := newFixture(t)
	rec, err := storage.NewFileRecorder(filepath.Join(t.TempDir(), "interactions.jsonl"))
	require.NoError(t, err)
	f.h.WithJournal(rec)
	ctx := context.Background()

	_, err = f.h.Handle(ctx, "S3", "hello there")
	require.NoError(t, err)
	_, err = f.h.Handle(ctx, "S3", " ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	events, err := rec.LoadInteractions()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "S3", events[0].SessionID)
	assert.Equal(t, "hello there", events[0].UserMessage)
	assert.Equal(t, string(responder.StageKB), events[0].Stage)
	assert.Equal(t, int64(1700000000), events[0].Timestamp.Unix())
}
