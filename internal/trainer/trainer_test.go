package trainer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-khaled/internal/model"
	"ai-khaled/internal/store"
)

type fakeMemory struct{ t store.Transcript }

func (f fakeMemory) Load() store.Transcript { return f.t }

func newDataset(t *testing.T, pairs ...store.Pair) store.Dataset {
	t.Helper()
	ds, err := store.NewCSVDataset(filepath.Join(t.TempDir(), "dataset.csv"), zerolog.Nop())
	require.NoError(t, err)
	for _, p := range pairs {
		require.NoError(t, ds.Append(context.Background(), p))
	}
	return ds
}

func TestExamplesFromDatasetAndMemory(t *testing.T) {
	ds := newDataset(t, store.Pair{Question: "ما اسمك", Answer: "خالد"})
	mem := fakeMemory{t: store.Transcript{Sessions: []store.Session{{
		ID: "1",
		Messages: []store.Message{
			{UserText: "hi", BotText: "hello"},
			{UserText: "  ", BotText: "ignored"},
		},
	}}}}
	tr := New(ds, mem, "", model.DefaultOptions(), zerolog.Nop())

	got := tr.Examples(context.Background())
	assert.Equal(t, []model.Example{
		{Text: "ما اسمك", Label: "خالد"},
		{Text: "hi", Label: "hello"},
	}, got)
}

func TestRunWritesLoadableModel(t *testing.T) {
	ds := newDataset(t,
		store.Pair{Question: "what is the capital of egypt", Answer: "cairo"},
		store.Pair{Question: "how old are you", Answer: "new"},
	)
	path := filepath.Join(t.TempDir(), "model", "khalid_model.json")
	tr := New(ds, fakeMemory{}, path, model.DefaultOptions(), zerolog.Nop())

	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Examples)

	l := model.NewLoader(path, zerolog.Nop())
	got, err := l.Predict(context.Background(), "capital of egypt")
	require.NoError(t, err)
	assert.Equal(t, "cairo", got)
}

func TestRunWithoutData(t *testing.T) {
	tr := New(newDataset(t), fakeMemory{}, filepath.Join(t.TempDir(), "m.json"), model.DefaultOptions(), zerolog.Nop())
	_, err := tr.Run(context.Background())
	assert.ErrorIs(t, err, model.ErrNoData)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	tr := New(newDataset(t), fakeMemory{}, "", model.DefaultOptions(), zerolog.Nop())
	tr.running.Store(true)
	_, err := tr.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestTriggerRunsInBackground(t *testing.T) {
	ds := newDataset(t, store.Pair{Question: "hi there", Answer: "hello"})
	path := filepath.Join(t.TempDir(), "m.json")
	tr := New(ds, fakeMemory{}, path, model.DefaultOptions(), zerolog.Nop())

	tr.Trigger()
	tr.Wait()

	_, err := model.Load(path)
	assert.NoError(t, err)
}
