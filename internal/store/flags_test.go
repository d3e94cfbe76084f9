package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagStore_DefaultsAndUpdate(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	fs, err := NewFlagStore(p, zerolog.Nop())
	require.NoError(t, err)

	f := fs.Load()
	assert.True(t, f.Bool(FlagAutoTrain))
	assert.False(t, f.Bool(FlagAutoRetrain))
	assert.Equal(t, "ar", f.String(FlagLanguage))

	updated, err := fs.Update(map[string]any{FlagAutoRetrain: true, "theme": "dark"})
	require.NoError(t, err)
	assert.True(t, updated.Bool(FlagAutoRetrain))
	assert.True(t, updated.Bool(FlagAutoTrain))
	assert.Equal(t, "dark", updated.String("theme"))

	reopened, err := NewFlagStore(p, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, reopened.Load().Bool(FlagAutoRetrain))
}

func TestFlagStore_NonBooleanIsFalse(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"auto_train":"yes"}`), 0o644))
	fs, err := NewFlagStore(p, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, fs.Load().Bool(FlagAutoTrain))
}

func TestLastSession(t *testing.T) {
	ls, err := NewLastSession(filepath.Join(t.TempDir(), "last_session.txt"))
	require.NoError(t, err)
	assert.Empty(t, ls.Get())
	require.NoError(t, ls.Set("S1"))
	assert.Equal(t, "S1", ls.Get())
}
