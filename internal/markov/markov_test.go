package markov

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFollowsSeed(t *testing.T) {
	c := Build([]string{"the cat sat on the mat"}, 2)
	require.Equal(t, 4, c.Len())

	got := c.Generate("The cat!", 10, rand.New(rand.NewSource(1)))
	assert.Equal(t, "the cat sat on the mat", got)
}

func TestGenerateRespectsMaxLen(t *testing.T) {
	c := Build([]string{"a b a b a b a b a b a b"}, 2)
	got := c.Generate("a b", 3, rand.New(rand.NewSource(7)))
	assert.Len(t, strings.Fields(got), 5)
}

func TestUnknownSeedUsesKnownState(t *testing.T) {
	c := Build([]string{"صباح الخير يا خالد", "", "مساء الخير يا صديقي"}, 2)
	got := c.Generate("zzz yyy", 40, rand.New(rand.NewSource(3)))
	require.NotEmpty(t, got)
	first := strings.Join(strings.Fields(got)[:2], " ")
	_, ok := c.trans[first]
	assert.True(t, ok)
}

func TestEmptyCorpus(t *testing.T) {
	assert.Equal(t, "", Build(nil, 2).Generate("hi", 10, rand.New(rand.NewSource(1))))
	assert.Equal(t, "", Build([]string{"hi there"}, 2).Generate("hi there", 10, rand.New(rand.NewSource(1))))
}

func TestSameSeedSameOutput(t *testing.T) {
	c := Build([]string{"x y z x y w x y z x y q"}, 2)
	a := c.Generate("x y", 20, rand.New(rand.NewSource(42)))
	b := c.Generate("x y", 20, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}
