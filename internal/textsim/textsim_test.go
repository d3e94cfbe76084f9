package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var samples = []string{
	"",
	"   ",
	"Hello, World!",
	"hello   world",
	"What's the WEATHER today??",
	"مرحبا يا خالد! كيف حالك؟",
	"mixed مرحبا text 123",
	"tabs\tand\nnewlines",
	"émoji 😀 and accents",
	"__--__",
	"xyz123abc",
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Hello, World!":       "hello world",
		"  lots   of\tspace ": "lots of space",
		"What's up?":          "what s up",
		"xyz123abc":           "xyz123abc",
		"مرحبا، يا خالد!":     "مرحبا، يا خالد",
		"café":                "caf",
		"!!!":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range samples {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "input %q", s)
	}
}

func TestNormalizeAny(t *testing.T) {
	assert.Equal(t, "", NormalizeAny(42))
	assert.Equal(t, "", NormalizeAny(nil))
	assert.Equal(t, "hi there", NormalizeAny("Hi, there"))
}

func TestScoreBoundedAndSymmetric(t *testing.T) {
	for _, a := range samples {
		for _, b := range samples {
			s := Score(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			assert.Equal(t, s, Score(b, a), "a=%q b=%q", a, b)
		}
	}
}

func TestScoreIdentity(t *testing.T) {
	for _, s := range samples {
		if len(Tokens(s)) == 0 {
			assert.Zero(t, Score(s, s))
			continue
		}
		assert.Equal(t, 1.0, Score(s, s), "input %q", s)
	}
}

func TestScoreSetSemantics(t *testing.T) {
	assert.Equal(t, 1.0, Score("hello hello", "hello"))
	assert.Equal(t, 0.5, Score("weather today", "weather"))
	assert.InDelta(t, 2.0/3.0, Score("how are you", "how are they"), 1e-9)
	assert.Zero(t, Score("", "anything"))
}
