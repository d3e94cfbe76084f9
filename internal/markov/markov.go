// Package markov generates free text from token transitions seen in the
// learned corpus. It is a standalone utility and is not part of reply
// resolution.
package markov

import (
	"math/rand"
	"strings"

	"ai-khaled/internal/textsim"
)

const (
	DefaultOrder  = 2
	DefaultMaxLen = 40
)

type Chain struct {
	order int
	trans map[string][]string
	keys  []string
}

// Build indexes every order-gram of the normalized corpus with the tokens
// that followed it.
func Build(corpus []string, order int) *Chain {
	if order <= 0 {
		order = DefaultOrder
	}
	var parts []string
	for _, c := range corpus {
		if c != "" {
			parts = append(parts, c)
		}
	}
	tokens := textsim.Tokens(strings.Join(parts, " "))
	c := &Chain{order: order, trans: map[string][]string{}}
	for i := 0; i+order < len(tokens); i++ {
		key := strings.Join(tokens[i:i+order], " ")
		if _, ok := c.trans[key]; !ok {
			c.keys = append(c.keys, key)
		}
		c.trans[key] = append(c.trans[key], tokens[i+order])
	}
	return c
}

func (c *Chain) Len() int { return len(c.keys) }

// Generate continues seed for at most maxLen tokens. When the seed's first
// order tokens were never seen, a random known state is used instead. An
// empty chain generates "".
func (c *Chain) Generate(seed string, maxLen int, rng *rand.Rand) string {
	if len(c.keys) == 0 {
		return ""
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	var out []string
	if st := textsim.Tokens(seed); len(st) >= c.order {
		if _, ok := c.trans[strings.Join(st[:c.order], " ")]; ok {
			out = append(out, st[:c.order]...)
		}
	}
	if out == nil {
		out = strings.Fields(c.keys[rng.Intn(len(c.keys))])
	}
	for i := 0; i < maxLen; i++ {
		next := c.trans[strings.Join(out[len(out)-c.order:], " ")]
		if len(next) == 0 {
			break
		}
		out = append(out, next[rng.Intn(len(next))])
	}
	return strings.Join(out, " ")
}
