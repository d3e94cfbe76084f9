package conversation

import "strings"

// Censored replaces a message that contains a blocked word.
const Censored = "***"

var DefaultBlockedWords = []string{"كسم", "قحب", "منيك", "شرموط", "كس", "زب"}

// Filter trims incoming text and censors messages with blocked words.
type Filter struct {
	words []string
}

func NewFilter(words []string) *Filter {
	var ws []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			ws = append(ws, w)
		}
	}
	return &Filter{words: ws}
}

func (f *Filter) Clean(text string) string {
	txt := strings.TrimSpace(text)
	for _, w := range f.words {
		if strings.Contains(txt, w) {
			return Censored
		}
	}
	return txt
}
