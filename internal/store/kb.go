package store

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ai-khaled/internal/textsim"
)

// DefaultKnowledge seeds a fresh knowledge base file.
var DefaultKnowledge = map[string]string{"hello": "أهلاً! كيف أقدر أساعدك؟"}

type kbKey struct {
	key  string
	norm string
}

// kbData is the decoded kb.json plus its match order. It is encoded as the
// flat phrase -> reply mapping.
type kbData struct {
	entries map[string]string
	order   []kbKey
}

func newKBData(entries map[string]string) kbData {
	if entries == nil {
		entries = map[string]string{}
	}
	order := make([]kbKey, 0, len(entries))
	for k := range entries {
		n := textsim.Normalize(k)
		if n == "" {
			continue
		}
		order = append(order, kbKey{key: k, norm: n})
	}
	// Longest normalized key wins, so "good morning" beats "morning".
	sort.Slice(order, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(order[i].norm), utf8.RuneCountInString(order[j].norm)
		if li != lj {
			return li > lj
		}
		if order[i].norm != order[j].norm {
			return order[i].norm < order[j].norm
		}
		return order[i].key < order[j].key
	})
	return kbData{entries: entries, order: order}
}

func (d kbData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d.entries); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (d *kbData) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*d = newKBData(m)
	return nil
}

func (d kbData) with(fn func(m map[string]string)) kbData {
	m := make(map[string]string, len(d.entries)+1)
	for k, v := range d.entries {
		m[k] = v
	}
	fn(m)
	return newKBData(m)
}

// KnowledgeBase is the curated phrase -> reply mapping in kb.json.
type KnowledgeBase struct {
	doc *document[kbData]
}

func NewKnowledgeBase(path string, log zerolog.Logger) (*KnowledgeBase, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if err := touchJSON(path, DefaultKnowledge); err != nil {
		return nil, err
	}
	doc := newDocument(path, func() kbData { return newKBData(nil) }, log.With().Str("store", "kb").Logger())
	return &KnowledgeBase{doc: doc}, nil
}

// Load returns a copy of all entries.
func (k *KnowledgeBase) Load() map[string]string {
	d := k.doc.get()
	out := make(map[string]string, len(d.entries))
	for key, v := range d.entries {
		out[key] = v
	}
	return out
}

func (k *KnowledgeBase) Len() int { return len(k.doc.get().entries) }

// Lookup returns the entry whose normalized key occurs inside the normalized
// text. When several keys match, the longest one wins.
func (k *KnowledgeBase) Lookup(text string) (key, reply string, ok bool) {
	norm := textsim.Normalize(text)
	if norm == "" {
		return "", "", false
	}
	d := k.doc.get()
	for _, kk := range d.order {
		if strings.Contains(norm, kk.norm) {
			return kk.key, d.entries[kk.key], true
		}
	}
	return "", "", false
}

// Put inserts or overwrites an entry.
func (k *KnowledgeBase) Put(key, reply string) error {
	return k.doc.update(func(cur kbData) (kbData, error) {
		return cur.with(func(m map[string]string) { m[key] = reply }), nil
	})
}

// PutIfAbsent inserts the entry only when key is not present yet.
func (k *KnowledgeBase) PutIfAbsent(key, reply string) (bool, error) {
	err := k.doc.update(func(cur kbData) (kbData, error) {
		if _, ok := cur.entries[key]; ok {
			return cur, errUnchanged
		}
		return cur.with(func(m map[string]string) { m[key] = reply }), nil
	})
	if err == errUnchanged {
		return false, nil
	}
	return err == nil, err
}

func (k *KnowledgeBase) Delete(key string) (bool, error) {
	err := k.doc.update(func(cur kbData) (kbData, error) {
		if _, ok := cur.entries[key]; !ok {
			return cur, errUnchanged
		}
		return cur.with(func(m map[string]string) { delete(m, key) }), nil
	})
	if err == errUnchanged {
		return false, nil
	}
	return err == nil, err
}

// Import merges entries into the knowledge base, overwriting existing keys.
func (k *KnowledgeBase) Import(entries map[string]string) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	err := k.doc.update(func(cur kbData) (kbData, error) {
		return cur.with(func(m map[string]string) {
			for key, v := range entries {
				m[key] = v
			}
		}), nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (k *KnowledgeBase) Invalidate() { k.doc.invalidate() }

func (k *KnowledgeBase) Path() string { return k.doc.path }
