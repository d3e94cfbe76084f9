package store

import (
	"github.com/rs/zerolog"
)

const (
	FlagAutoTrain   = "auto_train"
	FlagAutoRetrain = "auto_retrain"
	FlagDebug       = "debug"
	FlagLanguage    = "language"
	FlagAutoReply   = "auto_reply"
)

// Flags is the config.json document. Keys the core does not know about are
// kept as they are.
type Flags map[string]any

// DefaultFlags seeds a fresh config.json.
func DefaultFlags() Flags {
	return Flags{
		FlagDebug:       false,
		FlagLanguage:    "ar",
		FlagAutoReply:   true,
		FlagAutoTrain:   true,
		FlagAutoRetrain: false,
	}
}

// Bool reports whether key holds boolean true.
func (f Flags) Bool(key string) bool {
	v, ok := f[key].(bool)
	return ok && v
}

func (f Flags) String(key string) string {
	v, _ := f[key].(string)
	return v
}

// FlagStore reads and updates config.json.
type FlagStore struct {
	doc *document[Flags]
}

func NewFlagStore(path string, log zerolog.Logger) (*FlagStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if err := touchJSON(path, DefaultFlags()); err != nil {
		return nil, err
	}
	doc := newDocument(path, func() Flags { return Flags{} }, log.With().Str("store", "config").Logger())
	return &FlagStore{doc: doc}, nil
}

// Load returns a copy of the flags.
func (s *FlagStore) Load() Flags {
	cur := s.doc.get()
	out := make(Flags, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out
}

// Update merges patch into the stored flags and returns the result.
func (s *FlagStore) Update(patch map[string]any) (Flags, error) {
	err := s.doc.update(func(cur Flags) (Flags, error) {
		merged := make(Flags, len(cur)+len(patch))
		for k, v := range cur {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		return merged, nil
	})
	if err != nil {
		return nil, err
	}
	return s.Load(), nil
}

func (s *FlagStore) Invalidate() { s.doc.invalidate() }

func (s *FlagStore) Path() string { return s.doc.path }
