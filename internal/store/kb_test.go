package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestKnowledgeBase_SeedsDefault(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data", "kb.json")
	kb, err := NewKnowledgeBase(p, zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if kb.Len() != 1 {
		t.Fatalf("want 1 seeded entry, got %d", kb.Len())
	}
	_, reply, ok := kb.Lookup("Hello there!")
	if !ok || reply != DefaultKnowledge["hello"] {
		t.Fatalf("unexpected lookup: %q %v", reply, ok)
	}
}

func TestKnowledgeBase_LongestKeyWins(t *testing.T) {
	kb, err := NewKnowledgeBase(filepath.Join(t.TempDir(), "kb.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := kb.Import(map[string]string{
		"morning":      "short",
		"good morning": "long",
		"!!!":          "never",
	}); err != nil {
		t.Fatalf("import: %v", err)
	}
	key, reply, ok := kb.Lookup("Good morning, Khaled")
	if !ok || key != "good morning" || reply != "long" {
		t.Fatalf("want long match, got %q -> %q (%v)", key, reply, ok)
	}
	if _, _, ok := kb.Lookup("nothing relevant"); ok {
		t.Fatalf("keys that normalize to empty must not match everything")
	}
}

func TestKnowledgeBase_PutIfAbsentAndDelete(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kb.json")
	kb, _ := NewKnowledgeBase(p, zerolog.Nop())

	added, err := kb.PutIfAbsent("hello", "other")
	if err != nil || added {
		t.Fatalf("existing key must be kept: added=%v err=%v", added, err)
	}
	added, err = kb.PutIfAbsent("bye", "مع السلامة")
	if err != nil || !added {
		t.Fatalf("put new: added=%v err=%v", added, err)
	}

	// a fresh instance sees the persisted state
	kb2, _ := NewKnowledgeBase(p, zerolog.Nop())
	if got := kb2.Load()["bye"]; got != "مع السلامة" {
		t.Fatalf("not persisted: %q", got)
	}

	removed, err := kb.Delete("bye")
	if err != nil || !removed {
		t.Fatalf("delete: %v %v", removed, err)
	}
	if _, ok := kb.Load()["bye"]; ok {
		t.Fatalf("entry still present")
	}
}

func TestKnowledgeBase_MalformedFileFallsBackToEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kb.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	kb, err := NewKnowledgeBase(p, zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if kb.Len() != 0 {
		t.Fatalf("want empty kb, got %d", kb.Len())
	}
	if err := kb.Put("hi", "hey"); err != nil {
		t.Fatalf("put after malformed: %v", err)
	}
	if _, reply, ok := kb.Lookup("hi"); !ok || reply != "hey" {
		t.Fatalf("lookup after repair failed")
	}
}

func TestKnowledgeBase_InvalidateReloads(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kb.json")
	kb, _ := NewKnowledgeBase(p, zerolog.Nop())
	_ = kb.Len()

	if err := os.WriteFile(p, []byte(`{"ping":"pong"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, ok := kb.Lookup("ping"); ok {
		t.Fatalf("cache should still hold the old value")
	}
	kb.Invalidate()
	if _, reply, ok := kb.Lookup("ping"); !ok || reply != "pong" {
		t.Fatalf("reload failed: %q %v", reply, ok)
	}
}
