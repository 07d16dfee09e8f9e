package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	key := GenerateKey("openai", "gpt-4o-mini", "prompt", "hello")
	if _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	entry := &Entry{Text: "Hello.", Usage: Usage{TotalTokens: 9}, CreatedAt: time.Now()}
	if err := c.Set(key, entry, DefaultTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Text != "Hello." || got.Usage.TotalTokens != 9 {
		t.Errorf("Get = %+v, want text Hello. and 9 tokens", got)
	}

	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("hit after delete")
	}
}

func TestGenerateKeySeparatesParts(t *testing.T) {
	if GenerateKey("ab", "c") == GenerateKey("a", "bc") {
		t.Error("keys collide across part boundaries")
	}
	if GenerateKey("a", "b") != GenerateKey("a", "b") {
		t.Error("key not deterministic")
	}
}
