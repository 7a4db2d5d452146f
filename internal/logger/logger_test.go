package logger

import "testing"

func TestSanitizeKVs(t *testing.T) {
	got := sanitizeKVs([]interface{}{
		"article_id", 12966581,
		"stage_token", "abc123",
		"Authorization", "token abc123",
		"dangling",
	})

	want := []interface{}{
		"article_id", 12966581,
		"stage_token", "[REDACTED]",
		"Authorization", "[REDACTED]",
		"dangling",
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kv[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("component", "test").Debug("hello", "token", "x")
	}
}
