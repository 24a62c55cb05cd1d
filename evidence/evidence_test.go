package evidence

import (
	"fmt"
	"strings"
	"testing"
)

func TestDedupeKeepsFirstSeen(t *testing.T) {
	passages := []Passage{
		{Content: "original clause", Source: "doc.pdf", Page: "3"},
		{Content: "different content, same location", Source: "doc.pdf", Page: "3"},
		{Content: "another page", Source: "doc.pdf", Page: "4"},
	}

	out := Dedupe(passages)
	if len(out) != 2 {
		t.Fatalf("expected 2 passages after dedupe, got %d", len(out))
	}
	if out[0].Content != "original clause" {
		t.Fatalf("expected first occurrence to win, got %q", out[0].Content)
	}
}

func TestAccumulatorMergeIdempotent(t *testing.T) {
	batch := []Passage{
		{Content: "a", Source: "p.pdf", Page: "1"},
		{Content: "b", Source: "p.pdf", Page: "2"},
	}

	acc := NewAccumulator()
	added := acc.Merge(batch)
	if len(added) != 2 {
		t.Fatalf("expected 2 added, got %d", len(added))
	}

	added = acc.Merge(batch)
	if len(added) != 0 {
		t.Fatalf("expected repeat merge to add nothing, got %d", len(added))
	}
	if acc.Len() != 2 {
		t.Fatalf("expected accumulator size 2, got %d", acc.Len())
	}
}

func TestAccumulatorMonotonic(t *testing.T) {
	acc := NewAccumulator()
	prev := 0
	for i := 0; i < 5; i++ {
		acc.Merge([]Passage{{Content: "c", Source: "s", Page: fmt.Sprintf("%d", i)}})
		if acc.Len() < prev {
			t.Fatalf("accumulator shrank from %d to %d", prev, acc.Len())
		}
		prev = acc.Len()
	}
	if acc.Len() != 5 {
		t.Fatalf("expected 5 passages, got %d", acc.Len())
	}
}

func TestHintTruncatesFirstLine(t *testing.T) {
	long := strings.Repeat("x", 200) + "\nsecond line"
	p := Passage{Content: long, Source: "policy.pdf", Page: "7"}

	hint := Hint(p)
	want := "policy.pdf p.7: " + strings.Repeat("x", 120)
	if hint != want {
		t.Fatalf("unexpected hint: %q", hint)
	}
}

func TestHintEmptyContent(t *testing.T) {
	hint := Hint(Passage{Source: "s.pdf", Page: "1"})
	if hint != "s.pdf p.1: No content" {
		t.Fatalf("unexpected hint: %q", hint)
	}
}

func TestAppendBoundedEvictsOldest(t *testing.T) {
	window := []string{"a", "b", "c"}
	window = AppendBounded(window, []string{"d", "e"}, 3)
	if len(window) != 3 {
		t.Fatalf("expected window of 3, got %d", len(window))
	}
	if window[0] != "c" || window[2] != "e" {
		t.Fatalf("unexpected window contents: %v", window)
	}
}

func TestFormatContextNumbering(t *testing.T) {
	out := FormatContext([]Passage{
		{Content: "first", Source: "a.pdf", Page: "1"},
		{Content: "second", Source: "", Page: ""},
	})

	if !strings.Contains(out, "[S1] (a.pdf p.1)\nfirst") {
		t.Fatalf("missing first passage header: %q", out)
	}
	if !strings.Contains(out, "[S2] (unknown p.?)\nsecond") {
		t.Fatalf("missing fallback labels: %q", out)
	}
}
