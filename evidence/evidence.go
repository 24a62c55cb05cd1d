// Package evidence holds the retrieved-passage model shared by the retrieval
// adapters and the question-answering pipeline.
package evidence

import "strings"

// Passage is a retrieved unit of text plus source/page metadata. Passages are
// immutable once retrieved.
type Passage struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Page     string         `json:"page"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Key identifies a passage for deduplication purposes. Identity is the pair
// (source, page), not a content hash: two passages from the same source and
// page count as duplicates even when their content differs.
type Key struct {
	Source string
	Page   string
}

// Key returns the deduplication identity of the passage.
func (p Passage) Key() Key {
	return Key{Source: p.Source, Page: p.Page}
}

// Dedupe removes duplicate passages by (source, page). The first occurrence
// wins, preserving input order.
func Dedupe(passages []Passage) []Passage {
	seen := make(map[Key]struct{}, len(passages))
	out := make([]Passage, 0, len(passages))
	for _, p := range passages {
		key := p.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Accumulator is the append-only working set of passages gathered during one
// pipeline run. Passages are added, never removed, and deduplicated by
// (source, page) on every merge, so merging is idempotent.
type Accumulator struct {
	passages []Passage
	seen     map[Key]struct{}
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[Key]struct{})}
}

// Merge adds the given passages, skipping any whose (source, page) identity is
// already present. It returns the passages that were actually added, in input
// order.
func (a *Accumulator) Merge(passages []Passage) []Passage {
	if a.seen == nil {
		a.seen = make(map[Key]struct{})
	}
	added := make([]Passage, 0, len(passages))
	for _, p := range passages {
		key := p.Key()
		if _, ok := a.seen[key]; ok {
			continue
		}
		a.seen[key] = struct{}{}
		a.passages = append(a.passages, p)
		added = append(added, p)
	}
	return added
}

// Passages returns the accumulated passages in first-seen order.
func (a *Accumulator) Passages() []Passage {
	out := make([]Passage, len(a.passages))
	copy(out, a.passages)
	return out
}

// Len returns the number of accumulated passages.
func (a *Accumulator) Len() int {
	return len(a.passages)
}

// Hint produces the one-line summary recorded for a newly retrieved passage:
// "source p.page: first-120-chars-of-first-line".
func Hint(p Passage) string {
	title := "No content"
	if content := strings.TrimSpace(p.Content); content != "" {
		first := content
		if idx := strings.IndexByte(first, '\n'); idx >= 0 {
			first = first[:idx]
		}
		runes := []rune(first)
		if len(runes) > 120 {
			first = string(runes[:120])
		}
		title = first
	}
	return p.Source + " p." + p.Page + ": " + title
}

// AppendBounded appends items to a rolling window, keeping only the trailing
// max entries (oldest evicted first). A max of zero or less means unbounded.
func AppendBounded(window []string, items []string, max int) []string {
	out := append(append([]string{}, window...), items...)
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// Tail returns up to the last n entries of the list.
func Tail(list []string, n int) []string {
	if n <= 0 || len(list) == 0 {
		return nil
	}
	if len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}
