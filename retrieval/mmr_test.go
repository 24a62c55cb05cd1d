package retrieval

import "testing"

func TestSelectMMRPrefersRelevantFirst(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},       // orthogonal to query
		{1, 0},       // identical to query
		{0.9, 0.1},   // near-duplicate of the best
		{0.5, 0.866}, // diverse but still relevant
	}

	selected := SelectMMR(query, candidates, 2, MMRLambda)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selected))
	}
	if selected[0] != 1 {
		t.Fatalf("expected most relevant candidate first, got index %d", selected[0])
	}
	if selected[1] == 2 {
		t.Fatalf("expected diversity to skip the near-duplicate")
	}
}

func TestSelectMMRClampsK(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{{1, 0}, {0, 1}}

	selected := SelectMMR(query, candidates, 10, MMRLambda)
	if len(selected) != 2 {
		t.Fatalf("expected selection capped at candidate count, got %d", len(selected))
	}
}

func TestCosineSimilarity(t *testing.T) {
	if sim := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); sim > 1e-6 {
		t.Fatalf("orthogonal vectors should have ~0 similarity, got %f", sim)
	}
	if sim := CosineSimilarity([]float32{1, 2}, []float32{1, 2}); sim < 0.999 {
		t.Fatalf("identical vectors should have ~1 similarity, got %f", sim)
	}
	if sim := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); sim != 0 {
		t.Fatalf("mismatched lengths should yield 0, got %f", sim)
	}
}

func TestParseModeDefaultsToSemantic(t *testing.T) {
	cases := map[string]Mode{
		"semantic":   ModeSemantic,
		"similarity": ModeSimilarity,
		"hybrid":     ModeHybrid,
		"keyword":    ModeSemantic,
		"":           ModeSemantic,
	}
	for in, want := range cases {
		if got := ParseMode(in); got != want {
			t.Fatalf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
}
