package retrieval

// SelectMMR reranks candidate vectors by maximal marginal relevance and
// returns the indices of the selected candidates in selection order. lambda
// balances query relevance against diversity: 1 is pure relevance, 0 is pure
// diversity.
func SelectMMR(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = float64(CosineSimilarity(query, c))
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := 0.0
		for i := range candidates {
			if picked[i] {
				continue
			}
			redundancy := 0.0
			for _, j := range selected {
				if sim := float64(CosineSimilarity(candidates[i], candidates[j])); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if best < 0 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
	}

	return selected
}
