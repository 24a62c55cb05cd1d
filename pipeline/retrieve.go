package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/retrieval"
)

// retriever fans one query batch out over a bounded worker pool and fuses
// the per-query results deterministically.
type retriever struct {
	store   retrieval.Store
	workers int
	logger  *slog.Logger
}

func newRetriever(store retrieval.Store, cfg *Config, logger *slog.Logger) *retriever {
	return &retriever{
		store:   store,
		workers: cfg.Workers,
		logger:  logger,
	}
}

// Retrieve runs every query of the batch concurrently, each with the
// strategy its sub-question asked for (semantic when unspecified). A failed
// query contributes an empty result instead of aborting the batch. Fusion
// walks the results in batch order, so first-seen deduplication is
// deterministic regardless of worker scheduling.
func (r *retriever) Retrieve(ctx context.Context, batch []string, subQuestions []SubQuestion) []evidence.Passage {
	if len(batch) == 0 {
		return nil
	}

	results := make([][]evidence.Passage, len(batch))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, query := range batch {
		wg.Add(1)
		go func(idx int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mode := r.strategyFor(q, subQuestions)
			passages, err := r.store.Retrieve(ctx, q, mode)
			if err != nil {
				r.logger.Warn("retrieval failed for query",
					"query", trimForLog(q, 80),
					"strategy", string(mode),
					"error", err,
				)
				return
			}
			results[idx] = passages
		}(i, query)
	}
	wg.Wait()

	var all []evidence.Passage
	for _, passages := range results {
		all = append(all, passages...)
	}
	return evidence.Dedupe(all)
}

// strategyFor resolves the retrieval mode for a query by matching it against
// the planned sub-questions.
func (r *retriever) strategyFor(query string, subQuestions []SubQuestion) retrieval.Mode {
	for _, sq := range subQuestions {
		if sq.Query == query {
			return retrieval.ParseMode(sq.Strategy)
		}
	}
	return retrieval.ModeSemantic
}
