// Package retriever assembles the budget-bounded insight set a report is
// synthesized from. It fans a topic query per insurance domain out against
// the vector index, merges and dedups the hits by article URL, re-fetches
// each hit's authoritative record, and admits candidates best-first until a
// token budget is exhausted.
package retriever

import (
	"context"
	"errors"
	"sort"

	"ClimateIntel/internal/embedding"
	"ClimateIntel/internal/index"
	"ClimateIntel/internal/models"
	"ClimateIntel/internal/store"
	"ClimateIntel/pkg/logger"
)

// DefaultQueries is one topic query per insurance domain of interest.
var DefaultQueries = []string{
	"climate risk impacts on property insurance",
	"climate risk impacts on casualty insurance",
	"climate risk impacts on life insurance",
	"climate risk impacts on health insurance",
	"climate risk impacts on reinsurance",
}

const (
	// Per-query result caps. The per-query topK shrinks as the number of
	// queries grows so the aggregate stays bounded.
	aggregateHits = 12
	minPerQuery   = 2
	maxPerQuery   = 8

	// fallbackScanLimit bounds the record-store scan used when similarity
	// search yields nothing usable.
	fallbackScanLimit = 100
)

// Retriever selects insights for synthesis.
type Retriever struct {
	index    index.Index
	embedder embedding.Embedding
	insights store.InsightStore
	budget   int
	log      *logger.Logger
}

func New(idx index.Index, embedder embedding.Embedding, insights store.InsightStore, tokenBudget int, log *logger.Logger) *Retriever {
	return &Retriever{
		index:    idx,
		embedder: embedder,
		insights: insights,
		budget:   tokenBudget,
		log:      log,
	}
}

// perQueryTopK caps each query's result count, shrinking with the number of
// queries: clamp(aggregate/n, min, max).
func perQueryTopK(queryCount int) int {
	if queryCount <= 0 {
		return maxPerQuery
	}
	k := aggregateHits / queryCount
	if k < minPerQuery {
		return minPerQuery
	}
	if k > maxPerQuery {
		return maxPerQuery
	}
	return k
}

// TokenCost estimates an insight's prompt weight as the summed character
// length of the fields that reach the synthesis prompt, divided by four.
func TokenCost(in *models.Insight) int {
	chars := len(in.KeyEvent) + len(in.BusinessImplications) + len(in.Timeframe) +
		len(in.Confidence) + len(in.GeographicFocus) + len(in.RegulatoryImpact)
	for _, d := range in.InsuranceDomains {
		chars += len(d)
	}
	for _, r := range in.RiskFactors {
		chars += len(r)
	}
	return chars / 4
}

// Retrieve returns insights for the given topic queries (DefaultQueries when
// empty), deduplicated by article URL and admitted in (confidence, recency)
// order until the token budget would be exceeded. Zero usable similarity
// results fall back to a recency scan of the record store under the same
// budget.
func (r *Retriever) Retrieve(ctx context.Context, queries []string) ([]*models.Insight, error) {
	if len(queries) == 0 {
		queries = DefaultQueries
	}
	topK := perQueryTopK(len(queries))

	seen := make(map[string]bool)
	var candidates []*models.Insight

	for _, query := range queries {
		vec, err := r.embedder.Embed(ctx, query)
		if err != nil {
			r.log.WithError(err).Warnf("embedding failed for query %q, skipping", query)
			continue
		}
		hits, err := r.index.Search(ctx, vec, topK)
		if err != nil {
			r.log.WithError(err).Warnf("similarity search failed for query %q, skipping", query)
			continue
		}
		for _, hit := range hits {
			if hit.ArticleURL == "" || seen[hit.ArticleURL] {
				continue
			}
			seen[hit.ArticleURL] = true

			// The index's cached text is a stale snapshot; the record store
			// holds the authoritative insight.
			insight, err := r.insights.GetByURL(ctx, hit.ArticleURL)
			if errors.Is(err, store.ErrNotFound) {
				insight = cachedInsight(hit)
			} else if err != nil {
				return nil, err
			}
			candidates = append(candidates, insight)
		}
	}

	if len(candidates) == 0 {
		r.log.Warn("similarity search returned nothing usable, scanning record store")
		scanned, err := r.insights.ListRecent(ctx, fallbackScanLimit)
		if err != nil {
			return nil, err
		}
		candidates = scanned
	}

	return admitWithinBudget(candidates, r.budget), nil
}

// admitWithinBudget orders candidates by (confidence rank, recency, URL)
// descending and admits greedily; a candidate that would push the running
// total past the budget is skipped, as are all after it.
func admitWithinBudget(candidates []*models.Insight, budget int) []*models.Insight {
	ordered := make([]*models.Insight, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := models.ConfidenceRank(ordered[i].Confidence), models.ConfidenceRank(ordered[j].Confidence)
		if ri != rj {
			return ri > rj
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ArticleURL < ordered[j].ArticleURL
	})

	var admitted []*models.Insight
	total := 0
	for _, in := range ordered {
		cost := TokenCost(in)
		if total+cost > budget {
			break
		}
		total += cost
		admitted = append(admitted, in)
	}
	return admitted
}

// cachedInsight wraps an index hit whose authoritative record vanished. Only
// the embedded text snapshot survives; it still beats dropping the hit.
func cachedInsight(hit index.Hit) *models.Insight {
	return &models.Insight{
		KeyEvent:   hit.Text,
		ArticleURL: hit.ArticleURL,
		Confidence: "Unknown",
	}
}
