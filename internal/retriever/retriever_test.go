package retriever

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ClimateIntel/internal/index"
	"ClimateIntel/internal/models"
	"ClimateIntel/internal/store"
	"ClimateIntel/pkg/logger"
)

// hashEmbedder produces deterministic vectors without a model.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, c := range text {
		vec[i%8] += float32(c%13) / 13
	}
	return vec, nil
}

func (h hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := h.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func testLogger() *logger.Logger {
	logger.Init(logrus.ErrorLevel)
	return logger.New("retriever-test", "")
}

func seedInsight(t *testing.T, insights store.InsightStore, idx *index.MemoryIndex, url, confidence string, createdAt time.Time, keyEvent string) {
	t.Helper()
	ctx := context.Background()
	in := &models.Insight{
		KeyEvent:         keyEvent,
		InsuranceDomains: []string{"property"},
		RiskFactors:      []string{"flood"},
		Confidence:       confidence,
		ArticleURL:       url,
		CreatedAt:        createdAt,
	}
	require.NoError(t, insights.Upsert(ctx, in))

	vec, err := hashEmbedder{}.Embed(ctx, keyEvent)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []index.Entry{{
		ID: url, ArticleURL: url, Text: keyEvent, Embedding: vec,
	}}))
}

func TestPerQueryTopK(t *testing.T) {
	assert.Equal(t, 8, perQueryTopK(1))
	assert.Equal(t, 6, perQueryTopK(2))
	assert.Equal(t, 2, perQueryTopK(5))
	assert.Equal(t, 2, perQueryTopK(20), "topK never shrinks below the floor")
	assert.Equal(t, 8, perQueryTopK(0))
}

func TestRetrieveDeduplicatesByURL(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex()
	insights := store.NewMemoryInsightStore()
	now := time.Now().UTC()

	seedInsight(t, insights, idx, "https://example.com/a", models.ConfidenceHigh, now, "flood risk repricing")

	r := New(idx, hashEmbedder{}, insights, 6000, testLogger())
	// Two near-identical queries will both hit the same entry.
	got, err := r.Retrieve(ctx, []string{"flood risk", "flood risks"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/a", got[0].ArticleURL)
}

func TestRetrievePrefersAuthoritativeRecord(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex()
	insights := store.NewMemoryInsightStore()
	now := time.Now().UTC()

	seedInsight(t, insights, idx, "u1", models.ConfidenceHigh, now, "indexed snapshot")
	// The record store has since been updated; the index still holds the
	// old text.
	require.NoError(t, insights.Upsert(ctx, &models.Insight{
		ArticleURL: "u1", KeyEvent: "authoritative version",
		Confidence: models.ConfidenceHigh, CreatedAt: now,
	}))

	r := New(idx, hashEmbedder{}, insights, 6000, testLogger())
	got, err := r.Retrieve(ctx, []string{"indexed snapshot"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "authoritative version", got[0].KeyEvent)
}

func TestRetrieveCachedCopyWhenRecordMissing(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex()
	insights := store.NewMemoryInsightStore()

	vec, _ := hashEmbedder{}.Embed(ctx, "orphaned entry")
	require.NoError(t, idx.Upsert(ctx, []index.Entry{{
		ID: "u1", ArticleURL: "u1", Text: "orphaned entry", Embedding: vec,
	}}))

	r := New(idx, hashEmbedder{}, insights, 6000, testLogger())
	got, err := r.Retrieve(ctx, []string{"orphaned entry"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "orphaned entry", got[0].KeyEvent)
	assert.Equal(t, "Unknown", got[0].Confidence)
}

func TestRetrieveFallsBackToStoreScan(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex() // empty index
	insights := store.NewMemoryInsightStore()
	now := time.Now().UTC()

	require.NoError(t, insights.Upsert(ctx, &models.Insight{
		ArticleURL: "u1", KeyEvent: "only in store",
		Confidence: models.ConfidenceMedium, CreatedAt: now,
	}))

	r := New(idx, hashEmbedder{}, insights, 6000, testLogger())
	got, err := r.Retrieve(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only in store", got[0].KeyEvent)
}

func TestTokenCostCountsPromptFields(t *testing.T) {
	in := &models.Insight{
		KeyEvent:             strings.Repeat("e", 40),
		InsuranceDomains:     []string{strings.Repeat("d", 8)},
		RiskFactors:          []string{strings.Repeat("r", 8)},
		BusinessImplications: strings.Repeat("b", 40),
		Timeframe:            "short-term", // 10
		Confidence:           models.ConfidenceMedium,
		GeographicFocus:      strings.Repeat("g", 10),
		RegulatoryImpact:     strings.Repeat("p", 10),
		ArticleTitle:         strings.Repeat("t", 400),
	}
	// 40+8+8+40+10+6+10+10 = 132 chars; the article title is not part of
	// the synthesis prompt and must not count.
	assert.Equal(t, 33, TokenCost(in))
}

func TestAdmitWithinBudgetNeverExceeds(t *testing.T) {
	now := time.Now().UTC()
	var candidates []*models.Insight
	for i := 0; i < 30; i++ {
		candidates = append(candidates, &models.Insight{
			ArticleURL: fmt.Sprintf("u%d", i),
			KeyEvent:   strings.Repeat("x", 400), // 100 tokens each
			Confidence: models.ConfidenceMedium,
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		})
	}

	for _, budget := range []int{0, 50, 100, 350, 10000} {
		admitted := admitWithinBudget(candidates, budget)
		total := 0
		for _, in := range admitted {
			total += TokenCost(in)
		}
		assert.LessOrEqual(t, total, budget, "budget %d exceeded", budget)
	}
}

func TestAdmitWithinBudgetPrefersConfidenceThenRecency(t *testing.T) {
	now := time.Now().UTC()
	low := &models.Insight{ArticleURL: "low", KeyEvent: strings.Repeat("x", 400), Confidence: models.ConfidenceLow, CreatedAt: now}
	highOld := &models.Insight{ArticleURL: "high-old", KeyEvent: strings.Repeat("x", 400), Confidence: models.ConfidenceHigh, CreatedAt: now.Add(-time.Hour)}
	highNew := &models.Insight{ArticleURL: "high-new", KeyEvent: strings.Repeat("x", 400), Confidence: models.ConfidenceHigh, CreatedAt: now}

	// A high-confidence candidate costs (400+len("High"))/4 = 101 tokens;
	// budget for exactly two of them.
	admitted := admitWithinBudget([]*models.Insight{low, highOld, highNew}, 202)
	require.Len(t, admitted, 2)
	assert.Equal(t, "high-new", admitted[0].ArticleURL)
	assert.Equal(t, "high-old", admitted[1].ArticleURL)
}

func TestAdmitWithinBudgetMonotonic(t *testing.T) {
	now := time.Now().UTC()
	var candidates []*models.Insight
	for i := 0; i < 10; i++ {
		candidates = append(candidates, &models.Insight{
			ArticleURL: fmt.Sprintf("u%d", i),
			KeyEvent:   strings.Repeat("x", 400),
			Confidence: models.ConfidenceHigh,
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		})
	}

	prev := 0
	for _, budget := range []int{100, 200, 400, 800, 1600} {
		n := len(admitWithinBudget(candidates, budget))
		assert.GreaterOrEqual(t, n, prev, "a larger budget must never admit fewer insights")
		prev = n
	}
}
