package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ClimateIntel/internal/collector"
	"ClimateIntel/internal/dedup"
	"ClimateIntel/internal/extractor"
	"ClimateIntel/internal/index"
	"ClimateIntel/internal/models"
	"ClimateIntel/internal/retriever"
	"ClimateIntel/internal/store"
	"ClimateIntel/internal/synthesizer"
	"ClimateIntel/pkg/logger"
)

const extractionResponse = `{
	"key_event": "Flood exposure repricing",
	"insurance_domains": ["property"],
	"risk_factors": ["flood"],
	"business_implications": "Premiums rise",
	"timeframe": "short-term",
	"confidence": "High",
	"geographic_focus": "Europe",
	"regulatory_impact": "None"
}`

const reportResponse = `{
	"Executive Summary": "Climate pressure on underwriting is growing.",
	"Key Climate Risk Developments": "Flood repricing.",
	"Insurance Domain Impacts": "Property hardening.",
	"Regional Insights": "Europe exposed.",
	"Regulatory Landscape": "Disclosure tightening.",
	"Business Implications": "Reprice books.",
	"Recommended Actions": "Update models."
}`

// countingLLM returns a fixed response and counts calls.
type countingLLM struct {
	mu       sync.Mutex
	response string
	calls    int
}

func (c *countingLLM) Generate(context.Context, string, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.response, nil
}

func (c *countingLLM) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r%13) / 13
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

// recordingSink captures published progress events.
type recordingSink struct {
	mu      sync.Mutex
	entries []*models.PipelineLogEntry
}

func (r *recordingSink) Publish(_ context.Context, entry *models.PipelineLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingSink) Stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stages []string
	for _, e := range r.entries {
		stages = append(stages, e.Stage)
	}
	return stages
}

type testEnv struct {
	pipeline   *Pipeline
	articles   *store.MemoryArticleStore
	insights   *store.MemoryInsightStore
	reports    *store.MemoryReportStore
	extractLLM *countingLLM
	sink       *recordingSink
}

func newTestEnv(t *testing.T, collectors []collector.Collector) *testEnv {
	t.Helper()
	logger.Init(logrus.ErrorLevel)
	log := logger.New("pipeline-test", "")

	articles := store.NewMemoryArticleStore()
	insights := store.NewMemoryInsightStore()
	reports := store.NewMemoryReportStore()
	idx := index.NewMemoryIndex()
	extractLLM := &countingLLM{response: extractionResponse}
	reportLLM := &countingLLM{response: reportResponse}
	sink := &recordingSink{}

	p := New(Deps{
		Collectors: collectors,
		Articles:   articles,
		Insights:   insights,
		Reports:    reports,
		HashCache:  dedup.NewMemoryHashCache(),
		Extractor:  extractor.New(extractLLM, 5000, log),
		Embedder:   hashEmbedder{},
		Index:      idx,
		Retriever:  retriever.New(idx, hashEmbedder{}, insights, 6000, log),
		Synth:      synthesizer.New(reportLLM, log),
		Progress:   sink,
		Log:        log,
	})
	return &testEnv{
		pipeline:   p,
		articles:   articles,
		insights:   insights,
		reports:    reports,
		extractLLM: extractLLM,
		sink:       sink,
	}
}

func relevantArticle(url, title string) *models.Article {
	return &models.Article{
		URL:      url,
		Source:   "Insurance Journal",
		Title:    title,
		Date:     "2026-08-20",
		Category: "Climate Risk",
		Content: strings.Repeat(
			"Property insurers face rising flood and hurricane claims as climate change drives extreme weather, "+
				"forcing reinsurance repricing and tighter underwriting of coastal coverage. ", 3),
	}
}

func TestRunDuplicateContentAcrossURLs(t *testing.T) {
	ctx := context.Background()
	a1 := relevantArticle("https://example.com/story-a", "Story A")
	a2 := relevantArticle("https://mirror.example.org/story-a-repost", "Story A repost")
	a2.Content = a1.Content // identical body under a different URL

	env := newTestEnv(t, []collector.Collector{
		&collector.StaticCollector{SourceName: "feed", Articles: []*models.Article{a1, a2}},
	})

	report, err := env.pipeline.Run(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, report)

	articleCount, _ := env.articles.Count(ctx)
	assert.EqualValues(t, 1, articleCount, "identical content must be stored once")

	insightCount, _ := env.insights.Count(ctx)
	assert.EqualValues(t, 1, insightCount, "at most one insight per content")
}

func TestRunTrackingURLVariantsCollapse(t *testing.T) {
	ctx := context.Background()
	a1 := relevantArticle("https://example.com/story?utm_source=rss", "Story")
	a2 := relevantArticle("https://EXAMPLE.com/story/", "Story again")

	env := newTestEnv(t, []collector.Collector{
		&collector.StaticCollector{SourceName: "feed", Articles: []*models.Article{a1, a2}},
	})

	_, err := env.pipeline.Run(ctx, "task-1")
	require.NoError(t, err)

	articleCount, _ := env.articles.Count(ctx)
	assert.EqualValues(t, 1, articleCount, "URL variants must collapse to one record")
}

func TestRunEmptyCollectionUsesSamples(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, []collector.Collector{
		&collector.StaticCollector{SourceName: "down-feed", Articles: nil},
	})

	report, err := env.pipeline.Run(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, report)

	articleCount, _ := env.articles.Count(ctx)
	assert.EqualValues(t, 3, articleCount, "sample articles must flow through the pipeline")
	assert.Greater(t, report.ArticleCount, 0, "report must reference the sample content")

	latest, err := env.reports.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Climate pressure on underwriting is growing.", latest.ExecutiveSummary)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	articlesIn := []*models.Article{
		relevantArticle("https://example.com/a", "A"),
		relevantArticle("https://example.com/b", "B"),
	}
	env := newTestEnv(t, []collector.Collector{
		&collector.StaticCollector{SourceName: "feed", Articles: articlesIn},
	})

	_, err := env.pipeline.Run(ctx, "task-1")
	require.NoError(t, err)
	firstExtractCalls := env.extractLLM.Calls()

	// Collectors return fresh copies the second time; stored state must not
	// grow and extraction must not repeat.
	env.pipeline.collectors = []collector.Collector{
		&collector.StaticCollector{SourceName: "feed", Articles: []*models.Article{
			relevantArticle("https://example.com/a", "A"),
			relevantArticle("https://example.com/b", "B"),
		}},
	}

	_, err = env.pipeline.Run(ctx, "task-2")
	require.NoError(t, err)

	articleCount, _ := env.articles.Count(ctx)
	assert.EqualValues(t, 2, articleCount)
	insightCount, _ := env.insights.Count(ctx)
	assert.EqualValues(t, 2, insightCount)
	assert.Equal(t, firstExtractCalls, env.extractLLM.Calls(), "already-extracted URLs must be skipped")
}

// faultyArticleStore fails a number of Upserts before delegating.
type faultyArticleStore struct {
	store.ArticleStore
	mu       sync.Mutex
	failures int
}

func (f *faultyArticleStore) Upsert(ctx context.Context, a *models.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return assert.AnError
	}
	return f.ArticleStore.Upsert(ctx, a)
}

func TestRunRetrySucceedsAfterFailedStore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, []collector.Collector{
		&collector.StaticCollector{SourceName: "feed", Articles: []*models.Article{
			relevantArticle("https://example.com/a", "A"),
		}},
	})
	env.pipeline.articles = &faultyArticleStore{ArticleStore: env.articles, failures: 1}

	_, err := env.pipeline.Run(ctx, "task-1")
	require.Error(t, err)
	articleCount, _ := env.articles.Count(ctx)
	require.EqualValues(t, 0, articleCount)

	env.pipeline.collectors = []collector.Collector{
		&collector.StaticCollector{SourceName: "feed", Articles: []*models.Article{
			relevantArticle("https://example.com/a", "A"),
		}},
	}

	_, err = env.pipeline.Run(ctx, "task-2")
	require.NoError(t, err)
	articleCount, _ = env.articles.Count(ctx)
	assert.EqualValues(t, 1, articleCount,
		"a hash observed during a failed run must not mark the article as a duplicate on retry")
}

func TestRunFailedSourceIsIsolated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, []collector.Collector{
		&collector.StaticCollector{SourceName: "broken", Err: assert.AnError},
		&collector.StaticCollector{SourceName: "ok", Articles: []*models.Article{
			relevantArticle("https://example.com/a", "A"),
		}},
	})

	_, err := env.pipeline.Run(ctx, "task-1")
	require.NoError(t, err)

	articleCount, _ := env.articles.Count(ctx)
	assert.EqualValues(t, 1, articleCount)
}

func TestRunPublishesStageProgress(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, []collector.Collector{
		&collector.StaticCollector{SourceName: "feed", Articles: []*models.Article{
			relevantArticle("https://example.com/a", "A"),
		}},
	})

	_, err := env.pipeline.Run(ctx, "task-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"collect", "dedup", "relevance", "extract", "index", "report"}, env.sink.Stages())
	for _, e := range env.sink.entries {
		assert.Equal(t, "task-1", e.TaskID)
	}
}

func TestFallbackReportWithoutLLM(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	require.NoError(t, env.insights.Upsert(ctx, &models.Insight{
		ArticleURL: "u1", KeyEvent: "stored event",
		InsuranceDomains: []string{"property"},
		Confidence:       models.ConfidenceHigh,
		Source:           "TNFD",
		CreatedAt:        time.Now().UTC(),
	}))

	report, err := env.pipeline.FallbackReport(ctx, context.DeadlineExceeded)
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.NotEmpty(t, report.GeneratedDate)
	assert.Contains(t, report.DomainImpacts, "stored event")
	assert.Contains(t, report.Error, "deadline")

	latest, err := env.reports.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.ID, latest.ID)
}

func TestEntryText(t *testing.T) {
	in := &models.Insight{
		KeyEvent:             "event",
		InsuranceDomains:     []string{"property", "life"},
		RiskFactors:          []string{"flood"},
		BusinessImplications: "implications",
		Timeframe:            "short-term",
		Confidence:           models.ConfidenceHigh,
	}
	text := EntryText(in)
	assert.Equal(t, "event\nproperty, life\nflood\nimplications\nshort-term\nHigh", text)

	sparse := &models.Insight{KeyEvent: "only event"}
	assert.Equal(t, "only event", EntryText(sparse))
}
