// Package pipeline implements one full ingestion-to-report traversal:
// collect, deduplicate, score, extract, index, retrieve, synthesize. Every
// persistence step is a keyed upsert, so running the pipeline twice over the
// same corpus converges to the same stored state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ClimateIntel/internal/collector"
	"ClimateIntel/internal/dedup"
	"ClimateIntel/internal/embedding"
	"ClimateIntel/internal/extractor"
	"ClimateIntel/internal/index"
	"ClimateIntel/internal/models"
	"ClimateIntel/internal/relevance"
	"ClimateIntel/internal/retriever"
	"ClimateIntel/internal/store"
	"ClimateIntel/internal/synthesizer"
	"ClimateIntel/pkg/logger"
)

// ProgressSink receives per-stage progress events. A Kafka publisher in
// production; nil disables publishing.
type ProgressSink interface {
	Publish(ctx context.Context, entry *models.PipelineLogEntry) error
}

// fallbackScanLimit bounds how many stored insights feed a fallback report.
const fallbackScanLimit = 20

// Pipeline wires the stages together.
type Pipeline struct {
	collectors []collector.Collector
	articles   store.ArticleStore
	insights   store.InsightStore
	reports    store.ReportStore
	hashCache  dedup.HashCache
	extractor  *extractor.Extractor
	embedder   embedding.Embedding
	index      index.Index
	retriever  *retriever.Retriever
	synth      *synthesizer.Synthesizer
	progress   ProgressSink
	log        *logger.Logger
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Collectors []collector.Collector
	Articles   store.ArticleStore
	Insights   store.InsightStore
	Reports    store.ReportStore
	HashCache  dedup.HashCache
	Extractor  *extractor.Extractor
	Embedder   embedding.Embedding
	Index      index.Index
	Retriever  *retriever.Retriever
	Synth      *synthesizer.Synthesizer
	Progress   ProgressSink
	Log        *logger.Logger
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		collectors: deps.Collectors,
		articles:   deps.Articles,
		insights:   deps.Insights,
		reports:    deps.Reports,
		hashCache:  deps.HashCache,
		extractor:  deps.Extractor,
		embedder:   deps.Embedder,
		index:      deps.Index,
		retriever:  deps.Retriever,
		synth:      deps.Synth,
		progress:   deps.Progress,
		log:        deps.Log,
	}
}

// Run executes one full traversal and returns the stored report.
func (p *Pipeline) Run(ctx context.Context, taskID string) (*models.Report, error) {
	articles := collector.CollectAll(ctx, p.collectors, p.log)
	if len(articles) == 0 {
		p.log.Warn("no articles collected, substituting built-in sample articles")
		articles = collector.SampleArticles(time.Now())
	}
	p.publish(ctx, taskID, "collect", "collection finished", len(articles))

	kept, err := p.ingest(ctx, articles)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, taskID, "dedup", "articles stored after deduplication", len(kept))

	relevant, err := p.score(ctx, kept)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, taskID, "relevance", "relevant articles scored", len(relevant))

	extracted, err := p.extract(ctx, relevant)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, taskID, "extract", "insights extracted", len(extracted))

	if err := p.persistInsights(ctx, extracted); err != nil {
		return nil, err
	}
	p.publish(ctx, taskID, "index", "insights persisted and indexed", len(extracted))

	report, err := p.GenerateReport(ctx)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, taskID, "report", "report generated", report.ArticleCount)
	return report, nil
}

// ingest normalizes, hashes and stores the collected articles. An article
// whose content hash matches a previously stored one under a different URL
// is dropped.
func (p *Pipeline) ingest(ctx context.Context, articles []*models.Article) ([]*models.Article, error) {
	var kept []*models.Article
	for _, a := range articles {
		a.URL = dedup.NormalizeURL(a.URL)
		if a.URL == "" {
			continue
		}
		a.ContentHash = dedup.HashContent(a.Content)
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}

		_, err := p.articles.GetByURL(ctx, a.URL)
		switch {
		case err == nil:
			// Known URL: refresh the stored record.
		case errors.Is(err, store.ErrNotFound):
			duplicate, dupErr := p.seenContent(ctx, a.ContentHash)
			if dupErr != nil {
				return nil, dupErr
			}
			if duplicate {
				p.log.Infof("dropping %s: identical content already stored under another URL", a.URL)
				continue
			}
		default:
			return nil, err
		}

		if err := p.articles.Upsert(ctx, a); err != nil {
			return nil, err
		}
		p.recordContent(ctx, a.ContentHash)
		kept = append(kept, a)
	}
	return kept, nil
}

// seenContent consults the hash cache first and always confirms a miss
// against the store, since cache entries expire. Hashes reach the cache only
// after the article carrying them was stored, so a failed or cancelled run
// never poisons retries.
func (p *Pipeline) seenContent(ctx context.Context, hash string) (bool, error) {
	if p.hashCache != nil {
		seen, err := p.hashCache.Seen(ctx, hash)
		if err != nil {
			p.log.WithError(err).Warn("hash cache unavailable, falling through to store lookup")
		} else if seen {
			return true, nil
		}
	}
	return p.articles.HashExists(ctx, hash)
}

// recordContent marks the hash as stored. Best effort: the store lookup
// covers for a cold cache.
func (p *Pipeline) recordContent(ctx context.Context, hash string) {
	if p.hashCache == nil {
		return
	}
	if err := p.hashCache.Record(ctx, hash); err != nil {
		p.log.WithError(err).Warn("could not record content hash in cache")
	}
}

// score runs the relevance scorer over stored articles and persists the
// scores of the accepted ones.
func (p *Pipeline) score(ctx context.Context, articles []*models.Article) ([]*models.Article, error) {
	var relevant []*models.Article
	for _, a := range articles {
		insurance, climate, ok := relevance.Score(a)
		if !ok {
			continue
		}
		a.InsuranceRelevance = insurance
		a.ClimateRelevance = climate
		a.TotalRelevance = insurance + climate
		if err := p.articles.UpdateRelevance(ctx, a.URL, insurance, climate, a.TotalRelevance); err != nil {
			return nil, err
		}
		relevant = append(relevant, a)
	}
	return relevant, nil
}

// extract runs structured extraction over relevant articles that do not yet
// have an insight. Per-article failures are skipped, never fatal.
func (p *Pipeline) extract(ctx context.Context, articles []*models.Article) ([]*models.Insight, error) {
	done, err := p.insights.ExtractedURLs(ctx)
	if err != nil {
		return nil, err
	}

	var extracted []*models.Insight
	for _, a := range articles {
		if done[a.URL] {
			continue
		}
		insight, err := p.extractor.Extract(ctx, a)
		if errors.Is(err, extractor.ErrContentTooShort) {
			p.log.Infof("skipping %s: content too short for extraction", a.URL)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.WithError(err).Warnf("extraction failed for %s, skipping", a.URL)
			continue
		}
		extracted = append(extracted, insight)
	}
	return extracted, nil
}

// persistInsights stores the insights and upserts their vectors. Record
// store writes are authoritative and abort on error; index writes are
// advisory since retrieval can fall back to a store scan.
func (p *Pipeline) persistInsights(ctx context.Context, insights []*models.Insight) error {
	if len(insights) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, in := range insights {
			if err := p.insights.Upsert(gctx, in); err != nil {
				return fmt.Errorf("persist insight %q: %w", in.ArticleURL, err)
			}
		}
		return nil
	})

	g.Go(func() error {
		texts := make([]string, len(insights))
		for i, in := range insights {
			texts[i] = EntryText(in)
		}
		vectors, err := p.embedder.EmbedBatch(gctx, texts)
		if err != nil {
			p.log.WithError(err).Warn("embedding failed, skipping index update")
			return nil
		}
		entries := make([]index.Entry, len(insights))
		for i, in := range insights {
			entries[i] = index.Entry{
				ID:         in.ArticleURL,
				ArticleURL: in.ArticleURL,
				Text:       texts[i],
				Embedding:  vectors[i],
			}
		}
		if err := p.index.Upsert(gctx, entries); err != nil {
			p.log.WithError(err).Warn("vector index update failed, retrieval will fall back to store scan")
		}
		return nil
	})

	return g.Wait()
}

// GenerateReport retrieves a budget-bounded insight set, synthesizes the
// report and persists it.
func (p *Pipeline) GenerateReport(ctx context.Context) (*models.Report, error) {
	selected, err := p.retriever.Retrieve(ctx, nil)
	if err != nil {
		return nil, err
	}
	report := p.synth.Synthesize(ctx, selected)
	if err := p.reports.Insert(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// FallbackReport synthesizes and stores the static degraded report from
// whatever insights already exist. Called on run timeout or stall reclaim;
// it must not depend on the LLM.
func (p *Pipeline) FallbackReport(ctx context.Context, cause error) (*models.Report, error) {
	recent, err := p.insights.ListRecent(ctx, fallbackScanLimit)
	if err != nil {
		p.log.WithError(err).Warn("could not load insights for fallback report")
		recent = nil
	}
	report := p.synth.Fallback(recent, cause)
	if err := p.reports.Insert(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// EntryText is the normalized text view of an insight that gets embedded.
func EntryText(in *models.Insight) string {
	parts := []string{
		in.KeyEvent,
		strings.Join(in.InsuranceDomains, ", "),
		strings.Join(in.RiskFactors, ", "),
		in.BusinessImplications,
		in.Timeframe,
		in.Confidence,
	}
	var nonEmpty []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

func (p *Pipeline) publish(ctx context.Context, taskID, stage, message string, count int) {
	p.log.WithPayload(map[string]interface{}{"stage": stage, "count": count}).Info(message)
	if p.progress == nil {
		return
	}
	entry := &models.PipelineLogEntry{
		TaskID:    taskID,
		Stage:     stage,
		Message:   message,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
	if err := p.progress.Publish(ctx, entry); err != nil {
		p.log.WithError(err).Warn("failed to publish progress event")
	}
}
