package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ClimateIntel/internal/models"
)

// In-memory store implementations. They honor the same key semantics as the
// Mongo stores and back the pipeline and orchestrator tests.

// MemoryArticleStore keeps articles keyed by URL.
type MemoryArticleStore struct {
	mu       sync.RWMutex
	articles map[string]*models.Article
}

func NewMemoryArticleStore() *MemoryArticleStore {
	return &MemoryArticleStore{articles: make(map[string]*models.Article)}
}

func (s *MemoryArticleStore) Upsert(_ context.Context, article *models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *article
	s.articles[article.URL] = &clone
	return nil
}

func (s *MemoryArticleStore) UpdateRelevance(_ context.Context, url string, insurance, climate, total float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[url]
	if !ok {
		return ErrNotFound
	}
	a.InsuranceRelevance = insurance
	a.ClimateRelevance = climate
	a.TotalRelevance = total
	return nil
}

func (s *MemoryArticleStore) HashExists(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.articles {
		if a.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryArticleStore) GetByURL(_ context.Context, url string) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[url]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *MemoryArticleStore) List(_ context.Context, filter ArticleFilter) ([]*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Article
	for _, a := range s.articles {
		if filter.Source != "" && a.Source != filter.Source {
			continue
		}
		if filter.SourceType != "" && a.SourceType != filter.SourceType {
			continue
		}
		if filter.MinRelevance > 0 && a.TotalRelevance < filter.MinRelevance {
			continue
		}
		clone := *a
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalRelevance > out[j].TotalRelevance })
	return paginate(out, filter.Skip, filter.Limit), nil
}

func (s *MemoryArticleStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.articles)), nil
}

// MemoryInsightStore keeps insights keyed by article URL.
type MemoryInsightStore struct {
	mu       sync.RWMutex
	insights map[string]*models.Insight
}

func NewMemoryInsightStore() *MemoryInsightStore {
	return &MemoryInsightStore{insights: make(map[string]*models.Insight)}
}

func (s *MemoryInsightStore) Upsert(_ context.Context, insight *models.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *insight
	s.insights[insight.ArticleURL] = &clone
	return nil
}

func (s *MemoryInsightStore) GetByURL(_ context.Context, url string) (*models.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.insights[url]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *in
	return &clone, nil
}

func (s *MemoryInsightStore) ExtractedURLs(context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make(map[string]bool, len(s.insights))
	for url := range s.insights {
		urls[url] = true
	}
	return urls, nil
}

func (s *MemoryInsightStore) All(context.Context) ([]*models.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Insight, 0, len(s.insights))
	for _, in := range s.insights {
		clone := *in
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryInsightStore) ListRecent(ctx context.Context, limit int64) ([]*models.Insight, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryInsightStore) List(ctx context.Context, filter InsightFilter) ([]*models.Insight, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Insight
	for _, in := range all {
		if filter.Source != "" && in.Source != filter.Source {
			continue
		}
		if filter.Domain != "" && !containsString(in.InsuranceDomains, filter.Domain) {
			continue
		}
		if filter.Timeframe != "" && in.Timeframe != filter.Timeframe {
			continue
		}
		if filter.Confidence != "" && in.Confidence != filter.Confidence {
			continue
		}
		out = append(out, in)
	}
	return paginate(out, filter.Skip, filter.Limit), nil
}

func (s *MemoryInsightStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.insights)), nil
}

// MemoryReportStore keeps reports in insertion order.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports []*models.Report
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{}
}

func (s *MemoryReportStore) Insert(_ context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	clone := *report
	s.reports = append(s.reports, &clone)
	return nil
}

func (s *MemoryReportStore) Latest(context.Context) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.reports) == 0 {
		return nil, ErrNotFound
	}
	clone := *s.reports[len(s.reports)-1]
	return &clone, nil
}

func (s *MemoryReportStore) GetByID(_ context.Context, id string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ID == id {
			clone := *r
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryReportStore) List(_ context.Context, skip, limit int64) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Report, 0, len(s.reports))
	for i := len(s.reports) - 1; i >= 0; i-- {
		clone := *s.reports[i]
		out = append(out, &clone)
	}
	return paginate(out, skip, limit), nil
}

func (s *MemoryReportStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.reports)), nil
}

// MemoryTaskStore keeps task records keyed by ID.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.TaskRecord
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*models.TaskRecord)}
}

func (s *MemoryTaskStore) Create(_ context.Context, task *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *MemoryTaskStore) GetByID(_ context.Context, id string) (*models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *MemoryTaskStore) List(_ context.Context, skip, limit int64) ([]*models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TaskRecord, 0, len(s.tasks))
	for _, t := range s.tasks {
		clone := *t
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, skip, limit), nil
}

func (s *MemoryTaskStore) MarkCompleted(ctx context.Context, id string) error {
	return s.finish(id, models.TaskStatusCompleted, "")
}

func (s *MemoryTaskStore) MarkFailed(ctx context.Context, id string, taskErr string) error {
	return s.finish(id, models.TaskStatusFailed, taskErr)
}

func (s *MemoryTaskStore) finish(id string, status models.TaskStatus, taskErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	t.Status = status
	t.CompletedAt = &now
	if taskErr != "" {
		t.Error = taskErr
	}
	return nil
}

func (s *MemoryTaskStore) StalePending(_ context.Context, olderThan time.Time) ([]*models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TaskRecord
	for _, t := range s.tasks {
		if t.Status == models.TaskStatusPending && t.CreatedAt.Before(olderThan) {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func paginate[T any](items []T, skip, limit int64) []T {
	if skip > 0 {
		if skip >= int64(len(items)) {
			return nil
		}
		items = items[skip:]
	}
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return items
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

var (
	_ ArticleStore = (*MemoryArticleStore)(nil)
	_ InsightStore = (*MemoryInsightStore)(nil)
	_ ReportStore  = (*MemoryReportStore)(nil)
	_ TaskStore    = (*MemoryTaskStore)(nil)
)
