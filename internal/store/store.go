// Package store persists the pipeline's records in MongoDB: raw articles,
// extracted insights, generated reports and task records. All writes against
// a natural key are upserts, which is what makes repeated pipeline runs
// idempotent at the storage layer.
package store

import (
	"context"
	"errors"
	"time"

	"ClimateIntel/internal/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("store: record not found")

// ArticleFilter narrows List queries over articles.
type ArticleFilter struct {
	Source       string
	SourceType   string
	MinRelevance float64
	Skip         int64
	Limit        int64
}

// ArticleStore persists raw articles keyed by normalized URL.
type ArticleStore interface {
	// Upsert inserts the article or replaces the record with the same URL.
	Upsert(ctx context.Context, article *models.Article) error
	// UpdateRelevance writes the scorer's output onto an existing record.
	UpdateRelevance(ctx context.Context, url string, insurance, climate, total float64) error
	// HashExists reports whether any stored article carries the content hash.
	HashExists(ctx context.Context, hash string) (bool, error)
	GetByURL(ctx context.Context, url string) (*models.Article, error)
	List(ctx context.Context, filter ArticleFilter) ([]*models.Article, error)
	Count(ctx context.Context) (int64, error)
}

// InsightFilter narrows List queries over insights.
type InsightFilter struct {
	Domain     string
	Source     string
	Timeframe  string
	Confidence string
	Skip       int64
	Limit      int64
}

// InsightStore persists extracted insights keyed by article URL.
type InsightStore interface {
	// Upsert inserts the insight or replaces the one for the same article URL.
	Upsert(ctx context.Context, insight *models.Insight) error
	GetByURL(ctx context.Context, url string) (*models.Insight, error)
	// ExtractedURLs returns the set of article URLs that already have an
	// insight, so re-runs skip re-extraction.
	ExtractedURLs(ctx context.Context) (map[string]bool, error)
	All(ctx context.Context) ([]*models.Insight, error)
	// ListRecent returns up to limit insights, newest first.
	ListRecent(ctx context.Context, limit int64) ([]*models.Insight, error)
	List(ctx context.Context, filter InsightFilter) ([]*models.Insight, error)
	Count(ctx context.Context) (int64, error)
}

// ReportStore persists generated reports.
type ReportStore interface {
	Insert(ctx context.Context, report *models.Report) error
	Latest(ctx context.Context) (*models.Report, error)
	GetByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, skip, limit int64) ([]*models.Report, error)
	Count(ctx context.Context) (int64, error)
}

// TaskStore persists pipeline task records.
type TaskStore interface {
	Create(ctx context.Context, task *models.TaskRecord) error
	GetByID(ctx context.Context, id string) (*models.TaskRecord, error)
	List(ctx context.Context, skip, limit int64) ([]*models.TaskRecord, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, taskErr string) error
	// StalePending returns pending tasks created before the cutoff, for the
	// reclaimer to fail and fall back.
	StalePending(ctx context.Context, olderThan time.Time) ([]*models.TaskRecord, error)
}
