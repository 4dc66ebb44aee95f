package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClimateIntel/internal/models"
)

// MongoInsightStore is an implementation of InsightStore using MongoDB.
type MongoInsightStore struct {
	collection *mongo.Collection
}

// NewMongoInsightStore creates a new MongoInsightStore.
func NewMongoInsightStore(db *mongo.Database) *MongoInsightStore {
	return &MongoInsightStore{collection: db.Collection("structured_summaries")}
}

// EnsureIndexes creates the insight indexes. article_url is unique: at most
// one insight per source article.
func (s *MongoInsightStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "article_url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "insurance_domains", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

// Upsert inserts the insight or replaces the one for the same article URL.
func (s *MongoInsightStore) Upsert(ctx context.Context, insight *models.Insight) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"article_url": insight.ArticleURL}, insight, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an upsert race; the retry matches the now-existing record.
		_, err = s.collection.ReplaceOne(ctx, bson.M{"article_url": insight.ArticleURL}, insight, opts)
	}
	return err
}

// GetByURL retrieves the insight extracted from the given article URL.
func (s *MongoInsightStore) GetByURL(ctx context.Context, url string) (*models.Insight, error) {
	var insight models.Insight
	err := s.collection.FindOne(ctx, bson.M{"article_url": url}).Decode(&insight)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &insight, nil
}

// ExtractedURLs returns the set of article URLs that already have an insight.
func (s *MongoInsightStore) ExtractedURLs(ctx context.Context) (map[string]bool, error) {
	values, err := s.collection.Distinct(ctx, "article_url", bson.M{})
	if err != nil {
		return nil, err
	}
	urls := make(map[string]bool, len(values))
	for _, v := range values {
		if url, ok := v.(string); ok {
			urls[url] = true
		}
	}
	return urls, nil
}

// All returns every stored insight.
func (s *MongoInsightStore) All(ctx context.Context) ([]*models.Insight, error) {
	return s.find(ctx, bson.M{}, options.Find())
}

// ListRecent returns up to limit insights, newest first.
func (s *MongoInsightStore) ListRecent(ctx context.Context, limit int64) ([]*models.Insight, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{}, opts)
}

// List retrieves insights matching the filter, newest first.
func (s *MongoInsightStore) List(ctx context.Context, filter InsightFilter) ([]*models.Insight, error) {
	query := bson.M{}
	if filter.Domain != "" {
		query["insurance_domains"] = filter.Domain
	}
	if filter.Source != "" {
		query["source"] = filter.Source
	}
	if filter.Timeframe != "" {
		query["timeframe"] = filter.Timeframe
	}
	if filter.Confidence != "" {
		query["confidence"] = filter.Confidence
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Skip > 0 {
		opts.SetSkip(filter.Skip)
	}
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	return s.find(ctx, query, opts)
}

// Count returns the number of stored insights.
func (s *MongoInsightStore) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}

func (s *MongoInsightStore) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*models.Insight, error) {
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var insights []*models.Insight
	if err = cursor.All(ctx, &insights); err != nil {
		return nil, err
	}
	return insights, nil
}

var _ InsightStore = (*MongoInsightStore)(nil)
