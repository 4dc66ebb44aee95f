package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClimateIntel/internal/models"
)

// MongoArticleStore is an implementation of ArticleStore using MongoDB.
type MongoArticleStore struct {
	collection *mongo.Collection
}

// NewMongoArticleStore creates a new MongoArticleStore.
func NewMongoArticleStore(db *mongo.Database) *MongoArticleStore {
	return &MongoArticleStore{collection: db.Collection("articles")}
}

// EnsureIndexes creates the article indexes: a unique index on url (the
// identity key) plus query indexes for the API surface.
func (s *MongoArticleStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "total_relevance", Value: -1}}},
		{Keys: bson.D{{Key: "source", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: -1}}},
	})
	return err
}

// Upsert inserts the article or replaces the record holding the same URL.
// A duplicate-key race (two writers inserting the same URL) is converted
// into the replace it was meant to be. An oversize document is retried with
// progressively halved content and finally written truncated-and-flagged.
func (s *MongoArticleStore) Upsert(ctx context.Context, article *models.Article) error {
	err := s.replaceByURL(ctx, article)
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return s.replaceByURL(ctx, article)
	}
	if !isOversizeError(err) {
		return fmt.Errorf("upsert article %q: %w", article.URL, err)
	}

	// Halve the content until the document fits. Two retries cover any
	// realistic article; the final attempt is flagged as truncated.
	truncated := *article
	truncated.Truncated = true
	for len(truncated.Content) > 0 {
		truncated.Content = truncated.Content[:len(truncated.Content)/2]
		err = s.replaceByURL(ctx, &truncated)
		if err == nil {
			return nil
		}
		if !isOversizeError(err) {
			return fmt.Errorf("upsert truncated article %q: %w", article.URL, err)
		}
	}
	return fmt.Errorf("upsert article %q: document oversize even when empty: %w", article.URL, err)
}

func (s *MongoArticleStore) replaceByURL(ctx context.Context, article *models.Article) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"url": article.URL}, article, opts)
	return err
}

// UpdateRelevance writes scorer output onto the stored record.
func (s *MongoArticleStore) UpdateRelevance(ctx context.Context, url string, insurance, climate, total float64) error {
	update := bson.M{"$set": bson.M{
		"insurance_relevance": insurance,
		"climate_relevance":   climate,
		"total_relevance":     total,
	}}
	res, err := s.collection.UpdateOne(ctx, bson.M{"url": url}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// HashExists reports whether any stored article carries the content hash.
func (s *MongoArticleStore) HashExists(ctx context.Context, hash string) (bool, error) {
	err := s.collection.FindOne(ctx, bson.M{"content_hash": hash},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByURL retrieves one article by its normalized URL.
func (s *MongoArticleStore) GetByURL(ctx context.Context, url string) (*models.Article, error) {
	var article models.Article
	err := s.collection.FindOne(ctx, bson.M{"url": url}).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// List retrieves articles sorted by relevance descending.
func (s *MongoArticleStore) List(ctx context.Context, filter ArticleFilter) ([]*models.Article, error) {
	query := bson.M{}
	if filter.Source != "" {
		query["source"] = filter.Source
	}
	if filter.SourceType != "" {
		query["source_type"] = filter.SourceType
	}
	if filter.MinRelevance > 0 {
		query["total_relevance"] = bson.M{"$gte": filter.MinRelevance}
	}

	opts := options.Find().SetSort(bson.D{{Key: "total_relevance", Value: -1}})
	if filter.Skip > 0 {
		opts.SetSkip(filter.Skip)
	}
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var articles []*models.Article
	if err = cursor.All(ctx, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// Count returns the number of stored articles.
func (s *MongoArticleStore) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}

// isOversizeError recognizes the server rejecting a document for size.
func isOversizeError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "too large") || strings.Contains(msg, "BSONObjectTooLarge")
}

var _ ArticleStore = (*MongoArticleStore)(nil)
