package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClimateIntel/internal/models"
)

// MongoReportStore is an implementation of ReportStore using MongoDB.
type MongoReportStore struct {
	collection *mongo.Collection
}

// NewMongoReportStore creates a new MongoReportStore.
func NewMongoReportStore(db *mongo.Database) *MongoReportStore {
	return &MongoReportStore{collection: db.Collection("reports")}
}

// EnsureIndexes creates the report indexes.
func (s *MongoReportStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	return err
}

// Insert stores a new report. Reports are immutable; an empty ID is assigned
// a fresh UUID.
func (s *MongoReportStore) Insert(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	_, err := s.collection.InsertOne(ctx, report)
	return err
}

// Latest returns the most recently created report.
func (s *MongoReportStore) Latest(ctx context.Context) (*models.Report, error) {
	var report models.Report
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err := s.collection.FindOne(ctx, bson.M{}, opts).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByID retrieves one report.
func (s *MongoReportStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// List retrieves reports, newest first.
func (s *MongoReportStore) List(ctx context.Context, skip, limit int64) ([]*models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []*models.Report
	if err = cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// Count returns the number of stored reports.
func (s *MongoReportStore) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}

var _ ReportStore = (*MongoReportStore)(nil)
