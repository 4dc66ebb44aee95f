package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClimateIntel/internal/models"
)

// MongoTaskStore is an implementation of TaskStore using MongoDB.
type MongoTaskStore struct {
	collection *mongo.Collection
}

// NewMongoTaskStore creates a new MongoTaskStore.
func NewMongoTaskStore(db *mongo.Database) *MongoTaskStore {
	return &MongoTaskStore{collection: db.Collection("tasks")}
}

// EnsureIndexes creates the task indexes used by the reclaimer scan.
func (s *MongoTaskStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

// Create inserts a new task record into the database.
func (s *MongoTaskStore) Create(ctx context.Context, task *models.TaskRecord) error {
	_, err := s.collection.InsertOne(ctx, task)
	return err
}

// GetByID retrieves a task by its ID.
func (s *MongoTaskStore) GetByID(ctx context.Context, id string) (*models.TaskRecord, error) {
	var task models.TaskRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks, newest first.
func (s *MongoTaskStore) List(ctx context.Context, skip, limit int64) ([]*models.TaskRecord, error) {
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

	var tasks []*models.TaskRecord
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkCompleted transitions a task to completed.
func (s *MongoTaskStore) MarkCompleted(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.TaskStatusCompleted, "")
}

// MarkFailed transitions a task to failed with the error recorded.
func (s *MongoTaskStore) MarkFailed(ctx context.Context, id string, taskErr string) error {
	return s.finish(ctx, id, models.TaskStatusFailed, taskErr)
}

func (s *MongoTaskStore) finish(ctx context.Context, id string, status models.TaskStatus, taskErr string) error {
	now := time.Now().UTC()
	set := bson.M{"status": status, "completed_at": now}
	if taskErr != "" {
		set["error"] = taskErr
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// StalePending returns pending tasks created before the cutoff.
func (s *MongoTaskStore) StalePending(ctx context.Context, olderThan time.Time) ([]*models.TaskRecord, error) {
	query := bson.M{
		"status":     models.TaskStatusPending,
		"created_at": bson.M{"$lt": olderThan},
	}
	cursor, err := s.collection.Find(ctx, query, options.Find())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*models.TaskRecord
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

var _ TaskStore = (*MongoTaskStore)(nil)
