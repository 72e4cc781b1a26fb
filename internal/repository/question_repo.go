package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

// QuestionRepo stores the questionnaire bank, one document per item
type QuestionRepo interface {
	// All returns items in bank order
	All(ctx context.Context) ([]model.QuestionItem, error)
	// ReplaceAll swaps the stored bank for items in one pass
	ReplaceAll(ctx context.Context, items []model.QuestionItem) error
	Count(ctx context.Context) (int64, error)
}

type questionRepo struct {
	collection *mongo.Collection
}

func NewQuestionRepo(db *mongo.Database) QuestionRepo {
	return &questionRepo{
		collection: db.Collection("questions"),
	}
}

func (r *questionRepo) All(ctx context.Context) ([]model.QuestionItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []model.QuestionItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *questionRepo) ReplaceAll(ctx context.Context, items []model.QuestionItem) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	docs := make([]interface{}, len(items))
	for i, q := range items {
		q.Position = i
		docs[i] = q
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert questions: %w", err)
	}
	return nil
}

func (r *questionRepo) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}
