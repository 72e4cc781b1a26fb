package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

// AttemptRepo keeps an audit trail of submitted questionnaires
type AttemptRepo interface {
	Create(ctx context.Context, a *model.QuestionnaireAttempt) error
	ListByReader(ctx context.Context, readerID string, limit int64) ([]*model.QuestionnaireAttempt, error)
	GetBySession(ctx context.Context, sessionID string) (*model.QuestionnaireAttempt, error)
}

type attemptRepo struct {
	collection *mongo.Collection
}

func NewAttemptRepo(db *mongo.Database) AttemptRepo {
	return &attemptRepo{
		collection: db.Collection("questionnaire_attempts"),
	}
}

// EnsureAttemptIndexes creates the reader and session indexes used by the queries below
func EnsureAttemptIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("questionnaire_attempts").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "readerId", Value: 1}, {Key: "submittedAt", Value: -1}}},
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (r *attemptRepo) Create(ctx context.Context, a *model.QuestionnaireAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, a)
	return err
}

func (r *attemptRepo) ListByReader(ctx context.Context, readerID string, limit int64) ([]*model.QuestionnaireAttempt, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "submittedAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"readerId": readerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attempts []*model.QuestionnaireAttempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepo) GetBySession(ctx context.Context, sessionID string) (*model.QuestionnaireAttempt, error) {
	var a model.QuestionnaireAttempt
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
