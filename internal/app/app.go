// Package app owns the infrastructure shared by the server and the seeder:
// the Mongo and Redis connections plus the repositories and caches built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kkogteva6/ReadingPlatform/internal/cache"
	"github.com/kkogteva6/ReadingPlatform/internal/config"
	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/questionnaire"
	"github.com/kkogteva6/ReadingPlatform/internal/repository"
)

const pingTimeout = 5 * time.Second

type App struct {
	Mongo *mongo.Client
	Redis redis.UniversalClient

	QuestionRepo repository.QuestionRepo
	AttemptRepo  repository.AttemptRepo

	Sessions       cache.QuestionnaireCache
	Profiles       cache.ProfileCache
	RecentChildren cache.RecentChildrenCache
}

// New connects to Mongo and Redis and builds the storage layer
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logging.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	logging.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureAttemptIndexes(ctx, db); err != nil {
		logging.Warn().Err(err).Msg("failed to ensure attempt indexes")
	}

	return &App{
		Mongo:          mongoClient,
		Redis:          rdb,
		QuestionRepo:   repository.NewQuestionRepo(db),
		AttemptRepo:    repository.NewAttemptRepo(db),
		Sessions:       cache.NewQuestionnaireCache(rdb, cfg.Questionnaire.SessionTTL, cfg.Questionnaire.SubmitLockTTL),
		Profiles:       cache.NewProfileCache(rdb, cfg.Questionnaire.SessionTTL),
		RecentChildren: cache.NewRecentChildrenCache(rdb),
	}, nil
}

// LoadBank prefers the bank stored in Mongo and falls back to the embedded
// reference bank when the collection is empty.
func LoadBank(ctx context.Context, repo repository.QuestionRepo) (*questionnaire.Bank, error) {
	items, err := repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	if len(items) == 0 {
		logging.Warn().Msg("question bank collection is empty, using the reference bank")
		return questionnaire.ReferenceBank()
	}
	bank, err := questionnaire.NewBank(items)
	if err != nil {
		return nil, fmt.Errorf("stored question bank: %w", err)
	}
	return bank, nil
}

// Close releases both connections
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Redis.Close(), a.Mongo.Disconnect(ctx))
}
