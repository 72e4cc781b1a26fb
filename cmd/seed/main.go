package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kkogteva6/ReadingPlatform/internal/app"
	"github.com/kkogteva6/ReadingPlatform/internal/config"
	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/questionnaire"
)

// seed replaces the stored question bank with the reference bank, or with a
// YAML bank given by -bank.
func main() {
	bankPath := flag.String("bank", "", "YAML question bank to load instead of the reference bank")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bank, err := loadBank(*bankPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid question bank")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialise storage")
	}
	defer a.Close(context.Background())

	if err := a.QuestionRepo.ReplaceAll(ctx, bank.Items()); err != nil {
		logging.Fatal().Err(err).Msg("failed to store question bank")
	}
	count, err := a.QuestionRepo.Count(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to count questions")
	}
	logging.Info().Int64("items", count).Str("database", cfg.Mongo.Database).Msg("question bank seeded")
}

func loadBank(path string) (*questionnaire.Bank, error) {
	if path == "" {
		return questionnaire.ReferenceBank()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return questionnaire.ParseBank(data)
}
