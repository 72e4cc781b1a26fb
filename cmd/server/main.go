package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kkogteva6/ReadingPlatform/internal/app"
	"github.com/kkogteva6/ReadingPlatform/internal/backend"
	"github.com/kkogteva6/ReadingPlatform/internal/config"
	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/rest"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialise storage")
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("failed to close storage")
		}
	}()

	bank, err := app.LoadBank(ctx, a.QuestionRepo)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load question bank")
	}
	logging.Info().Int("items", bank.Len()).Msg("question bank loaded")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	defer wsHub.Stop()

	backendClient := backend.NewClient(backend.Options{
		BaseURL:         cfg.Backend.BaseURL,
		PathPrefix:      cfg.Backend.PathPrefix,
		Timeout:         cfg.Backend.Timeout,
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerTimeout:  cfg.Backend.BreakerTimeout,
	})

	// Initialize services
	authSvc := service.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	questionnaireSvc := service.NewQuestionnaireService(
		bank,
		a.Sessions,
		a.Profiles,
		a.AttemptRepo,
		backendClient,
		service.QuestionnaireOptions{ConsentDefault: cfg.Questionnaire.ConsentDefault},
	)
	dashboardSvc := service.NewDashboardService(backendClient, a.RecentChildren, a.Profiles, cfg.Questionnaire.HistoryLimit)
	adminSvc := service.NewAdminService(backendClient)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	questionnaireSvc.SetBroadcaster(wsHub)
	dashboardSvc.SetBroadcaster(wsHub)

	router := rest.NewRouter(&rest.Container{
		AuthService:          authSvc,
		QuestionnaireService: questionnaireSvc,
		DashboardService:     dashboardSvc,
		AdminService:         adminSvc,
		Profiles:             a.Profiles,
		WSHub:                wsHub,
		AllowedOrigins:       cfg.CORS.AllowedOrigins,
		RateRequests:         cfg.RateLimit.Requests,
		RateWindow:           cfg.RateLimit.Window,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logging.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.Backend.BaseURL+cfg.Backend.PathPrefix).
			Bool("consent_default", cfg.Questionnaire.ConsentDefault).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server forced to shutdown")
	}

	logging.Info().Msg("server exited")
}
