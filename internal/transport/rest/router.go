package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kkogteva6/ReadingPlatform/internal/cache"
	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/rest/handler"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/rest/middleware"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService          *service.AuthService
	QuestionnaireService *service.QuestionnaireService
	DashboardService     *service.DashboardService
	AdminService         *service.AdminService
	Profiles             cache.ProfileCache
	WSHub                *ws.Hub

	AllowedOrigins []string
	RateRequests   int
	RateWindow     time.Duration
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Observe)

	authHandler := handler.NewAuthHandler(c.AuthService)
	questionnaireHandler := handler.NewQuestionnaireHandler(c.QuestionnaireService)
	dashboardHandler := handler.NewDashboardHandler(c.DashboardService)
	adminHandler := handler.NewAdminHandler(c.AdminService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.Profiles)

	authMW := middleware.NewAuthMiddleware(c.AuthService)
	// Each limited route gets its own per-IP budget
	limited := func(h http.HandlerFunc) http.Handler {
		return rateLimiter(c.RateRequests, c.RateWindow)(h)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.Handle("/auth/login", limited(authHandler.Login)).Methods(http.MethodPost)
	v1.Handle("/auth/register", limited(authHandler.Register)).Methods(http.MethodPost)

	// WebSocket routes (token in query param)
	v1.HandleFunc("/ws/readers/{readerId}", wsHandler.ReaderWS).Methods(http.MethodGet)

	// Any signed-in user
	userRoutes := v1.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)
	userRoutes.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)

	// Student routes
	studentRoutes := v1.NewRoute().Subrouter()
	studentRoutes.Use(authMW.RequireUser, authMW.RequireRole(model.RoleStudent))

	studentRoutes.HandleFunc("/student/dashboard", dashboardHandler.Student).Methods(http.MethodGet)
	studentRoutes.Handle("/student/texts", limited(dashboardHandler.AnalyzeText)).Methods(http.MethodPost)

	studentRoutes.HandleFunc("/questionnaire", questionnaireHandler.Start).Methods(http.MethodPost)
	studentRoutes.HandleFunc("/questionnaire/restart", questionnaireHandler.Restart).Methods(http.MethodPost)
	studentRoutes.HandleFunc("/questionnaire/attempts", questionnaireHandler.Attempts).Methods(http.MethodGet)
	studentRoutes.HandleFunc("/questionnaire/{id}", questionnaireHandler.Get).Methods(http.MethodGet)
	studentRoutes.HandleFunc("/questionnaire/{id}/answer", questionnaireHandler.Answer).Methods(http.MethodPut)
	studentRoutes.HandleFunc("/questionnaire/{id}/next", questionnaireHandler.Next).Methods(http.MethodPost)
	studentRoutes.HandleFunc("/questionnaire/{id}/prev", questionnaireHandler.Prev).Methods(http.MethodPost)
	studentRoutes.HandleFunc("/questionnaire/{id}/consent", questionnaireHandler.Consent).Methods(http.MethodPut)
	studentRoutes.Handle("/questionnaire/{id}/submit", limited(questionnaireHandler.Submit)).Methods(http.MethodPost)

	// Parent routes
	parentRoutes := v1.NewRoute().Subrouter()
	parentRoutes.Use(authMW.RequireUser, authMW.RequireRole(model.RoleParent))

	parentRoutes.HandleFunc("/parent/children", dashboardHandler.Children).Methods(http.MethodGet)
	parentRoutes.HandleFunc("/parent/children/{email}/dashboard", dashboardHandler.Child).Methods(http.MethodGet)

	// Admin routes
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireUser, authMW.RequireRole(model.RoleAdmin))

	adminRoutes.HandleFunc("/admin/books", adminHandler.ListBooks).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/admin/books", adminHandler.AddBook).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/admin/rebuild_works", adminHandler.RebuildWorks).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/admin/import_works_neo4j", adminHandler.ImportWorks).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/admin/publish", adminHandler.Publish).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins(c.AllowedOrigins)),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(panicLogger{}),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(r))
}

func rateLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(requests, window)
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// panicLogger routes recovered panics to zerolog
type panicLogger struct{}

func (panicLogger) Println(v ...interface{}) {
	logging.Error().Interface("panic", v).Msg("recovered from panic")
}
