package rest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkogteva6/ReadingPlatform/internal/backend"
	"github.com/kkogteva6/ReadingPlatform/internal/cache"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/questionnaire"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/ws"
)

// stubBackend stands in for the recommendation backend in every service
type stubBackend struct {
	mu       sync.Mutex
	applyErr error
	applied  int
	books    []model.Book
}

func (b *stubBackend) GetProfile(_ context.Context, readerID string) (*model.ReaderProfile, error) {
	return &model.ReaderProfile{ID: readerID, Age: "16+", Concepts: model.ConceptVector{"эмпатия": 0.4}}, nil
}

func (b *stubBackend) UpsertProfile(_ context.Context, p model.ReaderProfile) (*model.ReaderProfile, error) {
	return &p, nil
}

func (b *stubBackend) ApplyTest(_ context.Context, req model.ApplyTestRequest) (*model.ReaderProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied++
	if b.applyErr != nil {
		return nil, b.applyErr
	}
	return &model.ReaderProfile{ID: req.ReaderID, Age: req.Age, Concepts: req.TestConcepts}, nil
}

func (b *stubBackend) Gaps(context.Context, string) ([]model.GapSummaryItem, error) {
	return []model.GapSummaryItem{{Concept: "эмпатия", Gap: 0.2, Direction: model.GapBelow}}, nil
}

func (b *stubBackend) RecommendationsExplain(context.Context, string, int) ([]model.ExplainedRecommendation, error) {
	return nil, nil
}

func (b *stubBackend) ProfileMeta(_ context.Context, readerID string) (*model.ProfileMeta, error) {
	return &model.ProfileMeta{ReaderID: readerID}, nil
}

func (b *stubBackend) ProfileHistory(context.Context, string, int) ([]model.ProfileEvent, error) {
	return nil, nil
}

func (b *stubBackend) AnalyzeText(_ context.Context, req model.AnalyzeTextRequest) (*model.AnalyzeTextResponse, error) {
	return &model.AnalyzeTextResponse{OK: true, Profile: model.ReaderProfile{ID: req.ReaderID}}, nil
}

func (b *stubBackend) ListBooks(context.Context) ([]model.Book, error) {
	return b.books, nil
}

func (b *stubBackend) AddBook(_ context.Context, book model.Book) (*model.AdminResult, error) {
	return &model.AdminResult{OK: true, Added: book.ID}, nil
}

func (b *stubBackend) RebuildWorks(context.Context) (*model.AdminResult, error) {
	return &model.AdminResult{OK: true}, nil
}

func (b *stubBackend) ImportWorksNeo4j(context.Context) (*model.AdminResult, error) {
	return &model.AdminResult{OK: true}, nil
}

func (b *stubBackend) Publish(context.Context) (*model.AdminResult, error) {
	return &model.AdminResult{OK: true, Rebuild: &model.AdminResult{OK: true}, Import: &model.AdminResult{OK: true}}, nil
}

type memAttempts struct {
	mu       sync.Mutex
	attempts []*model.QuestionnaireAttempt
}

func (r *memAttempts) Create(_ context.Context, a *model.QuestionnaireAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *memAttempts) ListByReader(_ context.Context, readerID string, _ int64) ([]*model.QuestionnaireAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.QuestionnaireAttempt
	for _, a := range r.attempts {
		if a.ReaderID == readerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAttempts) GetBySession(_ context.Context, sessionID string) (*model.QuestionnaireAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.SessionID == sessionID {
			return a, nil
		}
	}
	return nil, nil
}

type testServer struct {
	handler http.Handler
	auth    *service.AuthService
	backend *stubBackend
}

var (
	studentUser = model.User{Email: "student@test.ru", Role: model.RoleStudent}
	parentUser  = model.User{Email: "parent@test.ru", Role: model.RoleParent}
	adminUser   = model.User{Email: "admin@test.ru", Role: model.RoleAdmin}
)

func newTestServer(t *testing.T, rateRequests int) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	stub := &stubBackend{}
	profiles := cache.NewProfileCache(rdb, time.Hour)
	auth := service.NewAuthService("test-secret", time.Hour)
	hub := ws.NewHub()
	t.Cleanup(hub.Stop)

	qs := service.NewQuestionnaireService(
		questionnaire.MustReferenceBank(),
		cache.NewQuestionnaireCache(rdb, time.Hour, time.Minute),
		profiles,
		&memAttempts{},
		stub,
		service.QuestionnaireOptions{ConsentDefault: true},
	)
	qs.SetBroadcaster(hub)
	ds := service.NewDashboardService(stub, cache.NewRecentChildrenCache(rdb), profiles, 20)
	ds.SetBroadcaster(hub)

	h := NewRouter(&Container{
		AuthService:          auth,
		QuestionnaireService: qs,
		DashboardService:     ds,
		AdminService:         service.NewAdminService(stub),
		Profiles:             profiles,
		WSHub:                hub,
		RateRequests:         rateRequests,
		RateWindow:           time.Minute,
	})
	return &testServer{handler: h, auth: auth, backend: stub}
}

func (s *testServer) do(t *testing.T, method, path string, user *model.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := s.auth.IssueToken(*user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/v1/auth/login", nil, model.LoginRequest{Email: "Student@Test.ru", Password: "1234", Role: model.RoleStudent})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "student@test.ru", resp.User.Email)

	rec = s.do(t, http.MethodPost, "/v1/auth/login", nil, model.LoginRequest{Email: "student@test.ru", Password: "bad", Role: model.RoleStudent})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Неверный email/пароль или роль.", decode[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/v1/auth/login", nil, map[string]string{"email": "x@test.ru", "password": "1", "role": "guest"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_request", decode[errorBody](t, rec).Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t, 2)
	body := model.LoginRequest{Email: "student@test.ru", Password: "1234", Role: model.RoleStudent}

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/auth/login", nil, body).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/auth/login", nil, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodPost, "/v1/auth/login", nil, body).Code)
}

func TestAuthAndRoles(t *testing.T) {
	s := newTestServer(t, 0)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/v1/me", nil, nil).Code)

	rec := s.do(t, http.MethodGet, "/v1/me", &parentUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parent@test.ru")

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/student/dashboard", &parentUser, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/admin/books", &studentUser, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/parent/children", &adminUser, nil).Code)
}

func TestQuestionnaireErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/v1/questionnaire", &studentUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[model.QuestionnaireView](t, rec)
	assert.Equal(t, 70, view.Total)

	rec = s.do(t, http.MethodPost, "/v1/questionnaire/"+view.SessionID+"/next", &studentUser, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "answer_required", body.Code)
	assert.Equal(t, "Выберите вариант ответа, чтобы продолжить.", body.Error)

	rec = s.do(t, http.MethodPut, "/v1/questionnaire/"+view.SessionID+"/answer", &studentUser, map[string]int{"value": 9})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_answer", decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/v1/questionnaire/"+view.SessionID+"/submit", &studentUser, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not_final_step", decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodPut, "/v1/questionnaire/"+view.SessionID+"/consent", &studentUser, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/questionnaire/missing", &studentUser, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	other := model.User{Email: "other@test.ru", Role: model.RoleStudent}
	rec = s.do(t, http.MethodGet, "/v1/questionnaire/"+view.SessionID, &other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, s.backend.applied)
}

// walk answers every item over HTTP and stops on the last one
func walk(t *testing.T, s *testServer, sessionID string) {
	t.Helper()
	attention := questionnaire.MustReferenceBank().Attention()
	base := "/v1/questionnaire/" + sessionID
	for {
		rec := s.do(t, http.MethodGet, base, &studentUser, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		view := decode[model.QuestionnaireView](t, rec)

		value := 4
		if view.Question.ID == attention.ID {
			value = attention.Expected
		}
		rec = s.do(t, http.MethodPut, base+"/answer", &studentUser, map[string]int{"value": value})
		require.Equal(t, http.StatusOK, rec.Code)
		if view.IsLast {
			return
		}
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/next", &studentUser, nil).Code)
	}
}

func TestQuestionnaireSubmitOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)
	s.backend.applyErr = &backend.APIError{Status: http.StatusInternalServerError, Method: http.MethodPost, Path: "/api/apply_test", Message: "graph store unavailable"}

	view := decode[model.QuestionnaireView](t, s.do(t, http.MethodPost, "/v1/questionnaire", &studentUser, nil))
	walk(t, s, view.SessionID)

	submit := "/v1/questionnaire/" + view.SessionID + "/submit"
	rec := s.do(t, http.MethodPost, submit, &studentUser, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "submission_failed", body.Code)
	assert.Equal(t, "graph store unavailable", body.Error)

	s.backend.mu.Lock()
	s.backend.applyErr = nil
	s.backend.mu.Unlock()

	rec = s.do(t, http.MethodPost, submit, &studentUser, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[model.SubmitResult](t, rec)
	assert.Equal(t, model.QuestionnaireCompleted, result.View.Status)
	assert.Len(t, result.Concepts, len(model.CoreScales))
	assert.Equal(t, 2, s.backend.applied)

	rec = s.do(t, http.MethodPost, submit, &studentUser, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "completed", decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/v1/questionnaire/attempts", &studentUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decode[[]model.QuestionnaireAttempt](t, rec)
	require.Len(t, attempts, 1)
	assert.Equal(t, view.SessionID, attempts[0].SessionID)
	assert.Equal(t, result.Concepts, attempts[0].Concepts)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/v1/auth/register", nil, model.RegisterRequest{
		Email: " New.Reader@Test.ru ", Password: "abcd", Role: model.RoleParent,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[model.LoginResponse](t, rec)
	assert.Equal(t, "new.reader@test.ru", resp.User.Email)
	assert.Equal(t, "Пользователь", resp.User.Name)
	assert.Equal(t, "/parent", resp.Home)

	req := httptest.NewRequest(http.MethodGet, "/v1/parent/children", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	children := httptest.NewRecorder()
	s.handler.ServeHTTP(children, req)
	assert.Equal(t, http.StatusOK, children.Code)

	tests := []struct {
		name     string
		body     model.RegisterRequest
		wantCode string
		wantMsg  string
	}{
		{"email without at sign", model.RegisterRequest{Email: "reader", Password: "abcd", Role: model.RoleStudent},
			"invalid_email", "Email выглядит некорректно."},
		{"short password", model.RegisterRequest{Email: "r@test.ru", Password: "abc", Role: model.RoleStudent},
			"password_too_short", "Пароль слишком короткий (минимум 4 символа)."},
		{"admin cannot self register", model.RegisterRequest{Email: "r@test.ru", Password: "abcd", Role: model.RoleAdmin},
			"invalid_request", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/v1/auth/register", nil, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Error)
			}
		})
	}
}

func TestRegisterIsRateLimited(t *testing.T) {
	s := newTestServer(t, 1)
	body := model.RegisterRequest{Email: "r@test.ru", Password: "abcd", Role: model.RoleStudent}

	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/auth/register", nil, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodPost, "/v1/auth/register", nil, body).Code)
}

func TestDashboardsOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodGet, "/v1/student/dashboard?history=1", &studentUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[model.DashboardView](t, rec)
	assert.Equal(t, "student@test.ru", view.ReaderID)
	assert.Len(t, view.Deficits, 1)
	assert.NotNil(t, view.History)

	rec = s.do(t, http.MethodPost, "/v1/student/texts", &studentUser, map[string]string{"text": "коротко"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "text_too_short", decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/v1/student/texts", &studentUser, map[string]string{"text": "Мне очень понравилась книга, потому что герой помогает друзьям."})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/parent/children/Kid@Test.ru/dashboard", &parentUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kid@test.ru", decode[model.DashboardView](t, rec).ReaderID)

	rec = s.do(t, http.MethodGet, "/v1/parent/children", &parentUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"kid@test.ru"}, decode[model.RecentChildren](t, rec).Children)
}

func TestAdminOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)
	s.backend.books = []model.Book{{ID: "w1", Title: "Капитанская дочка", Author: "Пушкин"}}

	rec := s.do(t, http.MethodGet, "/v1/admin/books", &adminUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Book](t, rec), 1)

	rec = s.do(t, http.MethodPost, "/v1/admin/books", &adminUser, model.Book{ID: "w2"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/admin/books", &adminUser, model.Book{ID: "w2", Title: "Ревизор", Author: "Гоголь"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/admin/publish", &adminUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.AdminResult](t, rec)
	require.NotNil(t, res.Rebuild)
	assert.True(t, res.Rebuild.OK)
}
