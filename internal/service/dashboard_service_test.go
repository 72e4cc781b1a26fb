package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkogteva6/ReadingPlatform/internal/cache"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

type fakeDashboardBackend struct {
	mu       sync.Mutex
	profiles map[string]*model.ReaderProfile
	upserts  []model.ReaderProfile
	gaps     []model.GapSummaryItem
	gapsErr  error
	recs     []model.ExplainedRecommendation
	topN     []int
	metaErr  error
	history  []model.ProfileEvent
	texts    []model.AnalyzeTextRequest
}

func (b *fakeDashboardBackend) GetProfile(_ context.Context, readerID string) (*model.ReaderProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.profiles[readerID]; ok {
		return p, nil
	}
	return nil, errors.New("profile not found")
}

func (b *fakeDashboardBackend) UpsertProfile(_ context.Context, p model.ReaderProfile) (*model.ReaderProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upserts = append(b.upserts, p)
	if b.profiles == nil {
		b.profiles = make(map[string]*model.ReaderProfile)
	}
	b.profiles[p.ID] = &p
	return &p, nil
}

func (b *fakeDashboardBackend) Gaps(context.Context, string) ([]model.GapSummaryItem, error) {
	return b.gaps, b.gapsErr
}

func (b *fakeDashboardBackend) RecommendationsExplain(_ context.Context, _ string, topN int) ([]model.ExplainedRecommendation, error) {
	b.mu.Lock()
	b.topN = append(b.topN, topN)
	b.mu.Unlock()
	return b.recs, nil
}

func (b *fakeDashboardBackend) ProfileMeta(_ context.Context, readerID string) (*model.ProfileMeta, error) {
	if b.metaErr != nil {
		return nil, b.metaErr
	}
	return &model.ProfileMeta{ReaderID: readerID, TestCount: 2}, nil
}

func (b *fakeDashboardBackend) ProfileHistory(context.Context, string, int) ([]model.ProfileEvent, error) {
	return b.history, nil
}

func (b *fakeDashboardBackend) AnalyzeText(_ context.Context, req model.AnalyzeTextRequest) (*model.AnalyzeTextResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts = append(b.texts, req)
	return &model.AnalyzeTextResponse{
		OK:      true,
		Profile: model.ReaderProfile{ID: req.ReaderID, Age: "16+", Concepts: model.ConceptVector{"эмпатия": 0.6}},
	}, nil
}

type dashboardFixture struct {
	svc         *DashboardService
	backend     *fakeDashboardBackend
	profiles    cache.ProfileCache
	broadcaster *fakeBroadcaster
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &dashboardFixture{
		backend:     &fakeDashboardBackend{},
		profiles:    cache.NewProfileCache(rdb, time.Hour),
		broadcaster: &fakeBroadcaster{},
	}
	f.svc = NewDashboardService(f.backend, cache.NewRecentChildrenCache(rdb), f.profiles, 20)
	f.svc.SetBroadcaster(f.broadcaster)
	return f
}

func gap(concept string, g float64, dir model.GapDirection) model.GapSummaryItem {
	return model.GapSummaryItem{Concept: concept, Gap: g, Direction: dir}
}

func TestStudentDashboardCreatesMissingProfile(t *testing.T) {
	f := newDashboardFixture(t)

	view := f.svc.Student(context.Background(), student, false)

	require.Len(t, f.backend.upserts, 1)
	assert.Equal(t, model.DefaultAgeGroup, f.backend.upserts[0].Age)
	assert.Empty(t, f.backend.upserts[0].Concepts)
	require.NotNil(t, view.Profile)
	assert.Equal(t, student.Email, view.Profile.ID)
	assert.Empty(t, view.Errors)
	assert.Nil(t, view.History)
	assert.Equal(t, []int{5}, f.backend.topN)
}

func TestStudentDashboardSections(t *testing.T) {
	f := newDashboardFixture(t)
	f.backend.profiles = map[string]*model.ReaderProfile{
		student.Email: {ID: student.Email, Age: "12+", Concepts: model.ConceptVector{"a": 0.2, "b": 0.9, "c": math.NaN(), "d": 0.5}},
	}
	for i := 0; i < 7; i++ {
		f.backend.gaps = append(f.backend.gaps, gap("below", 0.1, model.GapBelow), gap("above", -0.1, model.GapAbove))
	}
	f.backend.gaps = append(f.backend.gaps, gap("zero", 0, model.GapBelow))
	f.backend.recs = []model.ExplainedRecommendation{
		{Why: model.ExplainWhy{Score: 0.4, Mode: model.ModeCorrection}},
		{Why: model.ExplainWhy{Score: 1.2, Mode: model.ModeCorrection}},
	}
	f.backend.history = []model.ProfileEvent{
		{ID: 1, CreatedAt: "2025-01-01T10:00:00"},
		{ID: 2, CreatedAt: "2025-03-01T10:00:00"},
		{ID: 3, CreatedAt: "2025-02-01T10:00:00"},
	}

	view := f.svc.Student(context.Background(), student, true)

	assert.Empty(t, f.backend.upserts)
	assert.Equal(t, "12+", view.AgeGroup)
	require.Len(t, view.TopConcepts, 3)
	assert.Equal(t, "b", view.TopConcepts[0].Concept)
	assert.Equal(t, "a", view.TopConcepts[2].Concept)
	assert.Len(t, view.Deficits, 5)
	assert.Len(t, view.Strengths, 3)
	assert.InDelta(t, 1.2, view.MaxScore, 1e-9)
	require.Len(t, view.Recommendations, 2)
	assert.Equal(t, 33, view.Recommendations[0].MatchPercent)
	assert.Equal(t, 100, view.Recommendations[1].MatchPercent)
	assert.Equal(t, model.ModeCorrection, view.Recommendations[0].Why.Mode)
	require.NotNil(t, view.Meta)
	assert.Equal(t, 2, view.Meta.TestCount)
	require.Len(t, view.History, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{view.History[0].ID, view.History[1].ID, view.History[2].ID})
}

func TestDashboardSectionFailureIsIsolated(t *testing.T) {
	f := newDashboardFixture(t)
	f.backend.profiles = map[string]*model.ReaderProfile{student.Email: {ID: student.Email, Age: "16+"}}
	f.backend.gapsErr = errors.New("gaps unavailable")
	f.backend.metaErr = errors.New("meta unavailable")

	view := f.svc.Student(context.Background(), student, false)

	assert.Equal(t, "gaps unavailable", view.Errors[model.SectionGaps])
	assert.Equal(t, "meta unavailable", view.Errors[model.SectionMeta])
	assert.NotContains(t, view.Errors, model.SectionProfile)
	assert.NotNil(t, view.Profile)
	assert.Empty(t, view.Deficits)
}

func TestParentDashboard(t *testing.T) {
	f := newDashboardFixture(t)
	parent := model.User{Email: "parent@test.ru", Role: model.RoleParent}
	for i := 0; i < 10; i++ {
		f.backend.gaps = append(f.backend.gaps, gap("below", 0.2, model.GapBelow), gap("above", -0.2, model.GapAbove))
	}
	ctx := context.Background()

	view, err := f.svc.Parent(ctx, parent, "  Child@Test.RU ")
	require.NoError(t, err)
	assert.Equal(t, "child@test.ru", view.ReaderID)
	assert.Contains(t, view.Errors, model.SectionProfile)
	assert.Empty(t, f.backend.upserts)
	assert.Len(t, view.Deficits, 8)
	assert.Len(t, view.Strengths, 6)
	assert.Equal(t, []int{7}, f.backend.topN)
	assert.NotNil(t, view.History)

	_, err = f.svc.Parent(ctx, parent, "second@test.ru")
	require.NoError(t, err)
	recent, err := f.svc.RecentChildren(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, []string{"second@test.ru", "child@test.ru"}, recent.Children)

	_, err = f.svc.Parent(ctx, parent, "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidReader)
}

func TestRecentChildrenEmpty(t *testing.T) {
	f := newDashboardFixture(t)
	recent, err := f.svc.RecentChildren(context.Background(), model.User{Email: "p@test.ru", Role: model.RoleParent})
	require.NoError(t, err)
	assert.NotNil(t, recent.Children)
	assert.Empty(t, recent.Children)
}

func TestAnalyzeText(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	_, err := f.svc.AnalyzeText(ctx, student, "   короткий текст   ")
	assert.ErrorIs(t, err, ErrTextTooShort)
	assert.Empty(t, f.backend.texts)

	text := strings.Repeat("я", 30)
	resp, err := f.svc.AnalyzeText(ctx, student, "  "+text+"\n")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	require.Len(t, f.backend.texts, 1)
	assert.Equal(t, text, f.backend.texts[0].Text)

	cached, err := f.profiles.Get(ctx, student.Email)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.InDelta(t, 0.6, cached.Concepts["эмпатия"], 1e-9)

	require.Len(t, f.broadcaster.sent, 1)
	update, ok := f.broadcaster.sent[0].payload.(ProfileUpdate)
	require.True(t, ok)
	assert.Equal(t, string(model.EventText), update.Source)
}

func TestSplitGapsKeepsOrder(t *testing.T) {
	gaps := []model.GapSummaryItem{
		gap("x", 0.3, model.GapBelow),
		gap("y", -0.1, model.GapAbove),
		gap("z", 0.1, model.GapBelow),
		gap("w", 0.1, model.GapAbove),
	}
	deficits, strengths := SplitGaps(gaps, 5, 3)
	require.Len(t, deficits, 2)
	assert.Equal(t, "x", deficits[0].Concept)
	assert.Equal(t, "z", deficits[1].Concept)
	require.Len(t, strengths, 1)
	assert.Equal(t, "y", strengths[0].Concept)
}

func TestMatchPercent(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		max   float64
		want  int
	}{
		{"best", 2, 2, 100},
		{"rounds half up", 0.125, 1, 13},
		{"zero score", 0, 1, 0},
		{"negative score", -0.5, 1, 0},
		{"no positive max", 0.5, 0, 0},
		{"nan", math.NaN(), 1, 0},
		{"inf", math.Inf(1), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchPercent(tt.score, tt.max))
		})
	}
}
