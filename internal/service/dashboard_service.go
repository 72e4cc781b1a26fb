package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kkogteva6/ReadingPlatform/internal/cache"
	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/validation"
)

// MinTextLength is the shortest essay, in characters after trimming, worth analysing
const MinTextLength = 30

var (
	ErrTextTooShort  = errors.New("Текст слишком короткий (минимум ~30 символов).")
	ErrInvalidReader = errors.New("child email is invalid")
)

// DashboardBackend is the read side of the recommendation backend
type DashboardBackend interface {
	GetProfile(ctx context.Context, readerID string) (*model.ReaderProfile, error)
	UpsertProfile(ctx context.Context, profile model.ReaderProfile) (*model.ReaderProfile, error)
	Gaps(ctx context.Context, readerID string) ([]model.GapSummaryItem, error)
	RecommendationsExplain(ctx context.Context, readerID string, topN int) ([]model.ExplainedRecommendation, error)
	ProfileMeta(ctx context.Context, readerID string) (*model.ProfileMeta, error)
	ProfileHistory(ctx context.Context, readerID string, limit int) ([]model.ProfileEvent, error)
	AnalyzeText(ctx context.Context, req model.AnalyzeTextRequest) (*model.AnalyzeTextResponse, error)
}

// dashboardLimits differ between the student's own page and a parent's view
type dashboardLimits struct {
	deficits        int
	strengths       int
	recommendations int
	createProfile   bool
	meta            bool
}

var (
	studentLimits = dashboardLimits{deficits: 5, strengths: 3, recommendations: 5, createProfile: true, meta: true}
	parentLimits  = dashboardLimits{deficits: 8, strengths: 6, recommendations: 7}
)

const topConceptCount = 10

type DashboardService struct {
	backend      DashboardBackend
	recent       cache.RecentChildrenCache
	profiles     cache.ProfileCache
	broadcaster  Broadcaster
	historyLimit int
	log          zerolog.Logger
}

func NewDashboardService(backend DashboardBackend, recent cache.RecentChildrenCache, profiles cache.ProfileCache, historyLimit int) *DashboardService {
	return &DashboardService{
		backend:      backend,
		recent:       recent,
		profiles:     profiles,
		broadcaster:  noopBroadcaster{},
		historyLimit: historyLimit,
		log:          logging.Component("dashboard"),
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *DashboardService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Student builds the reader's own dashboard, creating an empty profile on first visit
func (s *DashboardService) Student(ctx context.Context, user model.User, withHistory bool) *model.DashboardView {
	return s.build(ctx, user.Email, studentLimits, withHistory)
}

// Parent builds a child's dashboard and remembers the child for the parent
func (s *DashboardService) Parent(ctx context.Context, user model.User, childEmail string) (*model.DashboardView, error) {
	child := strings.ToLower(strings.TrimSpace(childEmail))
	if err := validation.Var(child, "required,email"); err != nil {
		return nil, ErrInvalidReader
	}
	if err := s.recent.Touch(ctx, user.Email, child); err != nil {
		s.log.Warn().Err(err).Str("parent", user.Email).Msg("failed to remember child")
	}
	return s.build(ctx, child, parentLimits, true), nil
}

func (s *DashboardService) RecentChildren(ctx context.Context, user model.User) (*model.RecentChildren, error) {
	children, err := s.recent.List(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []string{}
	}
	return &model.RecentChildren{Children: children}, nil
}

// AnalyzeText sends an essay for concept extraction and publishes the new profile
func (s *DashboardService) AnalyzeText(ctx context.Context, user model.User, text string) (*model.AnalyzeTextResponse, error) {
	body := strings.TrimSpace(text)
	if utf8.RuneCountInString(body) < MinTextLength {
		return nil, ErrTextTooShort
	}

	resp, err := s.backend.AnalyzeText(ctx, model.AnalyzeTextRequest{ReaderID: user.Email, Text: body})
	if err != nil {
		return nil, err
	}

	if resp.Profile.ID != "" {
		profile := resp.Profile
		if err := s.profiles.Set(ctx, &profile); err != nil {
			s.log.Warn().Err(err).Str("reader", user.Email).Msg("failed to cache profile")
		}
		s.broadcaster.BroadcastToReader(user.Email, MsgProfileUpdated, ProfileUpdate{
			ReaderID: user.Email,
			Source:   string(model.EventText),
			Profile:  &profile,
		})
	}
	s.log.Info().Str("reader", user.Email).Int("chars", utf8.RuneCountInString(body)).Msg("text analysed")
	return resp, nil
}

func (s *DashboardService) build(ctx context.Context, readerID string, limits dashboardLimits, withHistory bool) *model.DashboardView {
	view := &model.DashboardView{
		ReaderID:        readerID,
		AgeGroup:        model.DefaultAgeGroup,
		TopConcepts:     []model.ConceptScore{},
		Deficits:        []model.GapSummaryItem{},
		Strengths:       []model.GapSummaryItem{},
		Recommendations: []model.ExplainedRecommendation{},
	}
	var mu sync.Mutex
	fail := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if view.Errors == nil {
			view.Errors = make(map[string]string)
		}
		view.Errors[section] = err.Error()
		s.log.Warn().Err(err).Str("reader", readerID).Str("section", section).Msg("dashboard section failed")
	}

	// The profile goes first: on a first visit the remaining sections need it to exist
	if p, err := s.loadProfile(ctx, readerID, limits.createProfile); err != nil {
		fail(model.SectionProfile, err)
	} else {
		view.Profile = p
		if p.Age != "" {
			view.AgeGroup = p.Age
		}
		view.TopConcepts = TopConcepts(p.Concepts, topConceptCount)
	}

	// Sections never fail the group, so every one of them gets to run
	var g errgroup.Group
	g.Go(func() error {
		gaps, err := s.backend.Gaps(ctx, readerID)
		if err != nil {
			fail(model.SectionGaps, err)
			return nil
		}
		deficits, strengths := SplitGaps(gaps, limits.deficits, limits.strengths)
		mu.Lock()
		view.Deficits, view.Strengths = deficits, strengths
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		recs, err := s.backend.RecommendationsExplain(ctx, readerID, limits.recommendations)
		if err != nil {
			fail(model.SectionRecommendations, err)
			return nil
		}
		if recs == nil {
			recs = []model.ExplainedRecommendation{}
		}
		best := MaxScore(recs)
		for i := range recs {
			recs[i].MatchPercent = MatchPercent(recs[i].Why.Score, best)
		}
		mu.Lock()
		view.Recommendations = recs
		view.MaxScore = best
		mu.Unlock()
		return nil
	})
	if limits.meta {
		g.Go(func() error {
			meta, err := s.backend.ProfileMeta(ctx, readerID)
			if err != nil {
				fail(model.SectionMeta, err)
				return nil
			}
			mu.Lock()
			view.Meta = meta
			mu.Unlock()
			return nil
		})
	}
	if withHistory {
		g.Go(func() error {
			events, err := s.backend.ProfileHistory(ctx, readerID, s.historyLimit)
			if err != nil {
				fail(model.SectionHistory, err)
				return nil
			}
			SortHistory(events)
			if events == nil {
				events = []model.ProfileEvent{}
			}
			mu.Lock()
			view.History = events
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return view
}

func (s *DashboardService) loadProfile(ctx context.Context, readerID string, create bool) (*model.ReaderProfile, error) {
	p, err := s.backend.GetProfile(ctx, readerID)
	if err == nil || !create {
		return p, err
	}
	s.log.Info().Str("reader", readerID).Msg("creating empty profile")
	return s.backend.UpsertProfile(ctx, model.ReaderProfile{
		ID:       readerID,
		Age:      model.DefaultAgeGroup,
		Concepts: model.ConceptVector{},
	})
}

// TopConcepts returns the n strongest finite concepts, strongest first
func TopConcepts(concepts model.ConceptVector, n int) []model.ConceptScore {
	out := make([]model.ConceptScore, 0, len(concepts))
	for k, v := range concepts {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, model.ConceptScore{Concept: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Concept < out[j].Concept
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SplitGaps keeps backend order: deficits are below target with a positive gap,
// strengths above target with a negative one.
func SplitGaps(gaps []model.GapSummaryItem, maxDeficits, maxStrengths int) (deficits, strengths []model.GapSummaryItem) {
	deficits = []model.GapSummaryItem{}
	strengths = []model.GapSummaryItem{}
	for _, g := range gaps {
		switch {
		case g.Direction == model.GapBelow && g.Gap > 0 && len(deficits) < maxDeficits:
			deficits = append(deficits, g)
		case g.Direction == model.GapAbove && g.Gap < 0 && len(strengths) < maxStrengths:
			strengths = append(strengths, g)
		}
	}
	return deficits, strengths
}

// MaxScore is the best positive recommendation score, or 0
func MaxScore(recs []model.ExplainedRecommendation) float64 {
	best := 0.0
	for _, r := range recs {
		if r.Why.Score > best && !math.IsInf(r.Why.Score, 0) {
			best = r.Why.Score
		}
	}
	return best
}

// MatchPercent scales a score against the best one to 0..100
func MatchPercent(score, maxScore float64) int {
	if math.IsNaN(score) || math.IsInf(score, 0) || score <= 0 || maxScore <= 0 {
		return 0
	}
	return int(math.Round(score / maxScore * 100))
}

// SortHistory orders events newest first by their timestamp string
func SortHistory(events []model.ProfileEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt > events[j].CreatedAt
	})
}
