package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kkogteva6/ReadingPlatform/internal/cache"
	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/metrics"
	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/questionnaire"
	"github.com/kkogteva6/ReadingPlatform/internal/repository"
)

var (
	ErrSessionNotFound      = errors.New("questionnaire session not found")
	ErrForbidden            = errors.New("access denied")
	ErrSubmissionInProgress = errors.New("questionnaire submission already in progress")
	ErrSessionBusy          = errors.New("questionnaire is being updated, try again")
)

const attemptListLimit = 20

// ProfileGateway is the part of the backend the questionnaire needs
type ProfileGateway interface {
	GetProfile(ctx context.Context, readerID string) (*model.ReaderProfile, error)
	ApplyTest(ctx context.Context, req model.ApplyTestRequest) (*model.ReaderProfile, error)
}

// globalShuffler uses the auto-seeded math/rand/v2 source
type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

type QuestionnaireOptions struct {
	ConsentDefault bool
}

// QuestionnaireService runs wizard sessions on top of the response collector.
// Each call loads the session from Redis, applies one transition and saves it.
type QuestionnaireService struct {
	bank        *questionnaire.Bank
	sessions    cache.QuestionnaireCache
	profiles    cache.ProfileCache
	attempts    repository.AttemptRepo
	gateway     ProfileGateway
	broadcaster Broadcaster
	opts        QuestionnaireOptions

	shuffler func() questionnaire.Shuffler
	now      func() time.Time
	log      zerolog.Logger
}

func NewQuestionnaireService(
	bank *questionnaire.Bank,
	sessions cache.QuestionnaireCache,
	profiles cache.ProfileCache,
	attempts repository.AttemptRepo,
	gateway ProfileGateway,
	opts QuestionnaireOptions,
) *QuestionnaireService {
	return &QuestionnaireService{
		bank:        bank,
		sessions:    sessions,
		profiles:    profiles,
		attempts:    attempts,
		gateway:     gateway,
		broadcaster: noopBroadcaster{},
		opts:        opts,
		shuffler:    func() questionnaire.Shuffler { return globalShuffler{} },
		now:         time.Now,
		log:         logging.Component("questionnaire"),
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *QuestionnaireService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Start resumes the reader's live session, or creates one with a fresh order
func (s *QuestionnaireService) Start(ctx context.Context, user model.User) (*model.QuestionnaireView, error) {
	id, err := s.sessions.Current(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up current session: %w", err)
	}
	if id != "" {
		sess, err := s.sessions.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess != nil && sess.Status == model.QuestionnaireActive {
			c, err := questionnaire.Restore(s.bank, sess.State)
			if err == nil {
				return buildView(sess, c), nil
			}
			s.log.Warn().Err(err).Str("session", id).Msg("discarding unreadable session")
		}
	}
	return s.create(ctx, user)
}

// Restart discards the current session and shuffles a new order.
// A session locked by another request is reported as busy.
func (s *QuestionnaireService) Restart(ctx context.Context, user model.User) (*model.QuestionnaireView, error) {
	id, err := s.sessions.Current(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up current session: %w", err)
	}
	if id == "" {
		return s.create(ctx, user)
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(release, id)

	if err := s.sessions.Delete(ctx, id); err != nil {
		return nil, err
	}
	return s.create(ctx, user)
}

func (s *QuestionnaireService) create(ctx context.Context, user model.User) (*model.QuestionnaireView, error) {
	age := model.DefaultAgeGroup
	if p, err := s.gateway.GetProfile(ctx, user.Email); err == nil && p.Age != "" {
		age = p.Age
	} else if err != nil {
		s.log.Debug().Err(err).Str("reader", user.Email).Msg("no profile yet, using default age group")
	}

	order := questionnaire.BuildOrder(s.bank, s.shuffler())
	c := questionnaire.NewCollector(order, s.opts.ConsentDefault)

	now := s.now().UTC()
	sess := &model.QuestionnaireSession{
		ID:        uuid.NewString(),
		ReaderID:  user.Email,
		AgeGroup:  age,
		Status:    model.QuestionnaireActive,
		State:     c.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.sessions.SetCurrent(ctx, user.Email, sess.ID); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.QuestionnaireSessionsStarted.Inc()
	s.log.Info().Str("reader", user.Email).Str("session", sess.ID).Int("attention_at", order.AttentionIndex()).Msg("questionnaire started")
	return buildView(sess, c), nil
}

// Get returns the current view without changing anything
func (s *QuestionnaireService) Get(ctx context.Context, user model.User, sessionID string) (*model.QuestionnaireView, error) {
	sess, c, err := s.load(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	return buildView(sess, c), nil
}

func (s *QuestionnaireService) Answer(ctx context.Context, user model.User, sessionID string, value int) (*model.QuestionnaireView, error) {
	return s.mutate(ctx, user, sessionID, func(c *questionnaire.Collector) error {
		return c.RecordAnswer(value)
	})
}

func (s *QuestionnaireService) Next(ctx context.Context, user model.User, sessionID string) (*model.QuestionnaireView, error) {
	return s.mutate(ctx, user, sessionID, func(c *questionnaire.Collector) error {
		return c.Advance()
	})
}

func (s *QuestionnaireService) Prev(ctx context.Context, user model.User, sessionID string) (*model.QuestionnaireView, error) {
	return s.mutate(ctx, user, sessionID, func(c *questionnaire.Collector) error {
		if c.Completed() {
			return questionnaire.ErrCompleted
		}
		c.Retreat()
		return nil
	})
}

func (s *QuestionnaireService) SetConsent(ctx context.Context, user model.User, sessionID string, consent bool) (*model.QuestionnaireView, error) {
	return s.mutate(ctx, user, sessionID, func(c *questionnaire.Collector) error {
		if c.Completed() {
			return questionnaire.ErrCompleted
		}
		c.SetConsent(consent)
		return nil
	})
}

// Submit validates the answers, sends the concept vector to the backend once
// and closes the session. A backend failure leaves the session as it was.
func (s *QuestionnaireService) Submit(ctx context.Context, user model.User, sessionID string) (*model.SubmitResult, error) {
	release, err := s.lock(ctx, sessionID)
	if errors.Is(err, ErrSessionBusy) {
		metrics.RecordSubmission(metrics.OutcomeConflict)
		return nil, ErrSubmissionInProgress
	}
	if err != nil {
		return nil, err
	}
	defer s.unlock(release, sessionID)

	sess, c, err := s.load(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}

	// The attempt record outlives a lost session save
	prior, err := s.attempts.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up attempt: %w", err)
	}
	if prior != nil {
		metrics.RecordSubmission(metrics.OutcomeRejected)
		if sess.Status != model.QuestionnaireCompleted {
			s.log.Warn().Str("session", sessionID).Msg("session already submitted, closing it")
			s.close(ctx, sess, prior.SubmittedAt)
		}
		return nil, questionnaire.ErrCompleted
	}

	var profile *model.ReaderProfile
	submitter := questionnaire.SubmitterFunc(func(ctx context.Context, concepts model.ConceptVector) error {
		p, err := s.gateway.ApplyTest(ctx, model.ApplyTestRequest{
			ReaderID:     sess.ReaderID,
			Age:          sess.AgeGroup,
			TestConcepts: concepts,
		})
		if err != nil {
			return err
		}
		profile = p
		return nil
	})

	res, err := c.Submit(ctx, submitter)
	if err != nil {
		var subErr *questionnaire.SubmissionError
		if errors.As(err, &subErr) {
			metrics.RecordSubmission(metrics.OutcomeBackendErr)
			s.log.Error().Err(err).Str("session", sessionID).Msg("backend rejected questionnaire")
		} else {
			metrics.RecordSubmission(metrics.OutcomeRejected)
		}
		return nil, err
	}

	now := s.now().UTC()
	sess.State = c.Snapshot()
	s.recordAttempt(ctx, sess, res, now)
	s.close(ctx, sess, now)

	if profile != nil {
		if err := s.profiles.Set(ctx, profile); err != nil {
			s.log.Warn().Err(err).Str("reader", sess.ReaderID).Msg("failed to cache profile")
		}
		s.broadcaster.BroadcastToReader(sess.ReaderID, MsgProfileUpdated, ProfileUpdate{
			ReaderID: sess.ReaderID,
			Source:   string(model.EventTest),
			Profile:  profile,
		})
	}

	metrics.RecordSubmission(metrics.OutcomeSuccess)
	metrics.QuestionnaireSDPenalty.Observe(res.Penalty)
	s.log.Info().
		Str("reader", sess.ReaderID).
		Str("session", sessionID).
		Float64("sd_mean", res.SDMean).
		Float64("penalty", res.Penalty).
		Msg("questionnaire submitted")

	return &model.SubmitResult{
		View:     buildView(sess, c),
		Concepts: res.Concepts,
		Profile:  profile,
	}, nil
}

// close marks the session completed and drops it as the reader's current one.
// Both writes are best effort once the backend has accepted the test.
func (s *QuestionnaireService) close(ctx context.Context, sess *model.QuestionnaireSession, at time.Time) {
	sess.Status = model.QuestionnaireCompleted
	sess.UpdatedAt = at
	sess.CompletedAt = &at
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.log.Error().Err(err).Str("session", sess.ID).Msg("failed to save completed session")
	}
	if err := s.sessions.ClearCurrent(ctx, sess.ReaderID, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("reader", sess.ReaderID).Msg("failed to clear current session")
	}
}

// Attempts lists the reader's accepted questionnaires, newest first
func (s *QuestionnaireService) Attempts(ctx context.Context, user model.User) ([]*model.QuestionnaireAttempt, error) {
	attempts, err := s.attempts.ListByReader(ctx, user.Email, attemptListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []*model.QuestionnaireAttempt{}
	}
	return attempts, nil
}

// recordAttempt is best effort: the backend already accepted the test
func (s *QuestionnaireService) recordAttempt(ctx context.Context, sess *model.QuestionnaireSession, res questionnaire.Result, at time.Time) {
	means := make(map[string]float64, len(res.Means))
	for scale, m := range res.Means {
		means[string(scale)] = m
	}
	attempt := &model.QuestionnaireAttempt{
		SessionID:   sess.ID,
		ReaderID:    sess.ReaderID,
		AgeGroup:    sess.AgeGroup,
		Answers:     sess.State.Answers,
		ScaleMeans:  means,
		SDMean:      res.SDMean,
		Penalty:     res.Penalty,
		Concepts:    res.Concepts,
		SubmittedAt: at,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.log.Error().Err(err).Str("session", sess.ID).Msg("failed to store questionnaire attempt")
	}
}

func (s *QuestionnaireService) mutate(ctx context.Context, user model.User, sessionID string, apply func(*questionnaire.Collector) error) (*model.QuestionnaireView, error) {
	release, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer s.unlock(release, sessionID)

	sess, c, err := s.load(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.QuestionnaireCompleted {
		return nil, questionnaire.ErrCompleted
	}
	if err := apply(c); err != nil {
		return nil, err
	}

	sess.State = c.Snapshot()
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.sessions.RefreshCurrent(ctx, sess.ReaderID, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("reader", sess.ReaderID).Msg("failed to refresh current session")
	}
	return buildView(sess, c), nil
}

func (s *QuestionnaireService) load(ctx context.Context, user model.User, sessionID string) (*model.QuestionnaireSession, *questionnaire.Collector, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, nil, ErrSessionNotFound
	}
	if sess.ReaderID != user.Email {
		return nil, nil, ErrForbidden
	}
	c, err := questionnaire.Restore(s.bank, sess.State)
	if err != nil {
		return nil, nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return sess, c, nil
}

func (s *QuestionnaireService) lock(ctx context.Context, sessionID string) (func(context.Context) error, error) {
	release, err := s.sessions.AcquireLock(ctx, sessionID, uuid.NewString())
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, ErrSessionBusy
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	return release, nil
}

// unlock runs detached from the request so a cancelled client still frees the lock
func (s *QuestionnaireService) unlock(release func(context.Context) error, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("failed to release session lock")
	}
}

func buildView(sess *model.QuestionnaireSession, c *questionnaire.Collector) *model.QuestionnaireView {
	q := c.Current()
	answer, _ := c.Answer(q.ID)
	status := sess.Status
	if c.Completed() {
		status = model.QuestionnaireCompleted
	}
	return &model.QuestionnaireView{
		SessionID: sess.ID,
		Status:    status,
		AgeGroup:  sess.AgeGroup,
		Step:      c.Step(),
		Total:     c.Total(),
		Progress:  c.Progress(),
		Answered:  c.Answered(),
		Question:  q.View(),
		Answer:    answer,
		Consent:   c.Consent(),
		IsFirst:   c.IsFirst(),
		IsLast:    c.IsLast(),
	}
}
