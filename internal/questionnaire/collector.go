package questionnaire

import (
	"context"
	"fmt"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

// Submitter sends a finished concept vector to the backend
type Submitter interface {
	SubmitConcepts(ctx context.Context, concepts model.ConceptVector) error
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, concepts model.ConceptVector) error

func (f SubmitterFunc) SubmitConcepts(ctx context.Context, concepts model.ConceptVector) error {
	return f(ctx, concepts)
}

// Collector walks one reader through a fixed presentation order.
//
// The step always stays in [0, total-1]; an answer is only ever stored as a value
// in the Likert range; completed is set exclusively by a successful Submit.
type Collector struct {
	order     Order
	answers   Answers
	step      int
	consent   bool
	completed bool
}

// NewCollector starts at the first item with no answers
func NewCollector(order Order, consent bool) *Collector {
	return &Collector{
		order:   order,
		answers: make(Answers, len(order)),
		consent: consent,
	}
}

// Restore rebuilds a collector from a persisted snapshot
func Restore(bank *Bank, s model.WizardState) (*Collector, error) {
	order, err := OrderFromIDs(bank, s.Order)
	if err != nil {
		return nil, err
	}
	if s.Step < 0 || s.Step >= len(order) {
		return nil, fmt.Errorf("%w: step %d outside 0..%d", ErrInvalidState, s.Step, len(order)-1)
	}

	answers := make(Answers, len(s.Answers))
	for id, v := range s.Answers {
		if _, ok := bank.Item(id); !ok {
			return nil, fmt.Errorf("%w: answer for %q", ErrUnknownItem, id)
		}
		if v < LikertMin || v > LikertMax {
			return nil, fmt.Errorf("%w: answer %d for %q", ErrInvalidState, v, id)
		}
		answers[id] = v
	}

	return &Collector{
		order:     order,
		answers:   answers,
		step:      s.Step,
		consent:   s.Consent,
		completed: s.Completed,
	}, nil
}

// Snapshot returns a persistable copy of the state
func (c *Collector) Snapshot() model.WizardState {
	answers := make(map[string]int, len(c.answers))
	for id, v := range c.answers {
		answers[id] = v
	}
	return model.WizardState{
		Order:     c.order.IDs(),
		Answers:   answers,
		Step:      c.step,
		Consent:   c.consent,
		Completed: c.completed,
	}
}

func (c *Collector) Order() Order {
	return c.order
}

func (c *Collector) Current() model.QuestionItem {
	return c.order[c.step]
}

func (c *Collector) Step() int {
	return c.step
}

func (c *Collector) Total() int {
	return len(c.order)
}

func (c *Collector) Answered() int {
	return len(c.answers)
}

func (c *Collector) Consent() bool {
	return c.consent
}

func (c *Collector) Completed() bool {
	return c.completed
}

func (c *Collector) IsFirst() bool {
	return c.step == 0
}

func (c *Collector) IsLast() bool {
	return c.step == len(c.order)-1
}

// Answer returns the recorded value for an item id, if any
func (c *Collector) Answer(id string) (int, bool) {
	v, ok := c.answers[id]
	return v, ok
}

// Progress is round(step/(total-1)*100), 0 for a single-item order
func (c *Collector) Progress() int {
	if len(c.order) <= 1 {
		return 0
	}
	return int(float64(c.step)/float64(len(c.order)-1)*100 + 0.5)
}

// RecordAnswer stores v for the current item, overwriting a previous answer
func (c *Collector) RecordAnswer(v int) error {
	if c.completed {
		return ErrCompleted
	}
	if v < LikertMin || v > LikertMax {
		return ErrInvalidAnswer
	}
	c.answers[c.Current().ID] = v
	return nil
}

// Advance moves forward one item. The current item must be answered.
func (c *Collector) Advance() error {
	if c.completed {
		return ErrCompleted
	}
	if _, ok := c.answers[c.Current().ID]; !ok {
		return ErrAnswerRequired
	}
	if c.step < len(c.order)-1 {
		c.step++
	}
	return nil
}

// Retreat moves back one item; a no-op on the first item
func (c *Collector) Retreat() {
	if c.step > 0 {
		c.step--
	}
}

func (c *Collector) SetConsent(v bool) {
	c.consent = v
}

// Validate runs the submission gates without aggregating
func (c *Collector) Validate() error {
	if c.completed {
		return ErrCompleted
	}
	if !c.IsLast() {
		return ErrNotFinalStep
	}
	if !c.consent {
		return ErrConsentRequired
	}
	for _, q := range c.order {
		if _, ok := c.answers[q.ID]; !ok {
			return ErrIncomplete
		}
	}
	att := c.order[c.order.AttentionIndex()]
	if c.answers[att.ID] != att.Expected {
		return ErrAttentionFailed
	}
	return nil
}

// Submit aggregates the answers and hands the concept vector to s exactly once.
// On a submitter failure the state is left untouched so the call can be retried.
func (c *Collector) Submit(ctx context.Context, s Submitter) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	res := Aggregate(c.order, c.answers)
	if err := s.SubmitConcepts(ctx, res.Concepts); err != nil {
		return Result{}, &SubmissionError{Err: err}
	}

	c.completed = true
	return res, nil
}
