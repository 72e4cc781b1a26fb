package questionnaire

import (
	"errors"
	"fmt"
)

// ValidationError is raised by the collector when a transition is not allowed.
// It is always recoverable by correcting the input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is matches validation errors by reason so errors.Is works against the sentinels below.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

var (
	ErrAnswerRequired  = &ValidationError{Reason: "answer required"}
	ErrConsentRequired = &ValidationError{Reason: "consent required"}
	ErrIncomplete      = &ValidationError{Reason: "incomplete"}
	ErrAttentionFailed = &ValidationError{Reason: "attention check failed"}
	ErrNotFinalStep    = &ValidationError{Reason: "not at final question"}
	ErrInvalidAnswer   = &ValidationError{Reason: "answer must be between 1 and 5"}
	ErrCompleted       = &ValidationError{Reason: "questionnaire already submitted"}
)

// SubmissionError wraps a failure of the submission gateway. Answers are kept so
// the same submission can be retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidBank  = errors.New("invalid question bank")
	ErrUnknownItem  = errors.New("unknown question item")
	ErrInvalidState = errors.New("invalid questionnaire state")
)
