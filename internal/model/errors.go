package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrQuestionInUse is returned when deleting a question referenced by a variation.
	ErrQuestionInUse = errors.New("question is used by a variation")
	// ErrExamNotAvailable is returned when an exam cannot be taken at the given time.
	ErrExamNotAvailable = errors.New("exam is not available")
	// ErrInvalidTransition is returned for a submission status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid submission status transition")
	// ErrConcurrentRegeneration is returned when another regeneration of the same exam won.
	ErrConcurrentRegeneration = errors.New("variations were regenerated concurrently")
)

// ValidationError reports an invalid field value at construction time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidDistributionError reports a distribution whose tiers do not add up
// to the exam total or that contains a negative count.
type InvalidDistributionError struct {
	Distribution Distribution
	Total        int
}

func (e *InvalidDistributionError) Error() string {
	d := e.Distribution
	return fmt.Sprintf("invalid distribution easy=%d medium=%d hard=%d for total %d", d.Easy, d.Medium, d.Hard, e.Total)
}

// InsufficientQuestionsError reports a tier whose eligible pool is smaller
// than the requested count.
type InsufficientQuestionsError struct {
	Difficulty Difficulty
	Requested  int
	Available  int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("insufficient %s questions: requested %d, available %d", e.Difficulty, e.Requested, e.Available)
}

// AlreadyGradedError is returned when grading a submission that left the submitted state.
type AlreadyGradedError struct {
	SubmissionID int64
	Status       SubmissionStatus
}

func (e *AlreadyGradedError) Error() string {
	return fmt.Sprintf("submission %d already %s", e.SubmissionID, e.Status)
}

// InvalidAnswerShapeError reports a malformed raw answer set.
// Position is -1 when the problem is not tied to a single position.
type InvalidAnswerShapeError struct {
	Position int
	Reason   string
}

func (e *InvalidAnswerShapeError) Error() string {
	if e.Position < 0 {
		return "invalid answer shape: " + e.Reason
	}
	return fmt.Sprintf("invalid answer shape at position %d: %s", e.Position, e.Reason)
}
