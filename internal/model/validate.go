package model

import (
	"math"
	"strings"
	"time"
)

const (
	minAlternatives   = 2
	maxAlternatives   = 5
	maxVariationCount = 50
	maxScore          = 10
)

// NewQuestion validates q and returns a normalized copy.
// Essay questions lose any alternatives and correct index. New questions
// start active with zeroed usage counters.
func NewQuestion(q Question) (Question, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Question{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if q.SubjectID <= 0 {
		return Question{}, &ValidationError{Field: "subject_id", Reason: "must reference a subject"}
	}
	if !q.Difficulty.Valid() {
		return Question{}, &ValidationError{Field: "difficulty", Reason: "must be easy, medium or hard"}
	}
	if !(q.Points > 0) || math.IsInf(q.Points, 0) {
		return Question{}, &ValidationError{Field: "points", Reason: "must be positive"}
	}

	switch q.Type {
	case QuestionEssay:
		q.Alternatives = nil
		q.CorrectIndex = 0
	case QuestionMultipleChoice:
		n := len(q.Alternatives)
		if n < minAlternatives || n > maxAlternatives {
			return Question{}, &ValidationError{Field: "alternatives", Reason: "multiple choice needs 2 to 5 alternatives"}
		}
		for _, a := range q.Alternatives {
			if strings.TrimSpace(a) == "" {
				return Question{}, &ValidationError{Field: "alternatives", Reason: "alternatives must not be empty"}
			}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= n {
			return Question{}, &ValidationError{Field: "correct_index", Reason: "out of range"}
		}
		q.Alternatives = append([]string(nil), q.Alternatives...)
	default:
		return Question{}, &ValidationError{Field: "type", Reason: "must be multiple_choice or essay"}
	}

	q.Active = true
	q.TimesUsed = 0
	q.TimesCorrect = 0
	return q, nil
}

// ValidateDistribution checks that d has no negative tier and adds up to total.
func ValidateDistribution(d Distribution, total int) error {
	if d.Easy < 0 || d.Medium < 0 || d.Hard < 0 || total < 0 || d.Total() != total {
		return &InvalidDistributionError{Distribution: d, Total: total}
	}
	return nil
}

// NewExam validates e against the creation-time rules and returns it unpublished.
func NewExam(e Exam, now time.Time) (Exam, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return Exam{}, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(e.SubjectIDs) == 0 {
		return Exam{}, &ValidationError{Field: "subject_ids", Reason: "at least one subject is required"}
	}
	if e.TotalQuestions <= 0 {
		return Exam{}, &ValidationError{Field: "total_questions", Reason: "must be positive"}
	}
	if err := ValidateDistribution(e.Distribution, e.TotalQuestions); err != nil {
		return Exam{}, err
	}
	if e.VariationCount < 1 || e.VariationCount > maxVariationCount {
		return Exam{}, &ValidationError{Field: "variation_count", Reason: "must be between 1 and 50"}
	}
	if e.PassingScore < 0 || e.PassingScore > maxScore || math.IsNaN(e.PassingScore) {
		return Exam{}, &ValidationError{Field: "passing_score", Reason: "must be between 0 and 10"}
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
		return Exam{}, &ValidationError{Field: "expires_at", Reason: "must be in the future"}
	}

	e.SubjectIDs = dedupIDs(e.SubjectIDs)
	e.Published = false
	e.Generation = 0
	return e, nil
}

// ValidScore reports whether s is on the 0..10 scale.
func ValidScore(s float64) bool {
	return s >= 0 && s <= maxScore
}

func dedupIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
