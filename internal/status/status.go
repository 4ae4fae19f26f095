// Package status derives exam lifecycle state and pass/fail outcomes.
package status

import (
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

// ExamStatus returns draft for unpublished exams, expired once ExpiresAt is
// strictly before now, and active otherwise.
func ExamStatus(e model.Exam, now time.Time) model.ExamStatus {
	if !e.Published {
		return model.ExamDraft
	}
	if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
		return model.ExamExpired
	}
	return model.ExamActive
}

// CanTakeExam reports whether students may submit to e at now.
// Attempt limits and access codes are checked by the intake layer.
func CanTakeExam(e model.Exam, now time.Time) bool {
	return ExamStatus(e, now) == model.ExamActive
}

// IsPassing reports whether s reached e's passing score. Ungraded
// submissions never pass.
func IsPassing(s model.Submission, e model.Exam) bool {
	if s.Score == nil || s.Status == model.StatusSubmitted {
		return false
	}
	return *s.Score >= e.PassingScore
}

// CanTransition reports whether a submission may move from one status to
// another. Nothing returns to submitted; reviewed may be reviewed again.
func CanTransition(from, to model.SubmissionStatus) bool {
	switch from {
	case model.StatusSubmitted:
		return to == model.StatusGraded
	case model.StatusGraded:
		return to == model.StatusReviewed
	case model.StatusReviewed:
		return to == model.StatusReviewed
	}
	return false
}
