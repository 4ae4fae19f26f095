package status

import (
	"testing"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

func TestExamStatus(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name    string
		exam    model.Exam
		want    model.ExamStatus
		canTake bool
	}{
		{"unpublished", model.Exam{}, model.ExamDraft, false},
		{"unpublished past expiry", model.Exam{ExpiresAt: &past}, model.ExamDraft, false},
		{"published no expiry", model.Exam{Published: true}, model.ExamActive, true},
		{"published future expiry", model.Exam{Published: true, ExpiresAt: &future}, model.ExamActive, true},
		{"published expires now", model.Exam{Published: true, ExpiresAt: &now}, model.ExamActive, true},
		{"published expired", model.Exam{Published: true, ExpiresAt: &past, VariationCount: 50}, model.ExamExpired, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExamStatus(tt.exam, now); got != tt.want {
				t.Errorf("ExamStatus() = %q, want %q", got, tt.want)
			}
			if got := CanTakeExam(tt.exam, now); got != tt.canTake {
				t.Errorf("CanTakeExam() = %v, want %v", got, tt.canTake)
			}
		})
	}
}

func TestIsPassing(t *testing.T) {
	exam := model.Exam{PassingScore: 6}
	score := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		sub  model.Submission
		want bool
	}{
		{"ungraded", model.Submission{Status: model.StatusSubmitted}, false},
		{"submitted with stray score", model.Submission{Status: model.StatusSubmitted, Score: score(9)}, false},
		{"below", model.Submission{Status: model.StatusGraded, Score: score(5.99)}, false},
		{"exactly at threshold", model.Submission{Status: model.StatusGraded, Score: score(6)}, true},
		{"reviewed above", model.Submission{Status: model.StatusReviewed, Score: score(8.5)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPassing(tt.sub, exam); got != tt.want {
				t.Errorf("IsPassing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	all := model.SubmissionStatuses
	allowed := map[[2]model.SubmissionStatus]bool{
		{model.StatusSubmitted, model.StatusGraded}:  true,
		{model.StatusGraded, model.StatusReviewed}:   true,
		{model.StatusReviewed, model.StatusReviewed}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]model.SubmissionStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransition("bogus", model.StatusGraded) {
		t.Error("unknown status must not transition")
	}
}
