package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/status"
)

// ExportExam builds export-ready results for every graded or reviewed
// submission of an exam.
func (s *Store) ExportExam(ctx context.Context, examID int64) (model.ExamExport, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return model.ExamExport{}, err
	}
	subs, err := s.ListSubmissions(ctx, examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list submissions: %w", err)
	}

	out := model.ExamExport{
		ExamID:       exam.ID,
		Title:        exam.Title,
		PassingScore: exam.PassingScore,
		NumQuestions: exam.TotalQuestions,
		ExportedAt:   time.Now().UTC(),
		Results:      []model.StudentResult{},
	}

	// Track submission count per student for submission_number.
	perStudent := make(map[int64]int)
	variations := make(map[string]model.Variation)

	for _, sub := range subs {
		perStudent[sub.StudentID]++
		if sub.Status == model.StatusSubmitted {
			continue
		}

		v, ok := variations[sub.VariationID]
		if !ok {
			if v, err = s.GetVariation(ctx, sub.VariationID); err != nil {
				return model.ExamExport{}, fmt.Errorf("get variation %s: %w", sub.VariationID, err)
			}
			variations[sub.VariationID] = v
		}

		user, err := s.GetUserByID(ctx, sub.StudentID)
		if err != nil {
			return model.ExamExport{}, fmt.Errorf("get user %d: %w", sub.StudentID, err)
		}
		var username, displayName string
		if user != nil {
			username = user.Username
			displayName = user.DisplayName
		}

		questions := make([]model.QuestionResult, len(v.Questions))
		for i, q := range v.Questions {
			qr := model.QuestionResult{
				Position:     i,
				QuestionID:   q.QuestionID,
				Text:         q.Text,
				Type:         q.Type,
				Difficulty:   q.Difficulty,
				Points:       q.Points,
				Alternatives: q.Alternatives,
			}
			if q.Type == model.QuestionMultipleChoice {
				ci := q.CorrectIndex
				qr.CorrectIndex = &ci
			}
			if i < len(sub.Answers) {
				qr.Answer = sub.Answers[i]
			}
			questions[i] = qr
		}

		out.Results = append(out.Results, model.StudentResult{
			Username:         username,
			DisplayName:      displayName,
			SubmissionNumber: perStudent[sub.StudentID],
			VariationID:      sub.VariationID,
			Status:           sub.Status,
			SubmittedAt:      sub.SubmittedAt,
			Score:            sub.Score,
			CorrectCount:     sub.CorrectCount,
			Percentage:       sub.Percentage,
			Passing:          status.IsPassing(sub, exam),
			Questions:        questions,
		})
	}
	return out, nil
}
