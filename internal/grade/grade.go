// Package grade scores submitted answers against a variation's answer key.
package grade

import (
	"math"

	"github.com/pavelanni/examgen/internal/model"
)

// Grade scores answers against v. answers is indexed by presentation
// position and may be shorter than v.Questions; missing positions are
// unanswered. Grade is deterministic and has no side effects.
func Grade(v model.Variation, answers []model.Answer) (model.GradeResult, error) {
	if len(answers) > len(v.Questions) {
		return model.GradeResult{}, &model.InvalidAnswerShapeError{
			Position: -1,
			Reason:   "more answers than questions",
		}
	}

	res := model.GradeResult{
		TotalQuestions: len(v.Questions),
		TotalPoints:    v.TotalPoints(),
		Items:          make([]model.ItemResult, len(v.Questions)),
	}
	for i, q := range v.Questions {
		var a model.Answer
		if i < len(answers) {
			a = answers[i]
		}
		item := model.ItemResult{
			Position:   i,
			QuestionID: q.QuestionID,
			Answered:   a.Answered(),
			Points:     q.Points,
		}
		switch q.Type {
		case model.QuestionMultipleChoice:
			if a.Choice != nil && *a.Choice == q.CorrectIndex {
				item.Correct = true
				item.Earned = q.Points
			}
		default:
			item.Manual = true
		}

		res.EarnedPoints += item.Earned
		if item.Correct {
			res.CorrectCount++
		}
		res.Items[i] = item
	}

	if res.TotalPoints > 0 {
		res.Score = Round(res.EarnedPoints/res.TotalPoints*10, 2)
		res.Percentage = Round(res.EarnedPoints/res.TotalPoints*100, 1)
	}
	return res, nil
}

// Round rounds x to the given number of decimal places, halves away from zero.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	// One ulp outward so 1.005*100 (stored as 100.49999...) still rounds up.
	scaled := x * p
	if scaled >= 0 {
		scaled = math.Nextafter(scaled, math.Inf(1))
	} else {
		scaled = math.Nextafter(scaled, math.Inf(-1))
	}
	return math.Round(scaled) / p
}
