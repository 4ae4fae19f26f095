package grade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examgen/internal/model"
)

func choice(i int) model.Answer { return model.Answer{Choice: &i} }

func mc(id int64, correct int, points float64) model.VariationQuestion {
	return model.VariationQuestion{
		QuestionID:   id,
		Type:         model.QuestionMultipleChoice,
		Difficulty:   model.DifficultyEasy,
		Points:       points,
		Alternatives: []string{"a", "b", "c", "d"},
		Order:        []int{0, 1, 2, 3},
		CorrectIndex: correct,
	}
}

func essay(id int64, points float64) model.VariationQuestion {
	return model.VariationQuestion{QuestionID: id, Type: model.QuestionEssay, Difficulty: model.DifficultyHard, Points: points}
}

func TestGradeScenarioTwoOfThree(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 1), mc(2, 2, 1), mc(3, 1, 1)}}

	res, err := Grade(v, []model.Answer{choice(0), choice(2), choice(3)})
	require.NoError(t, err)
	assert.Equal(t, 6.67, res.Score)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 3, res.TotalQuestions)
	assert.Equal(t, 66.7, res.Percentage)
	assert.Equal(t, 3.0, res.TotalPoints)
	assert.Equal(t, 2.0, res.EarnedPoints)
	assert.True(t, res.Items[0].Correct)
	assert.False(t, res.Items[2].Correct)
	assert.True(t, res.Items[2].Answered)
}

func TestGradeBounds(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 2), mc(2, 3, 1.5), mc(3, 1, 0.5)}}

	all, err := Grade(v, []model.Answer{choice(0), choice(3), choice(1)})
	require.NoError(t, err)
	assert.Equal(t, 10.0, all.Score)
	assert.Equal(t, 100.0, all.Percentage)

	none, err := Grade(v, []model.Answer{choice(1), choice(0), choice(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, none.Score)
	assert.Equal(t, 0.0, none.Percentage)
	assert.Equal(t, 0, none.CorrectCount)
}

func TestGradeWeightedPoints(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 3), mc(2, 0, 1)}}
	res, err := Grade(v, []model.Answer{choice(0), choice(1)})
	require.NoError(t, err)
	assert.Equal(t, 7.5, res.Score)
	assert.Equal(t, 75.0, res.Percentage)
	assert.Equal(t, 1, res.CorrectCount)
}

func TestGradeUnansweredAndOutOfRange(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 1), mc(2, 1, 1), mc(3, 2, 1), mc(4, 3, 1)}}

	res, err := Grade(v, []model.Answer{{}, choice(17), choice(-1)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.CorrectCount)
	assert.Equal(t, 0.0, res.Score)
	assert.False(t, res.Items[0].Answered)
	assert.True(t, res.Items[1].Answered)
	assert.False(t, res.Items[3].Answered, "missing trailing positions are unanswered")
}

func TestGradeEssayNeverAutoCorrect(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 1), essay(2, 1)}}
	res, err := Grade(v, []model.Answer{choice(0), {Text: "a thoughtful essay"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 5.0, res.Score)
	assert.True(t, res.Items[1].Manual)
	assert.False(t, res.Items[1].Correct)
	assert.Equal(t, 0.0, res.Items[1].Earned)
}

func TestGradeZeroTotalPoints(t *testing.T) {
	res, err := Grade(model.Variation{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, 0.0, res.Percentage)
	assert.Equal(t, 0, res.TotalQuestions)
}

func TestGradeTooManyAnswers(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 1)}}
	_, err := Grade(v, []model.Answer{choice(0), choice(1)})
	var se *model.InvalidAnswerShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, -1, se.Position)
}

func TestGradeIsDeterministic(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 1), mc(2, 2, 2), essay(3, 1)}}
	answers := []model.Answer{choice(0), choice(1), {Text: "x"}}
	r1, err := Grade(v, answers)
	require.NoError(t, err)
	r2, err := Grade(v, answers)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestRound(t *testing.T) {
	tests := []struct {
		x      float64
		places int
		want   float64
	}{
		{6.666666, 2, 6.67},
		{66.66666, 1, 66.7},
		{1.005, 2, 1.01},
		{2.5, 0, 3},
		{-2.5, 0, -3},
		{0.125, 2, 0.13},
		{10, 2, 10},
		{0, 2, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.x, tt.places), "Round(%v, %d)", tt.x, tt.places)
	}
}

func TestParseAnswers(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 1), mc(2, 1, 1), essay(3, 1)}}

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		pos     int
		check   func(t *testing.T, a []model.Answer)
	}{
		{name: "full", raw: `[0, 3, "because"]`, check: func(t *testing.T, a []model.Answer) {
			require.Len(t, a, 3)
			assert.Equal(t, 0, *a[0].Choice)
			assert.Equal(t, 3, *a[1].Choice)
			assert.Equal(t, "because", a[2].Text)
		}},
		{name: "nulls and short", raw: `[null, 1]`, check: func(t *testing.T, a []model.Answer) {
			require.Len(t, a, 2)
			assert.False(t, a[0].Answered())
			assert.Equal(t, 1, *a[1].Choice)
		}},
		{name: "out of range kept", raw: `[9]`, check: func(t *testing.T, a []model.Answer) {
			assert.Equal(t, 9, *a[0].Choice)
		}},
		{name: "null payload", raw: `null`, check: func(t *testing.T, a []model.Answer) {
			assert.Empty(t, a)
		}},
		{name: "too long", raw: `[0, 1, "x", 2]`, wantErr: true, pos: -1},
		{name: "not an array", raw: `{"0": 1}`, wantErr: true, pos: -1},
		{name: "string for choice", raw: `["1"]`, wantErr: true, pos: 0},
		{name: "fraction for choice", raw: `[0, 1.5]`, wantErr: true, pos: 1},
		{name: "bool for choice", raw: `[true]`, wantErr: true, pos: 0},
		{name: "number for essay", raw: `[0, 1, 2]`, wantErr: true, pos: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAnswers(json.RawMessage(tt.raw), v)
			if tt.wantErr {
				var se *model.InvalidAnswerShapeError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.pos, se.Position)
				return
			}
			require.NoError(t, err)
			tt.check(t, a)
		})
	}
}

func TestValidate(t *testing.T) {
	v := model.Variation{Questions: []model.VariationQuestion{mc(1, 0, 1), essay(2, 1)}}
	assert.NoError(t, Validate([]model.Answer{choice(2), {Text: "ok"}}, v))
	assert.Error(t, Validate([]model.Answer{{Text: "b"}}, v))
	assert.Error(t, Validate([]model.Answer{{}, choice(0)}, v))
	assert.Error(t, Validate([]model.Answer{{}, {}, {}}, v))
}
