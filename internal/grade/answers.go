package grade

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pavelanni/examgen/internal/model"
)

// ParseAnswers decodes a raw JSON answer array for v. Each element is null
// (unanswered), an integer alternative index for multiple choice, or a
// string for essays. Out-of-range indexes are kept; Grade treats them as
// incorrect.
func ParseAnswers(raw json.RawMessage, v model.Variation) ([]model.Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		return nil, &model.InvalidAnswerShapeError{Position: -1, Reason: "answers must be an array"}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &model.InvalidAnswerShapeError{Position: -1, Reason: "answers must be an array"}
	}
	if len(elems) > len(v.Questions) {
		return nil, &model.InvalidAnswerShapeError{Position: -1, Reason: "more answers than questions"}
	}

	answers := make([]model.Answer, len(elems))
	for i, e := range elems {
		a, err := parseOne(e, v.Questions[i].Type)
		if err != nil {
			return nil, &model.InvalidAnswerShapeError{Position: i, Reason: err.Error()}
		}
		answers[i] = a
	}
	return answers, nil
}

type shapeErr string

func (s shapeErr) Error() string { return string(s) }

func parseOne(e json.RawMessage, typ model.QuestionType) (model.Answer, error) {
	e = bytes.TrimSpace(e)
	if bytes.Equal(e, []byte("null")) {
		return model.Answer{}, nil
	}

	switch typ {
	case model.QuestionMultipleChoice:
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(e))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil || e[0] == '"' {
			return model.Answer{}, shapeErr("multiple choice answer must be an integer")
		}
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return model.Answer{}, shapeErr("multiple choice answer must be an integer")
		}
		return model.Answer{Choice: &i}, nil
	default:
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			return model.Answer{}, shapeErr("essay answer must be a string")
		}
		return model.Answer{Text: s}, nil
	}
}

// Validate checks already-decoded answers against v's shape.
func Validate(answers []model.Answer, v model.Variation) error {
	if len(answers) > len(v.Questions) {
		return &model.InvalidAnswerShapeError{Position: -1, Reason: "more answers than questions"}
	}
	for i, a := range answers {
		switch v.Questions[i].Type {
		case model.QuestionMultipleChoice:
			if a.Text != "" {
				return &model.InvalidAnswerShapeError{Position: i, Reason: "multiple choice answer must be an integer"}
			}
		default:
			if a.Choice != nil {
				return &model.InvalidAnswerShapeError{Position: i, Reason: "essay answer must be a string"}
			}
		}
	}
	return nil
}
