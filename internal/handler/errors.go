package handler

import (
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, msgID string, data map[string]any) {
	msg := appI18n.Td(r.Context(), msgID, data)
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps domain errors to a status code and a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve    *model.ValidationError
		de    *model.InvalidDistributionError
		ie    *model.InsufficientQuestionsError
		age   *model.AlreadyGradedError
		shape *model.InvalidAnswerShapeError
	)
	switch {
	case errors.As(err, &ve):
		writeMessage(w, r, http.StatusBadRequest, "ErrValidation", map[string]any{"Field": ve.Field, "Reason": ve.Reason})
	case errors.As(err, &de):
		d := de.Distribution
		writeMessage(w, r, http.StatusBadRequest, "ErrInvalidDistribution",
			map[string]any{"Easy": d.Easy, "Medium": d.Medium, "Hard": d.Hard, "Total": de.Total})
	case errors.As(err, &shape):
		if shape.Position < 0 {
			writeMessage(w, r, http.StatusBadRequest, "ErrInvalidAnswerShape", map[string]any{"Reason": shape.Reason})
		} else {
			writeMessage(w, r, http.StatusBadRequest, "ErrInvalidAnswerAt", map[string]any{"Position": shape.Position, "Reason": shape.Reason})
		}
	case errors.As(err, &ie):
		writeMessage(w, r, http.StatusUnprocessableEntity, "ErrInsufficientQuestions",
			map[string]any{"Difficulty": string(ie.Difficulty), "Requested": ie.Requested, "Available": ie.Available})
	case errors.As(err, &age):
		writeMessage(w, r, http.StatusConflict, "ErrAlreadyGraded", map[string]any{"ID": age.SubmissionID, "Status": string(age.Status)})
	case errors.Is(err, model.ErrNotFound):
		writeMessage(w, r, http.StatusNotFound, "ErrNotFound", nil)
	case errors.Is(err, model.ErrQuestionInUse):
		writeMessage(w, r, http.StatusConflict, "ErrQuestionInUse", nil)
	case errors.Is(err, model.ErrExamNotAvailable):
		writeMessage(w, r, http.StatusConflict, "ErrExamNotAvailable", nil)
	case errors.Is(err, model.ErrInvalidTransition):
		writeMessage(w, r, http.StatusConflict, "ErrInvalidTransition", nil)
	case errors.Is(err, model.ErrConcurrentRegeneration):
		writeMessage(w, r, http.StatusConflict, "ErrConcurrentRegeneration", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, r, http.StatusInternalServerError, "ErrInternal", nil)
	}
}
