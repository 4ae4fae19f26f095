package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pavelanni/examgen/internal/exam"
	appI18n "github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

type questionView struct {
	model.Question
	CorrectRate float64 `json:"correct_rate"`
}

type importResponse struct {
	exam.ImportResult
	Message string `json:"message"`
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListSubjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.store.CreateSubject(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.store.GetSubject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.QuestionFilter
	if v := q.Get("subject_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, &model.ValidationError{Field: "subject_id", Reason: "must be a number"})
			return
		}
		f.SubjectID = id
	}
	if v := q.Get("difficulty"); v != "" {
		f.Difficulty = model.Difficulty(v)
		if !f.Difficulty.Valid() {
			writeError(w, r, &model.ValidationError{Field: "difficulty", Reason: "must be easy, medium or hard"})
			return
		}
	}
	f.ActiveOnly = q.Get("active") == "true"

	questions, err := h.store.ListQuestions(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]questionView, len(questions))
	for i, qq := range questions {
		views[i] = questionView{Question: qq, CorrectRate: qq.CorrectRate()}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q model.Question
	if !decodeJSON(w, r, &q) {
		return
	}
	id, err := h.store.InsertQuestion(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.store.GetQuestion(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, questionView{Question: created})
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "questionID")
	if !ok {
		return
	}
	q, err := h.store.GetQuestion(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionView{Question: q, CorrectRate: q.CorrectRate()})
}

func (h *Handler) handleDeactivateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "questionID")
	if !ok {
		return
	}
	if err := h.store.DeactivateQuestion(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "questionID")
	if !ok {
		return
	}
	if err := h.store.DeleteQuestion(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportQuestions accepts a multipart upload in "questions_file" or a
// raw JSON body named by the "name" query parameter.
func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	var (
		name string
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "ErrBadRequest", nil)
			return
		}
		file, header, err := r.FormFile("questions_file")
		if err != nil {
			writeMessage(w, r, http.StatusBadRequest, "ErrBadRequest", nil)
			return
		}
		defer file.Close()
		name = header.Filename
		data, err = io.ReadAll(file)
		if err != nil {
			writeMessage(w, r, http.StatusBadRequest, "ErrBadRequest", nil)
			return
		}
	} else {
		name = r.URL.Query().Get("name")
		data, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil || name == "" {
			writeMessage(w, r, http.StatusBadRequest, "ErrBadRequest", nil)
			return
		}
	}

	res, err := h.svc.ImportQuestions(r.Context(), name, data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := appI18n.Tp(r.Context(), "QuestionsImported", res.Imported)
	if res.Skipped {
		msg = appI18n.Td(r.Context(), "ImportSkipped", map[string]any{"Name": res.Name, "Reason": res.Reason})
	}
	writeJSON(w, http.StatusOK, importResponse{ImportResult: res, Message: msg})
}
