package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examgen/internal/model"
)

type submitRequest struct {
	Answers json.RawMessage `json:"answers"`
}

type reviewRequest struct {
	Score   *float64 `json:"score"`
	Comment string   `json:"comment"`
}

type submissionView struct {
	model.Submission
	Passing bool `json:"passing"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user := model.UserFromContext(r.Context())
	res, err := h.svc.GradeSubmission(r.Context(), chi.URLParam(r, "variationID"), user.ID, req.Answers, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	if !isStaff(user) && sub.StudentID != user.ID {
		// Hide other students' submissions entirely.
		writeError(w, r, model.ErrNotFound)
		return
	}
	passing, err := h.svc.SubmissionPassing(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionView{Submission: sub, Passing: passing})
}

func (h *Handler) handleRegrade(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	res, err := h.svc.GradeByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Score == nil {
		writeError(w, r, &model.ValidationError{Field: "score", Reason: "is required"})
		return
	}
	user := model.UserFromContext(r.Context())
	sub, err := h.svc.ReviewSubmission(r.Context(), id, *req.Score, req.Comment, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	passing, err := h.svc.SubmissionPassing(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionView{Submission: sub, Passing: passing})
}
