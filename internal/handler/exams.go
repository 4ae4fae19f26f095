package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examgen/internal/model"
)

type examView struct {
	model.Exam
	Status model.ExamStatus `json:"status"`
}

type examStatusView struct {
	ExamID    int64            `json:"exam_id"`
	Title     string           `json:"title"`
	Status    model.ExamStatus `json:"status"`
	CanTake   bool             `json:"can_take"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

// studentQuestion is a variation question without its answer key.
type studentQuestion struct {
	Position     int                `json:"position"`
	Type         model.QuestionType `json:"type"`
	Text         string             `json:"text"`
	Points       float64            `json:"points"`
	Alternatives []string           `json:"alternatives,omitempty"`
}

type studentVariation struct {
	ID        string            `json:"id"`
	ExamID    int64             `json:"exam_id"`
	Questions []studentQuestion `json:"questions"`
}

func toStudentVariation(v model.Variation) studentVariation {
	out := studentVariation{ID: v.ID, ExamID: v.ExamID, Questions: make([]studentQuestion, len(v.Questions))}
	for i, q := range v.Questions {
		out.Questions[i] = studentQuestion{
			Position:     i,
			Type:         q.Type,
			Text:         q.Text,
			Points:       q.Points,
			Alternatives: q.Alternatives,
		}
	}
	return out
}

func (h *Handler) viewExam(e model.Exam) examView {
	return examView{Exam: e, Status: h.svc.EvaluateExamStatus(e, h.now())}
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]examView, len(exams))
	for i, e := range exams {
		views[i] = h.viewExam(e)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var e model.Exam
	if !decodeJSON(w, r, &e) {
		return
	}
	created, err := h.svc.CreateExam(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.viewExam(created))
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	e, err := h.store.GetExam(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.viewExam(e))
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	if err := h.store.DeleteExam(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePublishExam(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	vs, err := h.svc.Publish(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	vs, err := h.svc.AssembleVariations(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vs)
}

func (h *Handler) handleListVariations(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	vs, err := h.store.ListVariations(r.Context(), id, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if vs == nil {
		vs = []model.Variation{}
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	if _, err := h.store.GetExam(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	subs, err := h.store.ListSubmissions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleExamStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	e, err := h.store.GetExam(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st := h.svc.EvaluateExamStatus(e, h.now())
	writeJSON(w, http.StatusOK, examStatusView{
		ExamID:    e.ID,
		Title:     e.Title,
		Status:    st,
		CanTake:   st == model.ExamActive,
		ExpiresAt: e.ExpiresAt,
	})
}

func (h *Handler) handleAssignedVariation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "examID")
	if !ok {
		return
	}
	user := model.UserFromContext(r.Context())
	v, err := h.svc.AssignVariation(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentVariation(v))
}

func (h *Handler) handleGetVariation(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.GetVariation(r.Context(), chi.URLParam(r, "variationID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if isStaff(model.UserFromContext(r.Context())) {
		writeJSON(w, http.StatusOK, v)
		return
	}
	writeJSON(w, http.StatusOK, toStudentVariation(v))
}
