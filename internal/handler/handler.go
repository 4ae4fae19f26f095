package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examgen/internal/exam"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc   *exam.Service
	store *store.Store
	now   func() time.Time
}

// New creates a new Handler.
func New(svc *exam.Service) *Handler {
	return &Handler{svc: svc, store: svc.Store(), now: time.Now}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/me", h.handleMe)
			r.Get("/exams/{examID}/status", h.handleExamStatus)
			r.Get("/exams/{examID}/variation", h.handleAssignedVariation)
			r.Get("/variations/{variationID}", h.handleGetVariation)
			r.Post("/variations/{variationID}/submissions", h.handleSubmit)
			r.Get("/submissions/{submissionID}", h.handleGetSubmission)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))

				r.Get("/subjects", h.handleListSubjects)
				r.Post("/subjects", h.handleCreateSubject)

				r.Get("/questions", h.handleListQuestions)
				r.Post("/questions", h.handleCreateQuestion)
				r.Post("/questions/import", h.handleImportQuestions)
				r.Get("/questions/{questionID}", h.handleGetQuestion)
				r.Post("/questions/{questionID}/deactivate", h.handleDeactivateQuestion)
				r.Delete("/questions/{questionID}", h.handleDeleteQuestion)

				r.Get("/exams", h.handleListExams)
				r.Post("/exams", h.handleCreateExam)
				r.Get("/exams/{examID}", h.handleGetExam)
				r.Delete("/exams/{examID}", h.handleDeleteExam)
				r.Post("/exams/{examID}/publish", h.handlePublishExam)
				r.Post("/exams/{examID}/variations", h.handleRegenerate)
				r.Get("/exams/{examID}/variations", h.handleListVariations)
				r.Get("/exams/{examID}/submissions", h.handleListSubmissions)

				r.Post("/submissions/{submissionID}/grade", h.handleRegrade)
				r.Post("/submissions/{submissionID}/review", h.handleReview)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/admin/users", h.handleListUsers)
				r.Post("/admin/users", h.handleCreateUser)
				r.Post("/admin/users/{userID}/toggle", h.handleToggleUserActive)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "ErrBadRequest", nil)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, r, http.StatusBadRequest, "ErrBadRequest", nil)
		return 0, false
	}
	return id, true
}

func isStaff(u *model.User) bool {
	return u != nil && (u.Role == model.UserRoleTeacher || u.Role == model.UserRoleAdmin)
}
