// Package exam ties the assembly, grading and status engines to the store.
package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/examgen/internal/assemble"
	"github.com/pavelanni/examgen/internal/grade"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/status"
	"github.com/pavelanni/examgen/internal/store"
)

// Service runs exam workflows against the store.
type Service struct {
	store *store.Store
	asm   *assemble.Assembler
	now   func() time.Time
	locks keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for exam creation, availability checks and
// grading and review timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a Service. If asm is nil an Assembler over st with a random
// seed is used.
func New(st *store.Store, asm *assemble.Assembler, opts ...Option) *Service {
	s := &Service{store: st, asm: asm, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.asm == nil {
		s.asm = assemble.New(st, assemble.WithClock(s.now))
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store { return s.store }

// CreateExam validates and stores a new draft exam.
func (s *Service) CreateExam(ctx context.Context, e model.Exam) (model.Exam, error) {
	id, err := s.store.CreateExam(ctx, e, s.now())
	if err != nil {
		return model.Exam{}, err
	}
	return s.store.GetExam(ctx, id)
}

// AssembleVariations draws a fresh generation of variations for an exam and
// stores it. Earlier generations stay readable for their submissions.
func (s *Service) AssembleVariations(ctx context.Context, examID int64) ([]model.Variation, error) {
	unlock := s.locks.lock(examID)
	defer unlock()

	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	return s.regenerate(ctx, e, false)
}

// Publish assembles the exam's first variation set and makes it available.
// Publishing an already published exam returns its current variations.
func (s *Service) Publish(ctx context.Context, examID int64) ([]model.Variation, error) {
	unlock := s.locks.lock(examID)
	defer unlock()

	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if e.Published && e.Generation > 0 {
		return s.store.ListVariations(ctx, examID, e.Generation)
	}
	return s.regenerate(ctx, e, true)
}

// regenerate must be called with the exam's lock held.
func (s *Service) regenerate(ctx context.Context, e model.Exam, publish bool) ([]model.Variation, error) {
	vs, err := s.asm.Assemble(ctx, assemble.RequestForExam(e))
	if err != nil {
		return nil, fmt.Errorf("assemble exam %d: %w", e.ID, err)
	}
	if err := s.store.ReplaceVariations(ctx, e.ID, e.Generation, vs, publish); err != nil {
		return nil, err
	}
	slog.Info("assembled variations", "exam_id", e.ID, "generation", e.Generation+1, "published", publish || e.Published)
	return vs, nil
}

// AssignVariation picks the variation of the exam's current generation that
// a student should take. The choice is stable for a given generation.
func (s *Service) AssignVariation(ctx context.Context, examID, studentID int64) (model.Variation, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return model.Variation{}, err
	}
	if !status.CanTakeExam(e, s.now()) {
		return model.Variation{}, fmt.Errorf("exam %d is %s: %w", e.ID, status.ExamStatus(e, s.now()), model.ErrExamNotAvailable)
	}
	vs, err := s.store.ListVariations(ctx, examID, e.Generation)
	if err != nil {
		return model.Variation{}, err
	}
	if len(vs) == 0 {
		return model.Variation{}, fmt.Errorf("exam %d has no variations: %w", examID, model.ErrNotFound)
	}
	idx := studentID % int64(len(vs))
	if idx < 0 {
		idx = -idx
	}
	return vs[idx], nil
}

// EvaluateExamStatus reports the lifecycle state of e at now.
func (s *Service) EvaluateExamStatus(e model.Exam, now time.Time) model.ExamStatus {
	return status.ExamStatus(e, now)
}

// GradeSubmission records a student's raw answers for a variation and grades
// them. The exam must be open to submissions at submittedAt.
func (s *Service) GradeSubmission(ctx context.Context, variationID string, studentID int64, rawAnswers json.RawMessage, submittedAt time.Time) (model.GradeResult, error) {
	v, err := s.store.GetVariation(ctx, variationID)
	if err != nil {
		return model.GradeResult{}, err
	}
	e, err := s.store.GetExam(ctx, v.ExamID)
	if err != nil {
		return model.GradeResult{}, err
	}
	if !status.CanTakeExam(e, submittedAt) {
		return model.GradeResult{}, fmt.Errorf("exam %d is %s: %w", e.ID, status.ExamStatus(e, submittedAt), model.ErrExamNotAvailable)
	}
	answers, err := grade.ParseAnswers(rawAnswers, v)
	if err != nil {
		return model.GradeResult{}, err
	}

	id, err := s.store.CreateSubmission(ctx, model.Submission{
		ExamID:      e.ID,
		VariationID: v.ID,
		StudentID:   studentID,
		Answers:     answers,
		SubmittedAt: submittedAt,
	})
	if err != nil {
		return model.GradeResult{}, err
	}
	slog.Info("received submission", "submission_id", id, "exam_id", e.ID, "variation_id", v.ID, "student_id", studentID)
	return s.grade(ctx, id, answers, v, e)
}

// GradeByID grades a stored submission that is still in the submitted state,
// for example one whose first grading attempt failed. Stored answers are
// checked against the variation's shape before grading.
func (s *Service) GradeByID(ctx context.Context, submissionID int64) (model.GradeResult, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return model.GradeResult{}, err
	}
	if !status.CanTransition(sub.Status, model.StatusGraded) {
		return model.GradeResult{}, &model.AlreadyGradedError{SubmissionID: sub.ID, Status: sub.Status}
	}
	v, err := s.store.GetVariation(ctx, sub.VariationID)
	if err != nil {
		return model.GradeResult{}, err
	}
	if err := grade.Validate(sub.Answers, v); err != nil {
		return model.GradeResult{}, fmt.Errorf("submission %d: %w", sub.ID, err)
	}
	e, err := s.store.GetExam(ctx, sub.ExamID)
	if err != nil {
		return model.GradeResult{}, err
	}
	return s.grade(ctx, sub.ID, sub.Answers, v, e)
}

func (s *Service) grade(ctx context.Context, id int64, answers []model.Answer, v model.Variation, e model.Exam) (model.GradeResult, error) {
	res, err := grade.Grade(v, answers)
	if err != nil {
		return model.GradeResult{}, err
	}
	res.SubmissionID = id
	if err := s.store.CommitGrade(ctx, id, res, s.now()); err != nil {
		return model.GradeResult{}, err
	}
	score := res.Score
	res.Passing = status.IsPassing(model.Submission{Status: model.StatusGraded, Score: &score}, e)
	return res, nil
}

// ReviewSubmission sets a reviewer's score (0 to 10) on a graded or
// already reviewed submission.
func (s *Service) ReviewSubmission(ctx context.Context, submissionID int64, score float64, comment string, reviewerID int64) (model.Submission, error) {
	if !model.ValidScore(score) {
		return model.Submission{}, &model.ValidationError{Field: "score", Reason: "must be between 0 and 10"}
	}
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return model.Submission{}, err
	}
	if !status.CanTransition(sub.Status, model.StatusReviewed) {
		return model.Submission{}, fmt.Errorf("submission %d is %s: %w", sub.ID, sub.Status, model.ErrInvalidTransition)
	}
	if err := s.store.ReviewSubmission(ctx, submissionID, score, comment, reviewerID, s.now()); err != nil {
		return model.Submission{}, err
	}
	return s.store.GetSubmission(ctx, submissionID)
}

// SubmissionPassing reports whether a stored submission passes its exam.
func (s *Service) SubmissionPassing(ctx context.Context, sub model.Submission) (bool, error) {
	e, err := s.store.GetExam(ctx, sub.ExamID)
	if err != nil {
		return false, err
	}
	return status.IsPassing(sub, e), nil
}

// keyedMutex serializes work per exam ID.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
