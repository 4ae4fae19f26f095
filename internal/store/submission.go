package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/status"
)

const submissionColumns = `id, exam_id, variation_id, student_id, answers, status, score, correct_count,
	percentage, submitted_at, graded_at, reviewed_at, reviewed_by, review_comment`

// CreateSubmission records a student's answers in the submitted state.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) (int64, error) {
	answers, err := json.Marshal(nonNil(sub.Answers))
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO submissions (exam_id, variation_id, student_id, answers, status, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		sub.ExamID, sub.VariationID, sub.StudentID, string(answers), string(model.StatusSubmitted), sub.SubmittedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id int64) (model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return sub, fmt.Errorf("submission %d: %w", id, model.ErrNotFound)
	}
	return sub, err
}

// ListSubmissions returns an exam's submissions in submission order.
func (s *Store) ListSubmissions(ctx context.Context, examID int64) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+submissionColumns+` FROM submissions WHERE exam_id = ? ORDER BY submitted_at, id`), examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CommitGrade moves a submitted submission to graded and records res. The
// status change is a compare-and-set; if the submission already left the
// submitted state an AlreadyGradedError is returned and no counter moves.
// Each graded question's usage counters are incremented atomically.
func (s *Store) CommitGrade(ctx context.Context, submissionID int64, res model.GradeResult, gradedAt time.Time) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		from := sourceStatuses(model.StatusGraded)
		args := append([]any{string(model.StatusGraded), res.Score, res.CorrectCount, res.Percentage, gradedAt.UTC(), submissionID}, from...)
		r, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE submissions SET status = ?, score = ?, correct_count = ?, percentage = ?, graded_at = ?
			 WHERE id = ? AND status IN (`+placeholders(len(from))+`)`), args...)
		if err != nil {
			return fmt.Errorf("mark graded: %w", err)
		}
		if n, _ := r.RowsAffected(); n == 0 {
			var cur string
			err := tx.QueryRowContext(ctx, s.rebind(`SELECT status FROM submissions WHERE id = ?`), submissionID).Scan(&cur)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("submission %d: %w", submissionID, model.ErrNotFound)
			}
			if err != nil {
				return err
			}
			return &model.AlreadyGradedError{SubmissionID: submissionID, Status: model.SubmissionStatus(cur)}
		}

		for _, item := range res.Items {
			correct := 0
			if item.Correct {
				correct = 1
			}
			if _, err := tx.ExecContext(ctx, s.rebind(
				`UPDATE questions SET times_used = times_used + 1, times_correct = times_correct + ? WHERE id = ?`),
				correct, item.QuestionID,
			); err != nil {
				return fmt.Errorf("update question %d counters: %w", item.QuestionID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("graded submission", "submission_id", submissionID, "score", res.Score, "correct", res.CorrectCount)
	return nil
}

// ReviewSubmission overrides the score of a graded or reviewed submission.
func (s *Store) ReviewSubmission(ctx context.Context, id int64, score float64, comment string, reviewerID int64, at time.Time) error {
	from := sourceStatuses(model.StatusReviewed)
	args := append([]any{string(model.StatusReviewed), score, comment, reviewerID, at.UTC(), id}, from...)
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE submissions SET status = ?, score = ?, review_comment = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ? AND status IN (`+placeholders(len(from))+`)`), args...)
	if err != nil {
		return fmt.Errorf("review submission %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetSubmission(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("submission %d: %w", id, model.ErrInvalidTransition)
	}
	slog.Info("reviewed submission", "submission_id", id, "score", score, "reviewer", reviewerID)
	return nil
}

// sourceStatuses returns the statuses a submission may move to "to" from,
// as query arguments.
func sourceStatuses(to model.SubmissionStatus) []any {
	var from []any
	for _, st := range model.SubmissionStatuses {
		if status.CanTransition(st, to) {
			from = append(from, string(st))
		}
	}
	return from
}

func scanSubmission(r rowScanner) (model.Submission, error) {
	var (
		sub              model.Submission
		answers, status  string
		score            sql.NullFloat64
		graded, reviewed sql.NullTime
		reviewedBy       sql.NullInt64
	)
	err := r.Scan(&sub.ID, &sub.ExamID, &sub.VariationID, &sub.StudentID, &answers, &status, &score,
		&sub.CorrectCount, &sub.Percentage, &sub.SubmittedAt, &graded, &reviewed, &reviewedBy, &sub.ReviewComment)
	if err != nil {
		return sub, err
	}
	sub.Status = model.SubmissionStatus(status)
	if score.Valid {
		v := score.Float64
		sub.Score = &v
	}
	if graded.Valid {
		t := graded.Time
		sub.GradedAt = &t
	}
	if reviewed.Valid {
		t := reviewed.Time
		sub.ReviewedAt = &t
	}
	if reviewedBy.Valid {
		v := reviewedBy.Int64
		sub.ReviewedBy = &v
	}
	if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
		return sub, fmt.Errorf("submission %d answers: %w", sub.ID, err)
	}
	return sub, nil
}
