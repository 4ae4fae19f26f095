package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

const examColumns = `id, title, total_questions, easy_count, medium_count, hard_count, variation_count,
	passing_score, randomize_questions, randomize_alternatives, published, expires_at, generation, created_at`

// CreateExam validates e against now and stores it unpublished with its
// subject links.
func (s *Store) CreateExam(ctx context.Context, e model.Exam, now time.Time) (int64, error) {
	now = now.UTC()
	e, err := model.NewExam(e, now)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		args := make([]any, len(e.SubjectIDs))
		for i, sid := range e.SubjectIDs {
			args[i] = sid
		}
		var known int
		if err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT COUNT(*) FROM subjects WHERE id IN (`+placeholders(len(args))+`)`), args...,
		).Scan(&known); err != nil {
			return err
		}
		if known != len(e.SubjectIDs) {
			return &model.ValidationError{Field: "subject_ids", Reason: "unknown subject"}
		}

		var expires sql.NullTime
		if e.ExpiresAt != nil {
			expires = sql.NullTime{Time: e.ExpiresAt.UTC(), Valid: true}
		}
		d := e.Distribution
		if err := tx.QueryRowContext(ctx, s.rebind(
			`INSERT INTO exams (title, total_questions, easy_count, medium_count, hard_count, variation_count,
				passing_score, randomize_questions, randomize_alternatives, published, expires_at, generation, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			e.Title, e.TotalQuestions, d.Easy, d.Medium, d.Hard, e.VariationCount,
			e.PassingScore, e.RandomizeQuestions, e.RandomizeAlternatives, false, expires, 0, now,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}

		for _, sid := range e.SubjectIDs {
			if _, err := tx.ExecContext(ctx, s.rebind(
				`INSERT INTO exam_subjects (exam_id, subject_id) VALUES (?, ?)`), id, sid); err != nil {
				return fmt.Errorf("link subject %d: %w", sid, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Info("created exam", "exam_id", id, "title", e.Title, "variations", e.VariationCount)
	return id, nil
}

// GetExam returns an exam by ID with its subject IDs.
func (s *Store) GetExam(ctx context.Context, id int64) (model.Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+examColumns+` FROM exams WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("exam %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return e, err
	}
	e.SubjectIDs, err = s.examSubjects(ctx, id)
	return e, err
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+examColumns+` FROM exams ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		exams = append(exams, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range exams {
		if exams[i].SubjectIDs, err = s.examSubjects(ctx, exams[i].ID); err != nil {
			return nil, err
		}
	}
	return exams, nil
}

// DeleteExam removes an exam together with its variations and submissions.
func (s *Store) DeleteExam(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM submissions WHERE exam_id = ?`,
			`DELETE FROM variation_questions WHERE variation_id IN (SELECT id FROM variations WHERE exam_id = ?)`,
			`DELETE FROM variations WHERE exam_id = ?`,
			`DELETE FROM exam_subjects WHERE exam_id = ?`,
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM exams WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("exam %d: %w", id, model.ErrNotFound)
		}
		slog.Info("deleted exam", "exam_id", id)
		return nil
	})
}

func (s *Store) examSubjects(ctx context.Context, examID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT subject_id FROM exam_subjects WHERE exam_id = ? ORDER BY subject_id`), examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanExam(r rowScanner) (model.Exam, error) {
	var e model.Exam
	var expires sql.NullTime
	err := r.Scan(&e.ID, &e.Title, &e.TotalQuestions,
		&e.Distribution.Easy, &e.Distribution.Medium, &e.Distribution.Hard,
		&e.VariationCount, &e.PassingScore, &e.RandomizeQuestions, &e.RandomizeAlternatives,
		&e.Published, &expires, &e.Generation, &e.CreatedAt)
	if expires.Valid {
		t := expires.Time
		e.ExpiresAt = &t
	}
	return e, err
}
