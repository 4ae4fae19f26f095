package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/examgen/internal/model"
)

const questionColumns = `id, subject_id, difficulty, type, text, alternatives, correct_index, points, active, times_used, times_correct`

// QuestionFilter narrows ListQuestions. Zero values match everything.
type QuestionFilter struct {
	SubjectID  int64
	Difficulty model.Difficulty
	ActiveOnly bool
}

// InsertQuestion validates and stores a question, returning its ID.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	return s.insertQuestion(ctx, s.db, q)
}

func (s *Store) insertQuestion(ctx context.Context, db querier, q model.Question) (int64, error) {
	q, err := model.NewQuestion(q)
	if err != nil {
		return 0, err
	}
	alts, err := json.Marshal(nonNil(q.Alternatives))
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO questions (subject_id, difficulty, type, text, alternatives, correct_index, points, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		q.SubjectID, string(q.Difficulty), string(q.Type), q.Text, string(alts), q.CorrectIndex, q.Points, q.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return q, fmt.Errorf("question %d: %w", id, model.ErrNotFound)
	}
	return q, err
}

// ListQuestions returns questions matching f, ordered by ID.
func (s *Store) ListQuestions(ctx context.Context, f QuestionFilter) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1 = 1`
	var args []any
	if f.SubjectID != 0 {
		query += ` AND subject_id = ?`
		args = append(args, f.SubjectID)
	}
	if f.Difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, string(f.Difficulty))
	}
	if f.ActiveOnly {
		query += ` AND active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`
	return s.queryQuestions(ctx, query, args...)
}

// FindByDifficulty returns the active questions of one tier across the given
// subjects, ordered by ID.
func (s *Store) FindByDifficulty(ctx context.Context, subjectIDs []int64, tier model.Difficulty) ([]model.Question, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	args := []any{string(tier), true}
	for _, id := range subjectIDs {
		args = append(args, id)
	}
	query := `SELECT ` + questionColumns + ` FROM questions
		WHERE difficulty = ? AND active = ? AND subject_id IN (` + placeholders(len(subjectIDs)) + `)
		ORDER BY id`
	return s.queryQuestions(ctx, query, args...)
}

// QuestionCount returns the total number of questions.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// DeactivateQuestion removes a question from future assembly. Existing
// variations keep their snapshot.
func (s *Store) DeactivateQuestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE questions SET active = ? WHERE id = ?`), false, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// DeleteQuestion removes a question that no variation references.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var refs int
		if err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT COUNT(*) FROM variation_questions WHERE question_id = ?`), id,
		).Scan(&refs); err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("question %d: %w", id, model.ErrQuestionInUse)
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM questions WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("question %d: %w", id, model.ErrNotFound)
		}
		slog.Info("deleted question", "id", id)
		return nil
	})
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanQuestion(r rowScanner) (model.Question, error) {
	var q model.Question
	var difficulty, typ, alts string
	err := r.Scan(&q.ID, &q.SubjectID, &difficulty, &typ, &q.Text, &alts,
		&q.CorrectIndex, &q.Points, &q.Active, &q.TimesUsed, &q.TimesCorrect)
	if err != nil {
		return q, err
	}
	q.Difficulty = model.Difficulty(difficulty)
	q.Type = model.QuestionType(typ)
	if err := json.Unmarshal([]byte(alts), &q.Alternatives); err != nil {
		return q, fmt.Errorf("question %d alternatives: %w", q.ID, err)
	}
	if len(q.Alternatives) == 0 {
		q.Alternatives = nil
	}
	return q, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
