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

// ReplaceVariations installs vs as the exam's next generation. The exam's
// generation moves from fromGeneration to fromGeneration+1 only if no one
// else moved it first; otherwise ErrConcurrentRegeneration is returned and
// nothing is written. Superseded variations that have no submissions are
// removed in the same transaction. When publish is set the exam is marked
// published as well.
func (s *Store) ReplaceVariations(ctx context.Context, examID int64, fromGeneration int, vs []model.Variation, publish bool) error {
	next := fromGeneration + 1
	for _, v := range vs {
		if v.ExamID != examID || v.Generation != next {
			return fmt.Errorf("variation %s does not belong to exam %d generation %d", v.ID, examID, next)
		}
	}

	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE exams SET generation = ? WHERE id = ? AND generation = ?`
		args := []any{next, examID, fromGeneration}
		if publish {
			query = `UPDATE exams SET generation = ?, published = ? WHERE id = ? AND generation = ?`
			args = []any{next, true, examID, fromGeneration}
		}
		res, err := tx.ExecContext(ctx, s.rebind(query), args...)
		if err != nil {
			return fmt.Errorf("bump generation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var current int
			err := tx.QueryRowContext(ctx, s.rebind(`SELECT generation FROM exams WHERE id = ?`), examID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("exam %d: %w", examID, model.ErrNotFound)
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("exam %d at generation %d, expected %d: %w",
				examID, current, fromGeneration, model.ErrConcurrentRegeneration)
		}

		for i, v := range vs {
			if err := s.insertVariation(ctx, tx, i, v); err != nil {
				return err
			}
		}

		const stale = `SELECT id FROM variations WHERE exam_id = ? AND generation < ?
			AND id NOT IN (SELECT variation_id FROM submissions WHERE exam_id = ?)`
		if _, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM variation_questions WHERE variation_id IN (`+stale+`)`), examID, next, examID); err != nil {
			return fmt.Errorf("prune variation questions: %w", err)
		}
		res, err = tx.ExecContext(ctx, s.rebind(
			`DELETE FROM variations WHERE exam_id = ? AND generation < ?
			 AND id NOT IN (SELECT variation_id FROM submissions WHERE exam_id = ?)`), examID, next, examID)
		if err != nil {
			return fmt.Errorf("prune variations: %w", err)
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("stored variations", "exam_id", examID, "generation", next, "count", len(vs), "pruned", removed)
	return nil
}

func (s *Store) insertVariation(ctx context.Context, tx *sql.Tx, seq int, v model.Variation) error {
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO variations (id, exam_id, generation, seq, created_at) VALUES (?, ?, ?, ?, ?)`),
		v.ID, v.ExamID, v.Generation, seq, v.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert variation %s: %w", v.ID, err)
	}
	for pos, q := range v.Questions {
		alts, err := json.Marshal(nonNil(q.Alternatives))
		if err != nil {
			return err
		}
		order, err := json.Marshal(nonNil(q.Order))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO variation_questions
				(variation_id, position, question_id, type, difficulty, text, points, alternatives, alt_order, correct_index)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			v.ID, pos, q.QuestionID, string(q.Type), string(q.Difficulty), q.Text, q.Points,
			string(alts), string(order), q.CorrectIndex,
		); err != nil {
			return fmt.Errorf("insert variation %s position %d: %w", v.ID, pos, err)
		}
	}
	return nil
}

// GetVariation returns a variation with its questions in presentation order.
func (s *Store) GetVariation(ctx context.Context, id string) (model.Variation, error) {
	var v model.Variation
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, exam_id, generation, created_at FROM variations WHERE id = ?`), id,
	).Scan(&v.ID, &v.ExamID, &v.Generation, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("variation %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return v, err
	}
	byID, err := s.variationQuestions(ctx, `vq.variation_id = ?`, id)
	if err != nil {
		return v, err
	}
	v.Questions = byID[id]
	return v, nil
}

// ListVariations returns the variations of one generation of an exam in
// generation order. A generation of 0 means the exam's current one.
func (s *Store) ListVariations(ctx context.Context, examID int64, generation int) ([]model.Variation, error) {
	if generation == 0 {
		if err := s.db.QueryRowContext(ctx, s.rebind(
			`SELECT generation FROM exams WHERE id = ?`), examID).Scan(&generation); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("exam %d: %w", examID, model.ErrNotFound)
			}
			return nil, err
		}
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, exam_id, generation, created_at FROM variations
		 WHERE exam_id = ? AND generation = ? ORDER BY seq`), examID, generation)
	if err != nil {
		return nil, err
	}
	var vs []model.Variation
	for rows.Next() {
		var v model.Variation
		if err := rows.Scan(&v.ID, &v.ExamID, &v.Generation, &v.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		vs = append(vs, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID, err := s.variationQuestions(ctx, `v.exam_id = ? AND v.generation = ?`, examID, generation)
	if err != nil {
		return nil, err
	}
	for i := range vs {
		vs[i].Questions = byID[vs[i].ID]
	}
	return vs, nil
}

func (s *Store) variationQuestions(ctx context.Context, where string, args ...any) (map[string][]model.VariationQuestion, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT vq.variation_id, vq.question_id, vq.type, vq.difficulty, vq.text, vq.points,
			vq.alternatives, vq.alt_order, vq.correct_index
		 FROM variation_questions vq JOIN variations v ON v.id = vq.variation_id
		 WHERE `+where+` ORDER BY vq.variation_id, vq.position`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]model.VariationQuestion)
	for rows.Next() {
		var (
			vid, typ, diff, alts, order string
			q                           model.VariationQuestion
		)
		if err := rows.Scan(&vid, &q.QuestionID, &typ, &diff, &q.Text, &q.Points, &alts, &order, &q.CorrectIndex); err != nil {
			return nil, err
		}
		q.Type = model.QuestionType(typ)
		q.Difficulty = model.Difficulty(diff)
		if err := json.Unmarshal([]byte(alts), &q.Alternatives); err != nil {
			return nil, fmt.Errorf("variation %s alternatives: %w", vid, err)
		}
		if err := json.Unmarshal([]byte(order), &q.Order); err != nil {
			return nil, fmt.Errorf("variation %s order: %w", vid, err)
		}
		if len(q.Alternatives) == 0 {
			q.Alternatives, q.Order = nil, nil
		}
		out[vid] = append(out[vid], q)
	}
	return out, rows.Err()
}
