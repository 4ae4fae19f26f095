package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

// CreateSubject inserts a subject and returns its ID.
func (s *Store) CreateSubject(ctx context.Context, name string) (int64, error) {
	return s.createSubject(ctx, s.db, name)
}

func (s *Store) createSubject(ctx context.Context, q querier, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &model.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	var id int64
	err := q.QueryRowContext(ctx, s.rebind(
		`INSERT INTO subjects (name, created_at) VALUES (?, ?) RETURNING id`),
		name, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert subject %q: %w", name, err)
	}
	return id, nil
}

// EnsureSubject returns the ID of the named subject, creating it if needed.
func (s *Store) EnsureSubject(ctx context.Context, name string) (int64, error) {
	return s.ensureSubject(ctx, s.db, name)
}

func (s *Store) ensureSubject(ctx context.Context, q querier, name string) (int64, error) {
	sub, err := s.subjectByName(ctx, q, name)
	if err != nil {
		return 0, err
	}
	if sub != nil {
		return sub.ID, nil
	}
	return s.createSubject(ctx, q, name)
}

// GetSubject returns a subject by ID.
func (s *Store) GetSubject(ctx context.Context, id int64) (model.Subject, error) {
	var sub model.Subject
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, created_at FROM subjects WHERE id = ?`), id,
	).Scan(&sub.ID, &sub.Name, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, fmt.Errorf("subject %d: %w", id, model.ErrNotFound)
	}
	return sub, err
}

// GetSubjectByName returns a subject by name, or nil if none exists.
func (s *Store) GetSubjectByName(ctx context.Context, name string) (*model.Subject, error) {
	return s.subjectByName(ctx, s.db, name)
}

func (s *Store) subjectByName(ctx context.Context, q querier, name string) (*model.Subject, error) {
	var sub model.Subject
	err := q.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, created_at FROM subjects WHERE name = ?`), strings.TrimSpace(name),
	).Scan(&sub.ID, &sub.Name, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubjects returns all subjects ordered by name.
func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}
