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

// GetImportedFileHash returns the SHA-256 recorded for a question file, or
// "" if the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT sha256 FROM imported_files WHERE path = ?`), path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the hash of an imported question file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	return s.setImportedFileHash(ctx, s.db, path, hash)
}

func (s *Store) setImportedFileHash(ctx context.Context, q querier, path, hash string) error {
	_, err := q.ExecContext(ctx, s.rebind(
		`INSERT INTO imported_files (path, sha256, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = excluded.sha256, imported_at = excluded.imported_at`),
		path, hash, time.Now().UTC(),
	)
	return err
}

// BankQuestion is a question from an imported file, keyed by subject name.
type BankQuestion struct {
	Subject  string
	Question model.Question
}

// ImportBank stores the questions of one file and records its hash in a
// single transaction. Subjects are created by name as needed. On any error
// nothing is stored, so the file can be imported again.
func (s *Store) ImportBank(ctx context.Context, path, hash string, items []BankQuestion) (int, error) {
	subjects := make(map[string]int64)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, it := range items {
			sid, ok := subjects[it.Subject]
			if !ok {
				var err error
				if sid, err = s.ensureSubject(ctx, tx, it.Subject); err != nil {
					return fmt.Errorf("subject %q: %w", it.Subject, err)
				}
				subjects[it.Subject] = sid
			}
			q := it.Question
			q.SubjectID = sid
			if _, err := s.insertQuestion(ctx, tx, q); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return s.setImportedFileHash(ctx, tx, path, hash)
	})
	if err != nil {
		return 0, err
	}
	slog.Info("imported questions", "path", path, "count", len(items), "subjects", len(subjects))
	return len(items), nil
}
