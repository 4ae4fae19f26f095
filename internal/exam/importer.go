package exam

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

// ImportResult summarizes one question file import.
type ImportResult struct {
	Name     string `json:"name"`
	Imported int    `json:"imported"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
}

// ImportQuestions loads a JSON array of questions. Files are keyed by name
// and content hash: an unchanged file is skipped, and a changed file is also
// skipped so existing variations keep pointing at the questions they were
// drawn from. A file is imported completely or not at all.
func (s *Service) ImportQuestions(ctx context.Context, name string, data []byte) (ImportResult, error) {
	res := ImportResult{Name: name}
	hash := sha256sum(data)

	storedHash, err := s.store.GetImportedFileHash(ctx, name)
	if err != nil {
		return res, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if storedHash == hash {
		slog.Info("questions file unchanged, skipping", "name", name)
		res.Skipped, res.Reason = true, "unchanged"
		return res, nil
	}
	if storedHash != "" {
		slog.Warn("questions file changed since last import, skipping", "name", name)
		res.Skipped, res.Reason = true, "changed since last import"
		return res, nil
	}

	var items []model.QuestionImport
	if err := json.Unmarshal(data, &items); err != nil {
		return res, fmt.Errorf("parse %s: %w", name, &model.ValidationError{Field: "file", Reason: err.Error()})
	}

	bank := make([]store.BankQuestion, len(items))
	for i, qi := range items {
		if strings.TrimSpace(qi.Subject) == "" {
			return res, fmt.Errorf("%s item %d: %w", name, i, &model.ValidationError{Field: "subject", Reason: "must not be empty"})
		}
		bank[i] = store.BankQuestion{Subject: qi.Subject, Question: fromImport(qi)}
	}

	res.Imported, err = s.store.ImportBank(ctx, name, hash, bank)
	if err != nil {
		return res, fmt.Errorf("import %s: %w", name, err)
	}
	return res, nil
}

func fromImport(qi model.QuestionImport) model.Question {
	typ := qi.Type
	if typ == "" {
		typ = model.QuestionMultipleChoice
	}
	points := qi.Points
	if points == 0 {
		points = 1
	}
	return model.Question{
		Difficulty:   qi.Difficulty,
		Type:         typ,
		Text:         qi.Text,
		Alternatives: qi.Alternatives,
		CorrectIndex: qi.CorrectIndex,
		Points:       points,
	}
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
