package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestSubject(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateSubject(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	return id
}

func insertTestQuestion(t *testing.T, s *Store, subjectID int64, text string, difficulty model.Difficulty) int64 {
	t.Helper()
	id, err := s.InsertQuestion(context.Background(), model.Question{
		SubjectID:    subjectID,
		Difficulty:   difficulty,
		Type:         model.QuestionMultipleChoice,
		Text:         text,
		Alternatives: []string{"yes", "no", "maybe"},
		CorrectIndex: 1,
		Points:       1,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func insertTestExam(t *testing.T, s *Store, subjectID int64) int64 {
	t.Helper()
	id, err := s.CreateExam(context.Background(), model.Exam{
		Title:          "Midterm",
		SubjectIDs:     []int64{subjectID},
		TotalQuestions: 1,
		Distribution:   model.Distribution{Easy: 1},
		VariationCount: 1,
		PassingScore:   6,
	}, time.Now())
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return id
}

func testVariation(id string, examID int64, generation int, questionIDs ...int64) model.Variation {
	v := model.Variation{ID: id, ExamID: examID, Generation: generation, CreatedAt: time.Now()}
	for _, qid := range questionIDs {
		v.Questions = append(v.Questions, model.VariationQuestion{
			QuestionID:   qid,
			Type:         model.QuestionMultipleChoice,
			Difficulty:   model.DifficultyEasy,
			Text:         "q",
			Points:       1,
			Alternatives: []string{"maybe", "yes", "no"},
			Order:        []int{2, 0, 1},
			CorrectIndex: 2,
		})
	}
	return v
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	got := pg.rebind(`SELECT a FROM t WHERE x = ? AND y IN (?, ?)`)
	want := `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := &Store{driver: DriverSQLite}
	if q := `SELECT ?`; lite.rebind(q) != q {
		t.Errorf("sqlite rebind changed query: %q", lite.rebind(q))
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New("oracle", ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSubjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertTestSubject(t, s, "Physics")
	if _, err := s.CreateSubject(ctx, "Physics"); err == nil {
		t.Error("expected duplicate subject name to fail")
	}
	var ve *model.ValidationError
	if _, err := s.CreateSubject(ctx, "   "); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for blank name, got %v", err)
	}

	again, err := s.EnsureSubject(ctx, "Physics")
	if err != nil {
		t.Fatalf("EnsureSubject: %v", err)
	}
	if again != id {
		t.Errorf("EnsureSubject returned %d, want %d", again, id)
	}
	chem, err := s.EnsureSubject(ctx, "Chemistry")
	if err != nil {
		t.Fatalf("EnsureSubject new: %v", err)
	}

	list, err := s.ListSubjects(ctx)
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(list) != 2 || list[0].ID != chem {
		t.Errorf("expected Chemistry first of 2 subjects, got %+v", list)
	}

	if _, err := s.GetSubject(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")

	// Empty DB should return zero count and empty list.
	count, err := s.QuestionCount(ctx)
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	id := insertTestQuestion(t, s, sub, "What is Go?", model.DifficultyEasy)
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Text != "What is Go?" {
		t.Errorf("expected text 'What is Go?', got %q", q.Text)
	}
	if !q.Active {
		t.Error("new question should be active")
	}
	if len(q.Alternatives) != 3 || q.CorrectIndex != 1 {
		t.Errorf("alternatives not round-tripped: %+v", q)
	}

	essayID, err := s.InsertQuestion(ctx, model.Question{
		SubjectID: sub, Difficulty: model.DifficultyHard, Type: model.QuestionEssay,
		Text: "Explain channels.", Alternatives: []string{"ignored"}, CorrectIndex: 3, Points: 5,
	})
	if err != nil {
		t.Fatalf("InsertQuestion essay: %v", err)
	}
	essay, err := s.GetQuestion(ctx, essayID)
	if err != nil {
		t.Fatalf("GetQuestion essay: %v", err)
	}
	if essay.Alternatives != nil || essay.CorrectIndex != 0 {
		t.Errorf("essay should carry no key: %+v", essay)
	}

	// Not found.
	if _, err := s.GetQuestion(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Invalid question is rejected before reaching the database.
	var ve *model.ValidationError
	if _, err := s.InsertQuestion(ctx, model.Question{SubjectID: sub, Difficulty: "trivial", Type: model.QuestionEssay, Text: "x", Points: 1}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	hard, err := s.ListQuestions(ctx, QuestionFilter{Difficulty: model.DifficultyHard})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(hard) != 1 || hard[0].ID != essayID {
		t.Errorf("expected only the essay in hard filter, got %+v", hard)
	}
}

func TestFindByDifficulty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := insertTestSubject(t, s, "A")
	b := insertTestSubject(t, s, "B")
	c := insertTestSubject(t, s, "C")

	q1 := insertTestQuestion(t, s, a, "a1", model.DifficultyEasy)
	insertTestQuestion(t, s, a, "a2", model.DifficultyMedium)
	q3 := insertTestQuestion(t, s, b, "b1", model.DifficultyEasy)
	q4 := insertTestQuestion(t, s, b, "b2", model.DifficultyEasy)
	insertTestQuestion(t, s, c, "c1", model.DifficultyEasy)

	if err := s.DeactivateQuestion(ctx, q4); err != nil {
		t.Fatalf("DeactivateQuestion: %v", err)
	}

	got, err := s.FindByDifficulty(ctx, []int64{b, a}, model.DifficultyEasy)
	if err != nil {
		t.Fatalf("FindByDifficulty: %v", err)
	}
	if len(got) != 2 || got[0].ID != q1 || got[1].ID != q3 {
		t.Errorf("expected [%d %d] ordered by id, got %+v", q1, q3, got)
	}

	none, err := s.FindByDifficulty(ctx, nil, model.DifficultyEasy)
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty pool for no subjects, got %v %v", none, err)
	}

	if err := s.DeactivateQuestion(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteQuestionInUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	used := insertTestQuestion(t, s, sub, "used", model.DifficultyEasy)
	free := insertTestQuestion(t, s, sub, "free", model.DifficultyEasy)
	exam := insertTestExam(t, s, sub)

	if err := s.ReplaceVariations(ctx, exam, 0, []model.Variation{testVariation("v1", exam, 1, used)}, false); err != nil {
		t.Fatalf("ReplaceVariations: %v", err)
	}

	if err := s.DeleteQuestion(ctx, used); !errors.Is(err, model.ErrQuestionInUse) {
		t.Errorf("expected ErrQuestionInUse, got %v", err)
	}
	if err := s.DeleteQuestion(ctx, free); err != nil {
		t.Errorf("DeleteQuestion: %v", err)
	}
	if err := s.DeleteQuestion(ctx, free); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestExamCreateGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	other := insertTestSubject(t, s, "Rust")
	expires := time.Now().Add(48 * time.Hour).Truncate(time.Second)

	id, err := s.CreateExam(ctx, model.Exam{
		Title:                 "  Final  ",
		SubjectIDs:            []int64{other, sub, other},
		TotalQuestions:        3,
		Distribution:          model.Distribution{Easy: 2, Medium: 1},
		VariationCount:        4,
		PassingScore:          7,
		RandomizeQuestions:    true,
		RandomizeAlternatives: true,
		Published:             true,
		ExpiresAt:             &expires,
	}, time.Now())
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	e, err := s.GetExam(ctx, id)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if e.Title != "Final" || e.Published || e.Generation != 0 {
		t.Errorf("unexpected exam: %+v", e)
	}
	if len(e.SubjectIDs) != 2 {
		t.Errorf("expected 2 deduplicated subjects, got %v", e.SubjectIDs)
	}
	if e.Distribution != (model.Distribution{Easy: 2, Medium: 1}) {
		t.Errorf("distribution = %+v", e.Distribution)
	}
	if e.ExpiresAt == nil || !e.ExpiresAt.Equal(expires) {
		t.Errorf("expires_at = %v, want %v", e.ExpiresAt, expires)
	}
	if !e.RandomizeQuestions || !e.RandomizeAlternatives {
		t.Error("randomization flags not stored")
	}

	var ve *model.ValidationError
	if _, err := s.CreateExam(ctx, model.Exam{
		Title: "x", SubjectIDs: []int64{9999}, TotalQuestions: 1,
		Distribution: model.Distribution{Easy: 1}, VariationCount: 1,
	}, time.Now()); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for unknown subject, got %v", err)
	}

	list, err := s.ListExams(ctx)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 exam, got %d", len(list))
	}

	if _, err := s.GetExam(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateExamUsesGivenTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "History")

	now := time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		expires time.Time
		wantErr bool
	}{
		{"after now but already past on the wall clock", now.Add(time.Hour), false},
		{"equal to now", now, true},
		{"before now", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expires := tt.expires
			id, err := s.CreateExam(ctx, model.Exam{
				Title: "Quiz", SubjectIDs: []int64{sub}, TotalQuestions: 1,
				Distribution: model.Distribution{Easy: 1}, VariationCount: 1, ExpiresAt: &expires,
			}, now)
			if tt.wantErr {
				var ve *model.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateExam: %v", err)
			}
			e, err := s.GetExam(ctx, id)
			if err != nil {
				t.Fatalf("GetExam: %v", err)
			}
			if !e.CreatedAt.Equal(now) {
				t.Errorf("created_at = %v, want %v", e.CreatedAt, now)
			}
		})
	}
}

func TestReplaceVariations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	q := insertTestQuestion(t, s, sub, "q", model.DifficultyEasy)
	exam := insertTestExam(t, s, sub)

	first := []model.Variation{testVariation("g1-a", exam, 1, q), testVariation("g1-b", exam, 1, q)}
	if err := s.ReplaceVariations(ctx, exam, 0, first, true); err != nil {
		t.Fatalf("ReplaceVariations gen 1: %v", err)
	}
	e, err := s.GetExam(ctx, exam)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if e.Generation != 1 || !e.Published {
		t.Fatalf("expected published generation 1, got %+v", e)
	}

	v, err := s.GetVariation(ctx, "g1-a")
	if err != nil {
		t.Fatalf("GetVariation: %v", err)
	}
	if len(v.Questions) != 1 || v.Questions[0].CorrectIndex != 2 || v.Questions[0].Order[0] != 2 {
		t.Errorf("variation snapshot not round-tripped: %+v", v.Questions)
	}

	// A student submits against g1-a, so it must survive regeneration.
	if _, err := s.CreateSubmission(ctx, model.Submission{ExamID: exam, VariationID: "g1-a", StudentID: 7, SubmittedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	// Stale generation loses.
	err = s.ReplaceVariations(ctx, exam, 0, []model.Variation{testVariation("stale", exam, 1, q)}, false)
	if !errors.Is(err, model.ErrConcurrentRegeneration) {
		t.Fatalf("expected ErrConcurrentRegeneration, got %v", err)
	}
	if _, err := s.GetVariation(ctx, "stale"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("stale variation must not be written, got %v", err)
	}

	second := []model.Variation{testVariation("g2-a", exam, 2, q)}
	if err := s.ReplaceVariations(ctx, exam, 1, second, false); err != nil {
		t.Fatalf("ReplaceVariations gen 2: %v", err)
	}

	current, err := s.ListVariations(ctx, exam, 0)
	if err != nil {
		t.Fatalf("ListVariations: %v", err)
	}
	if len(current) != 1 || current[0].ID != "g2-a" {
		t.Errorf("expected current generation [g2-a], got %+v", current)
	}
	if _, err := s.GetVariation(ctx, "g1-a"); err != nil {
		t.Errorf("variation with submissions must stay readable: %v", err)
	}
	if _, err := s.GetVariation(ctx, "g1-b"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("superseded unused variation should be pruned, got %v", err)
	}

	if err := s.ReplaceVariations(ctx, 9999, 0, nil, false); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing exam, got %v", err)
	}
	if err := s.ReplaceVariations(ctx, exam, 2, []model.Variation{testVariation("x", exam, 9, q)}, false); err == nil {
		t.Error("expected error for mismatched generation")
	}
}

func TestCommitGrade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	q1 := insertTestQuestion(t, s, sub, "q1", model.DifficultyEasy)
	q2 := insertTestQuestion(t, s, sub, "q2", model.DifficultyEasy)
	exam := insertTestExam(t, s, sub)
	if err := s.ReplaceVariations(ctx, exam, 0, []model.Variation{testVariation("v", exam, 1, q1, q2)}, true); err != nil {
		t.Fatalf("ReplaceVariations: %v", err)
	}

	choice := 2
	id, err := s.CreateSubmission(ctx, model.Submission{
		ExamID: exam, VariationID: "v", StudentID: 1,
		Answers: []model.Answer{{Choice: &choice}}, SubmittedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	res := model.GradeResult{
		Score: 5, CorrectCount: 1, Percentage: 50,
		Items: []model.ItemResult{{QuestionID: q1, Correct: true}, {QuestionID: q2}},
	}
	if err := s.CommitGrade(ctx, id, res, time.Now()); err != nil {
		t.Fatalf("CommitGrade: %v", err)
	}

	got, err := s.GetSubmission(ctx, id)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Status != model.StatusGraded || got.Score == nil || *got.Score != 5 || got.GradedAt == nil {
		t.Errorf("unexpected graded submission: %+v", got)
	}
	if len(got.Answers) != 1 || got.Answers[0].Choice == nil || *got.Answers[0].Choice != 2 {
		t.Errorf("answers not round-tripped: %+v", got.Answers)
	}

	var age *model.AlreadyGradedError
	if err := s.CommitGrade(ctx, id, model.GradeResult{Score: 10, Items: res.Items}, time.Now()); !errors.As(err, &age) {
		t.Fatalf("expected AlreadyGradedError, got %v", err)
	}
	if age.Status != model.StatusGraded {
		t.Errorf("AlreadyGradedError status = %q", age.Status)
	}

	question1, _ := s.GetQuestion(ctx, q1)
	question2, _ := s.GetQuestion(ctx, q2)
	if question1.TimesUsed != 1 || question1.TimesCorrect != 1 {
		t.Errorf("q1 counters = %d/%d, want 1/1", question1.TimesUsed, question1.TimesCorrect)
	}
	if question2.TimesUsed != 1 || question2.TimesCorrect != 0 {
		t.Errorf("q2 counters = %d/%d, want 1/0", question2.TimesUsed, question2.TimesCorrect)
	}

	if err := s.CommitGrade(ctx, 9999, res, time.Now()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitGradeConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	q := insertTestQuestion(t, s, sub, "q", model.DifficultyEasy)
	exam := insertTestExam(t, s, sub)
	if err := s.ReplaceVariations(ctx, exam, 0, []model.Variation{testVariation("v", exam, 1, q)}, true); err != nil {
		t.Fatalf("ReplaceVariations: %v", err)
	}
	id, err := s.CreateSubmission(ctx, model.Submission{ExamID: exam, VariationID: "v", StudentID: 1, SubmittedAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	const workers = 8
	res := model.GradeResult{Score: 10, CorrectCount: 1, Percentage: 100, Items: []model.ItemResult{{QuestionID: q, Correct: true}}}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, lost int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CommitGrade(ctx, id, res, time.Now())
			mu.Lock()
			defer mu.Unlock()
			var age *model.AlreadyGradedError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &age):
				lost++
			default:
				t.Errorf("CommitGrade: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || lost != workers-1 {
		t.Errorf("expected exactly one winner, got ok=%d lost=%d", ok, lost)
	}
	got, _ := s.GetQuestion(ctx, q)
	if got.TimesUsed != 1 || got.TimesCorrect != 1 {
		t.Errorf("counters = %d/%d, want 1/1", got.TimesUsed, got.TimesCorrect)
	}
}

func TestReviewSubmission(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	q := insertTestQuestion(t, s, sub, "q", model.DifficultyEasy)
	exam := insertTestExam(t, s, sub)
	if err := s.ReplaceVariations(ctx, exam, 0, []model.Variation{testVariation("v", exam, 1, q)}, true); err != nil {
		t.Fatalf("ReplaceVariations: %v", err)
	}
	id, err := s.CreateSubmission(ctx, model.Submission{ExamID: exam, VariationID: "v", StudentID: 1, SubmittedAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	if err := s.ReviewSubmission(ctx, id, 8, "early", 2, time.Now()); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition before grading, got %v", err)
	}

	if err := s.CommitGrade(ctx, id, model.GradeResult{Score: 4}, time.Now()); err != nil {
		t.Fatalf("CommitGrade: %v", err)
	}
	if err := s.ReviewSubmission(ctx, id, 8, "essay was fine", 2, time.Now()); err != nil {
		t.Fatalf("ReviewSubmission: %v", err)
	}
	if err := s.ReviewSubmission(ctx, id, 9, "second look", 3, time.Now()); err != nil {
		t.Fatalf("re-review: %v", err)
	}

	got, err := s.GetSubmission(ctx, id)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Status != model.StatusReviewed || *got.Score != 9 || got.ReviewComment != "second look" {
		t.Errorf("unexpected reviewed submission: %+v", got)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != 3 || got.ReviewedAt == nil {
		t.Errorf("reviewer not recorded: %+v", got)
	}

	var age *model.AlreadyGradedError
	if err := s.CommitGrade(ctx, id, model.GradeResult{Score: 1}, time.Now()); !errors.As(err, &age) {
		t.Fatalf("expected AlreadyGradedError for a reviewed submission, got %v", err)
	}
	if age.Status != model.StatusReviewed {
		t.Errorf("AlreadyGradedError status = %q, want reviewed", age.Status)
	}
	if got, _ := s.GetSubmission(ctx, id); got.Score == nil || *got.Score != 9 {
		t.Errorf("reviewer score overwritten: %+v", got.Score)
	}

	if err := s.ReviewSubmission(ctx, 9999, 5, "", 1, time.Now()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExamCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	q := insertTestQuestion(t, s, sub, "q", model.DifficultyEasy)
	exam := insertTestExam(t, s, sub)
	if err := s.ReplaceVariations(ctx, exam, 0, []model.Variation{testVariation("v", exam, 1, q)}, true); err != nil {
		t.Fatalf("ReplaceVariations: %v", err)
	}
	if _, err := s.CreateSubmission(ctx, model.Submission{ExamID: exam, VariationID: "v", StudentID: 1, SubmittedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	if err := s.DeleteExam(ctx, exam); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, err := s.GetVariation(ctx, "v"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("variation should be gone, got %v", err)
	}
	if err := s.DeleteQuestion(ctx, q); err != nil {
		t.Errorf("question should be deletable once unreferenced: %v", err)
	}
}

func TestUsersAndAuthSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, model.User{Username: "ana", DisplayName: "Ana", PasswordHash: "x", Role: model.UserRoleTeacher, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := s.GetUserByUsername(ctx, "ana")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %v %v", u, err)
	}
	if u.ID != id || u.Role != model.UserRoleTeacher || !u.Active {
		t.Errorf("unexpected user: %+v", u)
	}
	if missing, err := s.GetUserByUsername(ctx, "nobody"); err != nil || missing != nil {
		t.Errorf("expected nil user, got %v %v", missing, err)
	}

	if err := s.ToggleUserActive(ctx, id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(ctx, id)
	if u.Active {
		t.Error("user should be inactive after toggle")
	}
	if n, _ := s.UserCount(ctx); n != 1 {
		t.Errorf("UserCount = %d", n)
	}

	token, err := s.CreateAuthSession(ctx, id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}
	sess, err := s.GetAuthSession(ctx, token)
	if err != nil || sess == nil || sess.UserID != id {
		t.Fatalf("GetAuthSession: %+v %v", sess, err)
	}
	if err := s.DeleteAuthSession(ctx, token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if sess, _ := s.GetAuthSession(ctx, token); sess != nil {
		t.Error("session should be gone")
	}
}

func TestImportBankRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	valid := model.Question{Difficulty: model.DifficultyEasy, Type: model.QuestionMultipleChoice,
		Text: "ok", Alternatives: []string{"a", "b"}, Points: 1}
	invalid := valid
	invalid.Alternatives = []string{"only"}

	if _, err := s.ImportBank(ctx, "bank.json", "h1", []BankQuestion{
		{Subject: "Art", Question: valid},
		{Subject: "Art", Question: invalid},
	}); err == nil {
		t.Fatal("expected an error for the invalid item")
	}
	if n, _ := s.QuestionCount(ctx); n != 0 {
		t.Errorf("QuestionCount = %d, want 0", n)
	}
	if sub, _ := s.GetSubjectByName(ctx, "Art"); sub != nil {
		t.Errorf("subject should be rolled back: %+v", sub)
	}
	if h, _ := s.GetImportedFileHash(ctx, "bank.json"); h != "" {
		t.Errorf("hash recorded after failed import: %q", h)
	}

	n, err := s.ImportBank(ctx, "bank.json", "h2", []BankQuestion{
		{Subject: "Art", Question: valid},
		{Subject: "Music", Question: valid},
	})
	if err != nil || n != 2 {
		t.Fatalf("ImportBank = %d, %v", n, err)
	}
	if h, _ := s.GetImportedFileHash(ctx, "bank.json"); h != "h2" {
		t.Errorf("hash = %q, want h2", h)
	}
	subjects, _ := s.ListSubjects(ctx)
	if len(subjects) != 2 {
		t.Errorf("expected 2 subjects, got %d", len(subjects))
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h, err := s.GetImportedFileHash(ctx, "bank.json")
	if err != nil || h != "" {
		t.Fatalf("expected empty hash, got %q %v", h, err)
	}
	if err := s.SetImportedFileHash(ctx, "bank.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash(ctx, "bank.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	if h, _ := s.GetImportedFileHash(ctx, "bank.json"); h != "def" {
		t.Errorf("hash = %q, want def", h)
	}
}

func TestExportExam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := insertTestSubject(t, s, "Go")
	q := insertTestQuestion(t, s, sub, "q", model.DifficultyEasy)
	exam := insertTestExam(t, s, sub)
	if err := s.ReplaceVariations(ctx, exam, 0, []model.Variation{testVariation("v", exam, 1, q)}, true); err != nil {
		t.Fatalf("ReplaceVariations: %v", err)
	}
	student, err := s.CreateUser(ctx, model.User{Username: "bo", DisplayName: "Bo", PasswordHash: "x", Role: model.UserRoleStudent, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	choice := 2
	graded, _ := s.CreateSubmission(ctx, model.Submission{ExamID: exam, VariationID: "v", StudentID: student, Answers: []model.Answer{{Choice: &choice}}, SubmittedAt: time.Now()})
	if err := s.CommitGrade(ctx, graded, model.GradeResult{Score: 10, CorrectCount: 1, Percentage: 100}, time.Now()); err != nil {
		t.Fatalf("CommitGrade: %v", err)
	}
	if _, err := s.CreateSubmission(ctx, model.Submission{ExamID: exam, VariationID: "v", StudentID: student, SubmittedAt: time.Now().Add(time.Second)}); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	out, err := s.ExportExam(ctx, exam)
	if err != nil {
		t.Fatalf("ExportExam: %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected only the graded submission, got %d", len(out.Results))
	}
	r := out.Results[0]
	if r.Username != "bo" || !r.Passing || r.SubmissionNumber != 1 {
		t.Errorf("unexpected result: %+v", r)
	}
	if len(r.Questions) != 1 || r.Questions[0].CorrectIndex == nil || *r.Questions[0].CorrectIndex != 2 {
		t.Errorf("unexpected questions: %+v", r.Questions)
	}
	if r.Questions[0].Answer.Choice == nil || *r.Questions[0].Answer.Choice != 2 {
		t.Errorf("answer not exported: %+v", r.Questions[0].Answer)
	}
}
