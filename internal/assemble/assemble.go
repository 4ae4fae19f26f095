// Package assemble draws exam variations from the question bank.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examgen/internal/model"
)

// QuestionSource returns every active question of the given subjects at one
// difficulty tier.
type QuestionSource interface {
	FindByDifficulty(ctx context.Context, subjectIDs []int64, tier model.Difficulty) ([]model.Question, error)
}

// Request describes one assembly call.
type Request struct {
	ExamID                int64
	Generation            int
	SubjectIDs            []int64
	Distribution          model.Distribution
	VariationCount        int
	RandomizeQuestions    bool
	RandomizeAlternatives bool
}

// RequestForExam builds the request that regenerates e's variations as the
// next generation.
func RequestForExam(e model.Exam) Request {
	return Request{
		ExamID:                e.ID,
		Generation:            e.Generation + 1,
		SubjectIDs:            e.SubjectIDs,
		Distribution:          e.Distribution,
		VariationCount:        e.VariationCount,
		RandomizeQuestions:    e.RandomizeQuestions,
		RandomizeAlternatives: e.RandomizeAlternatives,
	}
}

// Assembler produces variations. It is safe for concurrent use.
type Assembler struct {
	src QuestionSource
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRand sets the random source. Tests pass a seeded source to get
// reproducible variations.
func WithRand(r *rand.Rand) Option { return func(a *Assembler) { a.rng = r } }

// WithClock sets the clock used to stamp variations.
func WithClock(now func() time.Time) Option { return func(a *Assembler) { a.now = now } }

// New creates an Assembler reading questions from src.
func New(src QuestionSource, opts ...Option) *Assembler {
	a := &Assembler{
		src: src,
		now: time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return a
}

// Assemble draws req.VariationCount independent variations. Every tier's
// pool is checked before anything is drawn, so an error never comes with a
// partial result.
func (a *Assembler) Assemble(ctx context.Context, req Request) ([]model.Variation, error) {
	if err := model.ValidateDistribution(req.Distribution, req.Distribution.Total()); err != nil {
		return nil, err
	}
	if req.Distribution.Total() == 0 {
		return nil, &model.InvalidDistributionError{Distribution: req.Distribution, Total: 0}
	}
	if req.VariationCount < 1 {
		return nil, &model.ValidationError{Field: "variation_count", Reason: "must be at least 1"}
	}

	pools := make(map[model.Difficulty][]model.Question, len(model.Difficulties))
	for _, tier := range model.Difficulties {
		want := req.Distribution.Count(tier)
		if want == 0 {
			continue
		}
		pool, err := a.src.FindByDifficulty(ctx, req.SubjectIDs, tier)
		if err != nil {
			return nil, fmt.Errorf("load %s questions: %w", tier, err)
		}
		pool = eligible(pool)
		if len(pool) < want {
			return nil, &model.InsufficientQuestionsError{Difficulty: tier, Requested: want, Available: len(pool)}
		}
		pools[tier] = pool
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	created := a.now().UTC()
	variations := make([]model.Variation, 0, req.VariationCount)
	for i := 0; i < req.VariationCount; i++ {
		v := model.Variation{
			ID:         uuid.NewString(),
			ExamID:     req.ExamID,
			Generation: req.Generation,
			CreatedAt:  created,
			Questions:  a.drawQuestions(pools, req),
		}
		variations = append(variations, v)
	}

	slog.Debug("assembled variations",
		"exam_id", req.ExamID,
		"generation", req.Generation,
		"count", len(variations),
		"questions", req.Distribution.Total(),
	)
	return variations, nil
}

// drawQuestions builds one variation's question list. Caller holds a.mu.
func (a *Assembler) drawQuestions(pools map[model.Difficulty][]model.Question, req Request) []model.VariationQuestion {
	selected := make([]model.Question, 0, req.Distribution.Total())
	for _, tier := range model.Difficulties {
		n := req.Distribution.Count(tier)
		if n == 0 {
			continue
		}
		selected = append(selected, sample(a.rng, pools[tier], n)...)
	}

	if req.RandomizeQuestions {
		a.rng.Shuffle(len(selected), func(i, j int) {
			selected[i], selected[j] = selected[j], selected[i]
		})
	}

	out := make([]model.VariationQuestion, len(selected))
	for i, q := range selected {
		out[i] = a.present(q, req.RandomizeAlternatives)
	}
	return out
}

// present snapshots q for a variation, shuffling its alternatives if asked.
func (a *Assembler) present(q model.Question, shuffle bool) model.VariationQuestion {
	vq := model.VariationQuestion{
		QuestionID: q.ID,
		Type:       q.Type,
		Difficulty: q.Difficulty,
		Text:       q.Text,
		Points:     q.Points,
	}
	if q.Type != model.QuestionMultipleChoice {
		return vq
	}

	order := identity(len(q.Alternatives))
	if shuffle {
		order = permutation(a.rng, len(q.Alternatives))
	}
	vq.Order = order
	vq.Alternatives, vq.CorrectIndex = applyOrder(q.Alternatives, q.CorrectIndex, order)
	return vq
}

func eligible(pool []model.Question) []model.Question {
	out := pool[:0:0]
	for _, q := range pool {
		if q.Active {
			out = append(out, q)
		}
	}
	return out
}
