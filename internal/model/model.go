package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the tiers in canonical assembly order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionType distinguishes auto-graded from manually graded questions.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionEssay          QuestionType = "essay"
)

// Subject groups questions.
type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is a question bank entry.
type Question struct {
	ID           int64        `json:"id"`
	SubjectID    int64        `json:"subject_id"`
	Difficulty   Difficulty   `json:"difficulty"`
	Type         QuestionType `json:"type"`
	Text         string       `json:"text"`
	Alternatives []string     `json:"alternatives,omitempty"`
	CorrectIndex int          `json:"correct_index"`
	Points       float64      `json:"points"`
	Active       bool         `json:"active"`
	TimesUsed    int64        `json:"times_used"`
	TimesCorrect int64        `json:"times_correct"`
}

// CorrectRate is the share of gradings in which the question was answered correctly.
func (q Question) CorrectRate() float64 {
	if q.TimesUsed == 0 {
		return 0
	}
	return float64(q.TimesCorrect) / float64(q.TimesUsed)
}

// Distribution is the per-difficulty question count of an exam.
type Distribution struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// Total returns the number of questions the distribution asks for.
func (d Distribution) Total() int {
	return d.Easy + d.Medium + d.Hard
}

// Count returns the requested count for one tier.
func (d Distribution) Count(tier Difficulty) int {
	switch tier {
	case DifficultyEasy:
		return d.Easy
	case DifficultyMedium:
		return d.Medium
	case DifficultyHard:
		return d.Hard
	}
	return 0
}

// ExamStatus is the lifecycle state of an exam.
type ExamStatus string

const (
	ExamDraft   ExamStatus = "draft"
	ExamActive  ExamStatus = "active"
	ExamExpired ExamStatus = "expired"
)

// Exam is an exam definition.
type Exam struct {
	ID                    int64        `json:"id"`
	Title                 string       `json:"title"`
	SubjectIDs            []int64      `json:"subject_ids"`
	TotalQuestions        int          `json:"total_questions"`
	Distribution          Distribution `json:"distribution"`
	VariationCount        int          `json:"variation_count"`
	PassingScore          float64      `json:"passing_score"`
	RandomizeQuestions    bool         `json:"randomize_questions"`
	RandomizeAlternatives bool         `json:"randomize_alternatives"`
	Published             bool         `json:"published"`
	ExpiresAt             *time.Time   `json:"expires_at,omitempty"`
	Generation            int          `json:"generation"`
	CreatedAt             time.Time    `json:"created_at"`
}

// VariationQuestion is one question as presented in a variation.
// Alternatives are already in presentation order.
type VariationQuestion struct {
	QuestionID   int64        `json:"question_id"`
	Type         QuestionType `json:"type"`
	Difficulty   Difficulty   `json:"difficulty"`
	Text         string       `json:"text"`
	Points       float64      `json:"points"`
	Alternatives []string     `json:"alternatives,omitempty"`
	Order        []int        `json:"order,omitempty"` // Order[k] is the original index shown at position k
	CorrectIndex int          `json:"correct_index"`
}

// Variation is an immutable, generated version of an exam.
type Variation struct {
	ID         string              `json:"id"`
	ExamID     int64               `json:"exam_id"`
	Generation int                 `json:"generation"`
	CreatedAt  time.Time           `json:"created_at"`
	Questions  []VariationQuestion `json:"questions"`
}

// TotalPoints sums the points of every question in the variation.
func (v Variation) TotalPoints() float64 {
	var total float64
	for _, q := range v.Questions {
		total += q.Points
	}
	return total
}

// SubmissionStatus represents the status of a submission.
type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "submitted"
	StatusGraded    SubmissionStatus = "graded"
	StatusReviewed  SubmissionStatus = "reviewed"
)

// SubmissionStatuses lists every submission status in lifecycle order.
var SubmissionStatuses = []SubmissionStatus{StatusSubmitted, StatusGraded, StatusReviewed}

// Answer is a student's answer at one presentation position.
// A nil Choice and empty Text means unanswered.
type Answer struct {
	Choice *int   `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Answered reports whether the student gave any answer.
func (a Answer) Answered() bool {
	return a.Choice != nil || a.Text != ""
}

// Submission is one student's answer set for a variation.
type Submission struct {
	ID            int64            `json:"id"`
	ExamID        int64            `json:"exam_id"`
	VariationID   string           `json:"variation_id"`
	StudentID     int64            `json:"student_id"`
	Answers       []Answer         `json:"answers"`
	Status        SubmissionStatus `json:"status"`
	Score         *float64         `json:"score,omitempty"`
	CorrectCount  int              `json:"correct_count"`
	Percentage    float64          `json:"percentage"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	GradedAt      *time.Time       `json:"graded_at,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy    *int64           `json:"reviewed_by,omitempty"`
	ReviewComment string           `json:"review_comment,omitempty"`
}

// ItemResult is the grading outcome at one presentation position.
type ItemResult struct {
	Position   int     `json:"position"`
	QuestionID int64   `json:"question_id"`
	Answered   bool    `json:"answered"`
	Correct    bool    `json:"correct"`
	Manual     bool    `json:"manual"`
	Points     float64 `json:"points"`
	Earned     float64 `json:"earned"`
}

// GradeResult is the outcome of grading a submission.
type GradeResult struct {
	SubmissionID   int64        `json:"submission_id,omitempty"`
	Score          float64      `json:"score"`
	CorrectCount   int          `json:"correct_count"`
	TotalQuestions int          `json:"total_questions"`
	Percentage     float64      `json:"percentage"`
	EarnedPoints   float64      `json:"earned_points"`
	TotalPoints    float64      `json:"total_points"`
	Passing        bool         `json:"passing"`
	Items          []ItemResult `json:"items"`
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Subject      string       `json:"subject"`
	Text         string       `json:"text"`
	Difficulty   Difficulty   `json:"difficulty"`
	Type         QuestionType `json:"type"`
	Alternatives []string     `json:"alternatives"`
	CorrectIndex int          `json:"correct_index"`
	Points       float64      `json:"points"`
}
