package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	ExamID       int64           `json:"exam_id"`
	Title        string          `json:"title"`
	PassingScore float64         `json:"passing_score"`
	NumQuestions int             `json:"num_questions"`
	ExportedAt   time.Time       `json:"exported_at"`
	Results      []StudentResult `json:"results"`
}

// StudentResult holds one student's submission for export.
type StudentResult struct {
	Username         string           `json:"username"`
	DisplayName      string           `json:"display_name"`
	SubmissionNumber int              `json:"submission_number"`
	VariationID      string           `json:"variation_id"`
	Status           SubmissionStatus `json:"status"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	Score            *float64         `json:"score,omitempty"`
	CorrectCount     int              `json:"correct_count"`
	Percentage       float64          `json:"percentage"`
	Passing          bool             `json:"passing"`
	Questions        []QuestionResult `json:"questions"`
}

// QuestionResult holds per-position data for export.
type QuestionResult struct {
	Position     int          `json:"position"`
	QuestionID   int64        `json:"question_id"`
	Text         string       `json:"text"`
	Type         QuestionType `json:"type"`
	Difficulty   Difficulty   `json:"difficulty"`
	Points       float64      `json:"points"`
	Alternatives []string     `json:"alternatives,omitempty"`
	CorrectIndex *int         `json:"correct_index,omitempty"`
	Answer       Answer       `json:"answer"`
}
