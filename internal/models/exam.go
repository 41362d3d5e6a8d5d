package models

import "time"

type PaperStatus string

const (
	PaperDraft           PaperStatus = "DRAFT"
	PaperQuestionsAdded  PaperStatus = "QUESTIONS_ADDED"
	PaperResponsesSet    PaperStatus = "RESPONSES_SET"
	PaperModerationReady PaperStatus = "MODERATION_READY"
	PaperGradingActive   PaperStatus = "GRADING_ACTIVE"
	PaperCompleted       PaperStatus = "COMPLETED"
	PaperError           PaperStatus = "ERROR"
)

type QuestionType string

const (
	QuestionMCQ         QuestionType = "MCQ"
	QuestionTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionShortAnswer QuestionType = "SHORT_ANSWER"
	QuestionLongAnswer  QuestionType = "LONG_ANSWER"
	QuestionNumeric     QuestionType = "NUMERIC"
	QuestionOther       QuestionType = "OTHER"
)

var ValidQuestionTypes = map[QuestionType]bool{
	QuestionMCQ:         true,
	QuestionTrueFalse:   true,
	QuestionShortAnswer: true,
	QuestionLongAnswer:  true,
	QuestionNumeric:     true,
	QuestionOther:       true,
}

// ── Core Structs ───────────────────────────────────────

type ExamPaper struct {
	ID              int64       `json:"id"`
	TeacherID       int64       `json:"teacher_id"`
	Title           string      `json:"title"`
	Subject         string      `json:"subject,omitempty"`
	TotalMarks      float64     `json:"total_marks"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          PaperStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type Question struct {
	ID             int64        `json:"id"`
	ExamPaperID    int64        `json:"exam_paper_id"`
	QuestionNumber int          `json:"question_number"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Marks          float64      `json:"marks"`
	CreatedAt      time.Time    `json:"created_at"`
}

// MarkingScheme is the typed replacement for the origin system's free-form
// marking_scheme blob: exactly the fields relevant to the question type are
// set, validated once at the boundary.
type MarkingScheme struct {
	Type             QuestionType      `json:"type"`
	CorrectOption    string            `json:"correct_option,omitempty"`
	BoolAnswer       *bool             `json:"bool_answer,omitempty"`
	NumericValue     *float64          `json:"numeric_value,omitempty"`
	NumericTolerance *float64          `json:"numeric_tolerance,omitempty"`
	Keywords         []WeightedKeyword `json:"keywords,omitempty"`
	RubricCriteria   []RubricCriterion `json:"rubric_criteria,omitempty"`
}

type WeightedKeyword struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

type RubricCriterion struct {
	Description string  `json:"description"`
	Marks       float64 `json:"marks"`
}

type ExpectedResponse struct {
	ID            int64          `json:"id"`
	QuestionID    int64          `json:"question_id"`
	ExamPaperID   int64          `json:"exam_paper_id"`
	Answer        string         `json:"answer"`
	MarkingScheme *MarkingScheme `json:"marking_scheme,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
	IsAIGenerated bool           `json:"is_ai_generated"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type ModerationSample struct {
	ID          int64             `json:"id"`
	ExamPaperID int64             `json:"exam_paper_id"`
	Label       string            `json:"label,omitempty"`
	TotalScore  float64           `json:"total_score"`
	IsVerified  bool              `json:"is_verified"`
	Entries     []ModerationEntry `json:"entries"`
	CreatedAt   time.Time         `json:"created_at"`
}

type ModerationEntry struct {
	ID         int64   `json:"id"`
	SampleID   int64   `json:"sample_id"`
	QuestionID int64   `json:"question_id"`
	AnswerText string  `json:"answer_text"`
	Score      float64 `json:"score"`
}

// ── Request Types ─────────────────────────────────────

type CreatePaperRequest struct {
	Title           string  `json:"title"`
	Subject         string  `json:"subject,omitempty"`
	TotalMarks      float64 `json:"total_marks"`
	DurationMinutes int     `json:"duration_minutes"`
}

type AddQuestionRequest struct {
	QuestionNumber int          `json:"question_number"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Marks          float64      `json:"marks"`
}

type ExpectedResponseInput struct {
	QuestionID    int64          `json:"question_id"`
	Answer        string         `json:"answer"`
	MarkingScheme *MarkingScheme `json:"marking_scheme,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
}

type SetExpectedResponsesRequest struct {
	Responses []ExpectedResponseInput `json:"responses"`
}

type ModerationEntryInput struct {
	QuestionID int64   `json:"question_id"`
	AnswerText string  `json:"answer_text"`
	Score      float64 `json:"score"`
}

type AddModerationSampleRequest struct {
	Label   string                 `json:"label,omitempty"`
	Entries []ModerationEntryInput `json:"entries"`
}

// ── Response Types ────────────────────────────────────

type PaperListResponse struct {
	Papers []ExamPaper `json:"papers"`
	Total  int         `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
