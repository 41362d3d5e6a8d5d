package models

import "time"

type SubmissionStatus string

const (
	SubmissionUploaded   SubmissionStatus = "UPLOADED"
	SubmissionProcessing SubmissionStatus = "PROCESSING"
	SubmissionGraded     SubmissionStatus = "GRADED"
	SubmissionReviewed   SubmissionStatus = "REVIEWED"
	SubmissionError      SubmissionStatus = "ERROR"
)

type Correctness string

const (
	CorrectnessCorrect   Correctness = "CORRECT"
	CorrectnessPartial   Correctness = "PARTIAL"
	CorrectnessIncorrect Correctness = "INCORRECT"
	CorrectnessSkipped   Correctness = "SKIPPED"
)

var ValidCorrectness = map[Correctness]bool{
	CorrectnessCorrect:   true,
	CorrectnessPartial:   true,
	CorrectnessIncorrect: true,
	CorrectnessSkipped:   true,
}

type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionRunning   SessionStatus = "RUNNING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
)

// ── Core Structs ───────────────────────────────────────

type StudentSubmission struct {
	ID           int64            `json:"id"`
	ExamPaperID  int64            `json:"exam_paper_id"`
	StudentName  string           `json:"student_name"`
	StudentRef   string           `json:"student_ref,omitempty"`
	Status       SubmissionStatus `json:"status"`
	TotalScore   *float64         `json:"total_score,omitempty"`
	Percentage   *float64         `json:"percentage,omitempty"`
	Grade        *string          `json:"grade,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	GradedAt     *time.Time       `json:"graded_at,omitempty"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// SubmissionAnswer is the extracted answer text for one question, captured
// at upload time (OCR/extraction happens upstream). StudentResponse rows
// are only written once the answer has been scored.
type SubmissionAnswer struct {
	ID            int64   `json:"id"`
	SubmissionID  int64   `json:"submission_id"`
	QuestionID    int64   `json:"question_id"`
	ExtractedText string  `json:"extracted_text"`
	OCRConfidence float64 `json:"ocr_confidence"`
}

type StudentResponse struct {
	ID                   int64       `json:"id"`
	SubmissionID         int64       `json:"submission_id"`
	QuestionID           int64       `json:"question_id"`
	ExtractedAnswer      string      `json:"extracted_answer"`
	AssignedScore        float64     `json:"assigned_score"`
	PredictedCorrectness Correctness `json:"predicted_correctness"`
	Confidence           float64     `json:"confidence"`
	Explanation          string      `json:"explanation,omitempty"`
	NeedsReview          bool        `json:"needs_review"`
	TeacherOverride      *float64    `json:"teacher_override,omitempty"`
	TeacherComment       *string     `json:"teacher_comment,omitempty"`
	ReviewedAt           *time.Time  `json:"reviewed_at,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// EffectiveScore returns the teacher override when present, otherwise the
// oracle-assigned score.
func (r *StudentResponse) EffectiveScore() float64 {
	if r.TeacherOverride != nil {
		return *r.TeacherOverride
	}
	return r.AssignedScore
}

// ExamGradingSession tracks one paper's batch run. A fresh run_id is issued
// per run so the orchestrator is the sole writer for its duration.
type ExamGradingSession struct {
	ID                  int64         `json:"id"`
	ExamPaperID         int64         `json:"exam_paper_id"`
	RunID               string        `json:"run_id"`
	Status              SessionStatus `json:"status"`
	TotalSubmissions    int           `json:"total_submissions"`
	GradedSubmissions   int           `json:"graded_submissions"`
	ReviewedSubmissions int           `json:"reviewed_submissions"`
	FailedSubmissions   int           `json:"failed_submissions"`
	CalibrationAccuracy *float64      `json:"calibration_accuracy,omitempty"`
	AverageConfidence   *float64      `json:"average_confidence,omitempty"`
	ErrorMessage        *string       `json:"error_message,omitempty"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// ── Request Types ─────────────────────────────────────

type SubmissionAnswerInput struct {
	QuestionID    int64   `json:"question_id"`
	ExtractedText string  `json:"extracted_text"`
	OCRConfidence float64 `json:"ocr_confidence,omitempty"`
}

type CreateSubmissionRequest struct {
	StudentName string                  `json:"student_name"`
	StudentRef  string                  `json:"student_ref,omitempty"`
	Answers     []SubmissionAnswerInput `json:"answers"`
}

type ReviewResponseRequest struct {
	Score   float64 `json:"score"`
	Comment *string `json:"comment,omitempty"`
}

type FinalizeRequest struct {
	PublishResults bool `json:"publish_results"`
}

// ── Response Types ────────────────────────────────────

type CalibrationResult struct {
	Accuracy         float64 `json:"accuracy"`
	AverageDeviation float64 `json:"average_deviation"`
	IsCalibrated     bool    `json:"is_calibrated"`
	SamplesUsed      int     `json:"samples_used"`
	ComparisonCount  int     `json:"comparison_count"`
	Message          string  `json:"message"`
}

type ReviewQueue struct {
	HighPriority   []StudentResponse `json:"high_priority"`
	MediumPriority []StudentResponse `json:"medium_priority"`
	Total          int               `json:"total"`
}

type BatchApproveResponse struct {
	Approved int `json:"approved"`
}

type SubmissionListResponse struct {
	Submissions []StudentSubmission `json:"submissions"`
	Total       int                 `json:"total"`
}

type SubmissionDetail struct {
	Submission StudentSubmission `json:"submission"`
	Responses  []StudentResponse `json:"responses"`
}

type QuestionStat struct {
	QuestionID        int64               `json:"question_id"`
	QuestionNumber    int                 `json:"question_number"`
	Marks             float64             `json:"marks"`
	AverageScore      float64             `json:"average_score"`
	AverageScoreRatio float64             `json:"average_score_ratio"`
	Correctness       map[Correctness]int `json:"correctness_distribution"`
}

type GradingSummary struct {
	ExamPaperID      int64                    `json:"exam_paper_id"`
	SubmissionCounts map[SubmissionStatus]int `json:"submission_counts"`
	MeanScore        float64                  `json:"mean_score"`
	MedianScore      float64                  `json:"median_score"`
	QuestionStats    []QuestionStat           `json:"question_stats"`
}

type FinalizeResponse struct {
	Status    PaperStatus `json:"status"`
	Published int         `json:"published"`
}
