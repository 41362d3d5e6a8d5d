package grading

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/academia/grading-backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const submissionColumns = `id, exam_paper_id, student_name, COALESCE(student_ref, ''), status,
	total_score, percentage, grade, error_message, graded_at, reviewed_at, created_at`

func scanSubmission(row interface{ Scan(...interface{}) error }) (*models.StudentSubmission, error) {
	var sub models.StudentSubmission
	err := row.Scan(&sub.ID, &sub.ExamPaperID, &sub.StudentName, &sub.StudentRef, &sub.Status,
		&sub.TotalScore, &sub.Percentage, &sub.Grade, &sub.ErrorMessage,
		&sub.GradedAt, &sub.ReviewedAt, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ── Submissions ─────────────────────────────────────────

// CreateSubmission writes the submission and all its extracted answers in
// one transaction, so a partially-uploaded answer sheet never exists.
func (s *Store) CreateSubmission(ctx context.Context, paperID int64, req models.CreateSubmissionRequest) (*models.StudentSubmission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var ref interface{}
	if req.StudentRef != "" {
		ref = req.StudentRef
	}

	sub, err := scanSubmission(tx.QueryRow(
		`INSERT INTO student_submissions (exam_paper_id, student_name, student_ref, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+submissionColumns,
		paperID, req.StudentName, ref, models.SubmissionUploaded,
	))
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}

	for _, a := range req.Answers {
		if _, err := tx.Exec(
			`INSERT INTO submission_answers (submission_id, question_id, extracted_text, ocr_confidence)
			 VALUES ($1, $2, $3, $4)`,
			sub.ID, a.QuestionID, a.ExtractedText, a.OCRConfidence,
		); err != nil {
			return nil, fmt.Errorf("insert submission answer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submission: %w", err)
	}
	return sub, nil
}

func (s *Store) GetSubmission(submissionID int64) (*models.StudentSubmission, error) {
	sub, err := scanSubmission(s.db.QueryRow(
		`SELECT `+submissionColumns+` FROM student_submissions WHERE id = $1`, submissionID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *Store) ListSubmissions(paperID int64) ([]models.StudentSubmission, error) {
	rows, err := s.db.Query(
		`SELECT `+submissionColumns+` FROM student_submissions
		 WHERE exam_paper_id = $1 ORDER BY created_at`, paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.StudentSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// ListGradableSubmissions returns the submissions a batch run should pick
// up: everything not yet graded, including earlier failures.
func (s *Store) ListGradableSubmissions(paperID int64) ([]models.StudentSubmission, error) {
	rows, err := s.db.Query(
		`SELECT `+submissionColumns+` FROM student_submissions
		 WHERE exam_paper_id = $1 AND status NOT IN ($2, $3)
		 ORDER BY created_at`,
		paperID, models.SubmissionGraded, models.SubmissionReviewed,
	)
	if err != nil {
		return nil, fmt.Errorf("list gradable submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.StudentSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *Store) ListSubmissionAnswers(submissionID int64) ([]models.SubmissionAnswer, error) {
	rows, err := s.db.Query(
		`SELECT id, submission_id, question_id, extracted_text, ocr_confidence
		 FROM submission_answers WHERE submission_id = $1 ORDER BY question_id`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submission answers: %w", err)
	}
	defer rows.Close()

	var answers []models.SubmissionAnswer
	for rows.Next() {
		var a models.SubmissionAnswer
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.ExtractedText, &a.OCRConfidence); err != nil {
			return nil, fmt.Errorf("scan submission answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *Store) MarkSubmissionProcessing(submissionID int64) error {
	_, err := s.db.Exec(
		`UPDATE student_submissions SET status = $1, error_message = NULL WHERE id = $2`,
		models.SubmissionProcessing, submissionID,
	)
	if err != nil {
		return fmt.Errorf("mark submission processing: %w", err)
	}
	return nil
}

func (s *Store) MarkSubmissionError(submissionID int64, message string) error {
	_, err := s.db.Exec(
		`UPDATE student_submissions SET status = $1, error_message = $2 WHERE id = $3`,
		models.SubmissionError, message, submissionID,
	)
	if err != nil {
		return fmt.Errorf("mark submission error: %w", err)
	}
	return nil
}

// SaveGradedSubmission commits a fully-scored submission: all response rows
// plus the submission totals land in one transaction. A re-run clears the
// previous responses first.
func (s *Store) SaveGradedSubmission(ctx context.Context, submissionID int64, g *gradedSubmission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM student_responses WHERE submission_id = $1`, submissionID); err != nil {
		return fmt.Errorf("clear previous responses: %w", err)
	}

	for _, r := range g.Responses {
		if _, err := tx.Exec(
			`INSERT INTO student_responses
			 (submission_id, question_id, extracted_answer, assigned_score, predicted_correctness, confidence, explanation, needs_review)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			submissionID, r.QuestionID, r.ExtractedAnswer, r.AssignedScore,
			r.PredictedCorrectness, r.Confidence, r.Explanation, r.NeedsReview,
		); err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE student_submissions
		 SET status = $1, total_score = $2, percentage = $3, grade = $4, error_message = NULL, graded_at = NOW()
		 WHERE id = $5`,
		models.SubmissionGraded, g.TotalScore, g.Percentage, g.Grade, submissionID,
	); err != nil {
		return fmt.Errorf("update submission totals: %w", err)
	}

	return tx.Commit()
}

func (s *Store) UpdateSubmissionTotals(submissionID int64, total, pct float64, grade string) error {
	_, err := s.db.Exec(
		`UPDATE student_submissions SET total_score = $1, percentage = $2, grade = $3 WHERE id = $4`,
		total, pct, grade, submissionID,
	)
	if err != nil {
		return fmt.Errorf("update submission totals: %w", err)
	}
	return nil
}

// PublishResults moves every graded submission to REVIEWED and returns how
// many moved. Already-reviewed submissions are untouched, so publishing is
// idempotent.
func (s *Store) PublishResults(paperID int64) (int, error) {
	res, err := s.db.Exec(
		`UPDATE student_submissions SET status = $1, reviewed_at = NOW()
		 WHERE exam_paper_id = $2 AND status = $3`,
		models.SubmissionReviewed, paperID, models.SubmissionGraded,
	)
	if err != nil {
		return 0, fmt.Errorf("publish results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ── Grading Sessions ────────────────────────────────────

const sessionColumns = `id, exam_paper_id, run_id, status, total_submissions, graded_submissions,
	reviewed_submissions, failed_submissions, calibration_accuracy, average_confidence,
	error_message, started_at, completed_at, created_at, updated_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.ExamGradingSession, error) {
	var sess models.ExamGradingSession
	err := row.Scan(&sess.ID, &sess.ExamPaperID, &sess.RunID, &sess.Status,
		&sess.TotalSubmissions, &sess.GradedSubmissions, &sess.ReviewedSubmissions, &sess.FailedSubmissions,
		&sess.CalibrationAccuracy, &sess.AverageConfidence, &sess.ErrorMessage,
		&sess.StartedAt, &sess.CompletedAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) GetSessionByPaper(paperID int64) (*models.ExamGradingSession, error) {
	sess, err := scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM exam_grading_sessions WHERE exam_paper_id = $1`, paperID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// StartSession claims the paper's session row for a new run. The upsert only
// fires when no run is currently RUNNING; a nil result with no error means
// another run holds the session.
func (s *Store) StartSession(paperID int64, runID string, totalSubmissions int) (*models.ExamGradingSession, error) {
	sess, err := scanSession(s.db.QueryRow(
		`INSERT INTO exam_grading_sessions (exam_paper_id, run_id, status, total_submissions, started_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (exam_paper_id) DO UPDATE
		 SET run_id = EXCLUDED.run_id,
		     status = EXCLUDED.status,
		     total_submissions = EXCLUDED.total_submissions,
		     graded_submissions = 0,
		     failed_submissions = 0,
		     average_confidence = NULL,
		     error_message = NULL,
		     started_at = NOW(),
		     completed_at = NULL,
		     updated_at = NOW()
		 WHERE exam_grading_sessions.status <> $5
		 RETURNING `+sessionColumns,
		paperID, runID, models.SessionRunning, totalSubmissions, models.SessionRunning,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// RecordSubmissionOutcome bumps the run's counters. Keyed by run_id so a
// superseded run can never touch the current run's numbers.
func (s *Store) RecordSubmissionOutcome(runID string, graded bool) error {
	column := "failed_submissions"
	if graded {
		column = "graded_submissions"
	}
	_, err := s.db.Exec(
		`UPDATE exam_grading_sessions SET `+column+` = `+column+` + 1, updated_at = NOW() WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("record submission outcome: %w", err)
	}
	return nil
}

func (s *Store) FinishSession(runID string, status models.SessionStatus, avgConfidence *float64, errorMessage *string) error {
	_, err := s.db.Exec(
		`UPDATE exam_grading_sessions
		 SET status = $1, average_confidence = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
		 WHERE run_id = $4`,
		status, avgConfidence, errorMessage, runID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

func (s *Store) SetCalibrationAccuracy(paperID int64, accuracy float64) error {
	_, err := s.db.Exec(
		`INSERT INTO exam_grading_sessions (exam_paper_id, run_id, status, calibration_accuracy)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_paper_id) DO UPDATE
		 SET calibration_accuracy = EXCLUDED.calibration_accuracy, updated_at = NOW()`,
		paperID, newRunID(), models.SessionPending, accuracy,
	)
	if err != nil {
		return fmt.Errorf("set calibration accuracy: %w", err)
	}
	return nil
}

func (s *Store) SetReviewedCount(paperID int64, reviewed int) error {
	_, err := s.db.Exec(
		`UPDATE exam_grading_sessions SET reviewed_submissions = $1, updated_at = NOW() WHERE exam_paper_id = $2`,
		reviewed, paperID,
	)
	if err != nil {
		return fmt.Errorf("set reviewed count: %w", err)
	}
	return nil
}

// ── Student Responses ───────────────────────────────────

const responseColumns = `id, submission_id, question_id, extracted_answer, assigned_score,
	predicted_correctness, confidence, COALESCE(explanation, ''), needs_review,
	teacher_override, teacher_comment, reviewed_at, created_at`

func scanResponse(row interface{ Scan(...interface{}) error }) (*models.StudentResponse, error) {
	var r models.StudentResponse
	err := row.Scan(&r.ID, &r.SubmissionID, &r.QuestionID, &r.ExtractedAnswer, &r.AssignedScore,
		&r.PredictedCorrectness, &r.Confidence, &r.Explanation, &r.NeedsReview,
		&r.TeacherOverride, &r.TeacherComment, &r.ReviewedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListResponsesBySubmission(submissionID int64) ([]models.StudentResponse, error) {
	rows, err := s.db.Query(
		`SELECT `+responseColumns+` FROM student_responses
		 WHERE submission_id = $1 ORDER BY question_id`, submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var responses []models.StudentResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}

// ListResponsesNeedingReview returns unreviewed flagged responses across
// the paper, least confident first.
func (s *Store) ListResponsesNeedingReview(paperID int64) ([]models.StudentResponse, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.submission_id, r.question_id, r.extracted_answer, r.assigned_score,
		        r.predicted_correctness, r.confidence, COALESCE(r.explanation, ''), r.needs_review,
		        r.teacher_override, r.teacher_comment, r.reviewed_at, r.created_at
		 FROM student_responses r
		 JOIN student_submissions sub ON sub.id = r.submission_id
		 WHERE sub.exam_paper_id = $1 AND r.needs_review = TRUE
		 ORDER BY r.confidence ASC`,
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list responses needing review: %w", err)
	}
	defer rows.Close()

	var responses []models.StudentResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}

// BatchApproveHighConfidence clears the review flag (and stamps
// reviewed_at) on every still-flagged response at or above the threshold.
// The count is the number of flags actually cleared, so a repeat call
// returns 0.
func (s *Store) BatchApproveHighConfidence(paperID int64, threshold float64) (int, error) {
	res, err := s.db.Exec(
		`UPDATE student_responses SET needs_review = FALSE, reviewed_at = NOW()
		 WHERE submission_id IN (SELECT id FROM student_submissions WHERE exam_paper_id = $1)
		   AND needs_review = TRUE
		   AND confidence >= $2`,
		paperID, threshold,
	)
	if err != nil {
		return 0, fmt.Errorf("batch approve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// responseContext carries the joined ownership and marks data a review
// needs in one round trip.
type responseContext struct {
	Response  models.StudentResponse
	PaperID   int64
	TeacherID int64
	MaxMarks  float64
}

func (s *Store) GetResponseContext(responseID int64) (*responseContext, error) {
	var rc responseContext
	r := &rc.Response
	err := s.db.QueryRow(
		`SELECT r.id, r.submission_id, r.question_id, r.extracted_answer, r.assigned_score,
		        r.predicted_correctness, r.confidence, COALESCE(r.explanation, ''), r.needs_review,
		        r.teacher_override, r.teacher_comment, r.reviewed_at, r.created_at,
		        p.id, p.teacher_id, q.marks
		 FROM student_responses r
		 JOIN student_submissions sub ON sub.id = r.submission_id
		 JOIN exam_papers p ON p.id = sub.exam_paper_id
		 JOIN questions q ON q.id = r.question_id
		 WHERE r.id = $1`,
		responseID,
	).Scan(&r.ID, &r.SubmissionID, &r.QuestionID, &r.ExtractedAnswer, &r.AssignedScore,
		&r.PredictedCorrectness, &r.Confidence, &r.Explanation, &r.NeedsReview,
		&r.TeacherOverride, &r.TeacherComment, &r.ReviewedAt, &r.CreatedAt,
		&rc.PaperID, &rc.TeacherID, &rc.MaxMarks)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get response context: %w", err)
	}
	return &rc, nil
}

func (s *Store) ApplyOverride(responseID int64, score float64, comment *string) error {
	_, err := s.db.Exec(
		`UPDATE student_responses
		 SET teacher_override = $1, teacher_comment = $2, needs_review = FALSE, reviewed_at = NOW()
		 WHERE id = $3`,
		score, comment, responseID,
	)
	if err != nil {
		return fmt.Errorf("apply override: %w", err)
	}
	return nil
}

// ── Summary Queries ─────────────────────────────────────

func (s *Store) CountSubmissionsByStatus(paperID int64) (map[models.SubmissionStatus]int, error) {
	rows, err := s.db.Query(
		`SELECT status, COUNT(*) FROM student_submissions WHERE exam_paper_id = $1 GROUP BY status`,
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("count submissions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SubmissionStatus]int)
	for rows.Next() {
		var status models.SubmissionStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListGradedTotals returns the effective total score of every graded or
// reviewed submission, for the mean/median stats.
func (s *Store) ListGradedTotals(paperID int64) ([]float64, error) {
	rows, err := s.db.Query(
		`SELECT total_score FROM student_submissions
		 WHERE exam_paper_id = $1 AND status IN ($2, $3) AND total_score IS NOT NULL
		 ORDER BY total_score`,
		paperID, models.SubmissionGraded, models.SubmissionReviewed,
	)
	if err != nil {
		return nil, fmt.Errorf("list graded totals: %w", err)
	}
	defer rows.Close()

	var totals []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// questionStatRow is one (question, correctness) aggregation cell.
type questionStatRow struct {
	QuestionID     int64
	QuestionNumber int
	Marks          float64
	Correctness    models.Correctness
	Count          int
	ScoreSum       float64
}

func (s *Store) ListQuestionStatRows(paperID int64) ([]questionStatRow, error) {
	rows, err := s.db.Query(
		`SELECT q.id, q.question_number, q.marks, r.predicted_correctness, COUNT(*),
		        SUM(COALESCE(r.teacher_override, r.assigned_score))
		 FROM student_responses r
		 JOIN questions q ON q.id = r.question_id
		 JOIN student_submissions sub ON sub.id = r.submission_id
		 WHERE sub.exam_paper_id = $1 AND sub.status IN ($2, $3)
		 GROUP BY q.id, q.question_number, q.marks, r.predicted_correctness
		 ORDER BY q.question_number`,
		paperID, models.SubmissionGraded, models.SubmissionReviewed,
	)
	if err != nil {
		return nil, fmt.Errorf("question stats: %w", err)
	}
	defer rows.Close()

	var stats []questionStatRow
	for rows.Next() {
		var row questionStatRow
		if err := rows.Scan(&row.QuestionID, &row.QuestionNumber, &row.Marks, &row.Correctness, &row.Count, &row.ScoreSum); err != nil {
			return nil, fmt.Errorf("scan question stat: %w", err)
		}
		stats = append(stats, row)
	}
	return stats, rows.Err()
}

func (s *Store) CountReviewedSubmissions(paperID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM student_submissions WHERE exam_paper_id = $1 AND status = $2`,
		paperID, models.SubmissionReviewed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reviewed submissions: %w", err)
	}
	return count, nil
}
