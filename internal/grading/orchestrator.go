package grading

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/academia/grading-backend/internal/apperr"
	"github.com/academia/grading-backend/internal/config"
	"github.com/academia/grading-backend/internal/exam"
	"github.com/academia/grading-backend/internal/models"
	"github.com/academia/grading-backend/internal/scoring"
)

// Service drives batch grading and everything downstream of it. It reads
// paper structure through the exam store but owns all submission, response,
// and session state.
type Service struct {
	store  *Store
	exams  *exam.Store
	scorer scoring.Client
	cfg    config.Grading
}

func NewService(store *Store, exams *exam.Store, scorer scoring.Client, cfg config.Grading) *Service {
	return &Service{store: store, exams: exams, scorer: scorer, cfg: cfg}
}

func newRunID() string {
	return uuid.NewString()
}

func (s *Service) requireOwnedPaper(teacherID, paperID int64) (*models.ExamPaper, error) {
	paper, err := s.exams.GetPaper(paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, apperr.NotFound("exam paper %d not found", paperID)
	}
	if paper.TeacherID != teacherID {
		return nil, apperr.Forbidden("exam paper %d does not belong to this teacher", paperID)
	}
	return paper, nil
}

// ── Submissions ─────────────────────────────────────────

func (s *Service) CreateSubmission(ctx context.Context, teacherID, paperID int64, req models.CreateSubmissionRequest) (*models.StudentSubmission, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}
	if paper.Status == models.PaperCompleted {
		return nil, apperr.Validation("exam paper %d is already finalized", paperID)
	}
	if req.StudentName == "" {
		return nil, apperr.Validation("student_name is required")
	}
	if len(req.Answers) == 0 {
		return nil, apperr.Validation("submission needs at least one answer")
	}

	questions, err := s.exams.ListQuestions(paperID)
	if err != nil {
		return nil, err
	}
	valid := make(map[int64]bool, len(questions))
	for _, q := range questions {
		valid[q.ID] = true
	}
	seen := make(map[int64]bool)
	for _, a := range req.Answers {
		if !valid[a.QuestionID] {
			return nil, apperr.Validation("question %d does not belong to exam paper %d", a.QuestionID, paperID)
		}
		if seen[a.QuestionID] {
			return nil, apperr.Validation("duplicate answer for question %d", a.QuestionID)
		}
		seen[a.QuestionID] = true
		if a.OCRConfidence < 0 || a.OCRConfidence > 1 {
			return nil, apperr.Validation("ocr_confidence for question %d outside [0,1]", a.QuestionID)
		}
	}

	return s.store.CreateSubmission(ctx, paperID, req)
}

func (s *Service) ListSubmissions(teacherID, paperID int64) ([]models.StudentSubmission, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(paperID)
}

func (s *Service) GetSubmissionDetail(teacherID, submissionID int64) (*models.SubmissionDetail, error) {
	sub, err := s.store.GetSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("submission %d not found", submissionID)
	}
	if _, err := s.requireOwnedPaper(teacherID, sub.ExamPaperID); err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponsesBySubmission(submissionID)
	if err != nil {
		return nil, err
	}
	if responses == nil {
		responses = []models.StudentResponse{}
	}
	return &models.SubmissionDetail{Submission: *sub, Responses: responses}, nil
}

// ── Batch Grading ───────────────────────────────────────

// StartBatchGrading validates the paper is ready, claims the grading
// session, and kicks off the run in the background. The caller polls the
// session for progress.
func (s *Service) StartBatchGrading(ctx context.Context, teacherID, paperID int64) (*models.ExamGradingSession, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}

	switch {
	case paper.Status == models.PaperCompleted:
		return nil, apperr.Validation("exam paper %d is already finalized", paperID)
	case paper.Status == models.PaperError:
		return nil, apperr.Validation("exam paper %d is in ERROR and can only be finalized", paperID)
	case !exam.AtLeast(paper.Status, models.PaperResponsesSet):
		return nil, apperr.Validation("exam paper %d has no expected responses set", paperID)
	}

	expectedCount, err := s.exams.CountExpectedResponses(paperID)
	if err != nil {
		return nil, err
	}
	if expectedCount == 0 {
		return nil, apperr.Validation("exam paper %d has no expected responses", paperID)
	}

	gradable, err := s.store.ListGradableSubmissions(paperID)
	if err != nil {
		return nil, err
	}
	if len(gradable) == 0 {
		return nil, apperr.Validation("exam paper %d has no submissions waiting to be graded", paperID)
	}

	runID := newRunID()
	sess, err := s.store.StartSession(paperID, runID, len(gradable))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.Conflict("a grading run is already in progress for exam paper %d", paperID)
	}

	if paper.Status != models.PaperGradingActive {
		if _, err := s.exams.UpdatePaperStatus(paperID, paper.Status, models.PaperGradingActive); err != nil {
			return nil, err
		}
	}

	log.Printf("[grading] paper %d: run %s started over %d submissions", paperID, runID, len(gradable))

	// The run outlives the HTTP request that started it.
	go s.runBatch(context.Background(), paper, runID, gradable)

	return sess, nil
}

func (s *Service) GetSession(teacherID, paperID int64) (*models.ExamGradingSession, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}
	sess, err := s.store.GetSessionByPaper(paperID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound("no grading session for exam paper %d", paperID)
	}
	return sess, nil
}

func (s *Service) runBatch(ctx context.Context, paper *models.ExamPaper, runID string, submissions []models.StudentSubmission) {
	questions, expected, err := s.loadMarkingGuide(paper.ID)
	if err != nil {
		log.Printf("[grading] paper %d: run %s aborted: %v", paper.ID, runID, err)
		msg := err.Error()
		if err := s.store.FinishSession(runID, models.SessionFailed, nil, &msg); err != nil {
			log.Printf("WARN: [grading] failed to mark session failed: %v", err)
		}
		if _, err := s.exams.UpdatePaperStatus(paper.ID, models.PaperGradingActive, models.PaperError); err != nil {
			log.Printf("WARN: [grading] failed to move paper %d to ERROR: %v", paper.ID, err)
		}
		return
	}

	graded := 0
	var confidenceSum float64
	var confidenceCount int

	for _, sub := range submissions {
		if err := s.store.MarkSubmissionProcessing(sub.ID); err != nil {
			log.Printf("WARN: [grading] submission %d: %v", sub.ID, err)
		}

		answers, err := s.store.ListSubmissionAnswers(sub.ID)
		var result *gradedSubmission
		if err == nil {
			result, err = gradeSubmission(ctx, s.scorer, answers, questions, expected, paper.TotalMarks, s.cfg)
		}
		if err == nil {
			err = s.store.SaveGradedSubmission(ctx, sub.ID, result)
		}

		if err != nil {
			log.Printf("WARN: [grading] submission %d failed: %v", sub.ID, err)
			if markErr := s.store.MarkSubmissionError(sub.ID, err.Error()); markErr != nil {
				log.Printf("WARN: [grading] submission %d: %v", sub.ID, markErr)
			}
			if recErr := s.store.RecordSubmissionOutcome(runID, false); recErr != nil {
				log.Printf("WARN: [grading] run %s: %v", runID, recErr)
			}
			continue
		}

		graded++
		for _, r := range result.Responses {
			confidenceSum += r.Confidence
			confidenceCount++
		}
		if err := s.store.RecordSubmissionOutcome(runID, true); err != nil {
			log.Printf("WARN: [grading] run %s: %v", runID, err)
		}
	}

	outcome := sessionOutcome(graded, confidenceSum, confidenceCount)
	if err := s.store.FinishSession(runID, outcome.Status, outcome.AverageConfidence, outcome.ErrorMessage); err != nil {
		log.Printf("WARN: [grading] failed to finish session: %v", err)
	}
	if outcome.PaperFailed {
		if _, err := s.exams.UpdatePaperStatus(paper.ID, models.PaperGradingActive, models.PaperError); err != nil {
			log.Printf("WARN: [grading] failed to move paper %d to ERROR: %v", paper.ID, err)
		}
	}
	log.Printf("[grading] paper %d: run %s %s, %d of %d graded", paper.ID, runID, outcome.Status, graded, len(submissions))
}

// runOutcome is the session-level verdict for one batch pass.
type runOutcome struct {
	Status            models.SessionStatus
	AverageConfidence *float64
	ErrorMessage      *string
	PaperFailed       bool
}

// sessionOutcome decides how a finished pass lands: FAILED (and the paper
// with it) only when nothing graded at all; any partial success completes
// the session, with average confidence taken over the new responses.
func sessionOutcome(graded int, confidenceSum float64, confidenceCount int) runOutcome {
	if graded == 0 {
		msg := "no submissions could be graded"
		return runOutcome{Status: models.SessionFailed, ErrorMessage: &msg, PaperFailed: true}
	}
	out := runOutcome{Status: models.SessionCompleted}
	if confidenceCount > 0 {
		avg := confidenceSum / float64(confidenceCount)
		out.AverageConfidence = &avg
	}
	return out
}

func (s *Service) loadMarkingGuide(paperID int64) (map[int64]models.Question, map[int64]models.ExpectedResponse, error) {
	questionList, err := s.exams.ListQuestions(paperID)
	if err != nil {
		return nil, nil, err
	}
	expectedList, err := s.exams.ListExpectedResponses(paperID)
	if err != nil {
		return nil, nil, err
	}

	questions := make(map[int64]models.Question, len(questionList))
	for _, q := range questionList {
		questions[q.ID] = q
	}
	expected := make(map[int64]models.ExpectedResponse, len(expectedList))
	for _, e := range expectedList {
		expected[e.QuestionID] = e
	}
	if len(questions) == 0 {
		return nil, nil, fmt.Errorf("paper %d has no questions", paperID)
	}
	return questions, expected, nil
}

// gradedSubmission is the buffered result of scoring one submission. Nothing
// here touches the database; the store commits it atomically afterwards.
type gradedSubmission struct {
	Responses  []models.StudentResponse
	TotalScore float64
	Percentage float64
	Grade      string
}

// gradeSubmission fans the paper's questions out to the scoring oracle,
// bounded by the configured concurrency. Only questions with an expected
// response are scored; the oracle has nothing to grade against for the
// rest, so they get no response row and contribute nothing to the total.
// Questions the student left out are scored as empty answers. Any oracle
// failure fails the whole submission; partial result sets are never
// returned.
func gradeSubmission(ctx context.Context, scorer scoring.Client, answers []models.SubmissionAnswer,
	questions map[int64]models.Question, expected map[int64]models.ExpectedResponse,
	totalMarks float64, cfg config.Grading) (*gradedSubmission, error) {

	answerByQuestion := make(map[int64]models.SubmissionAnswer, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a
	}

	ordered := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if _, ok := expected[q.ID]; ok {
			ordered = append(ordered, q)
		}
	}

	responses := make([]models.StudentResponse, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.GradingConcurrency)

	for i, q := range ordered {
		i, q := i, q
		g.Go(func() error {
			answer := answerByQuestion[q.ID]
			exp := expected[q.ID]

			result, err := scorer.Score(gctx, scoring.Request{
				RegionID:        fmt.Sprintf("q%d", q.ID),
				QuestionText:    q.Text,
				QuestionType:    q.Type,
				ExpectedAnswer:  exp.Answer,
				ExtractedAnswer: answer.ExtractedText,
				OCRConfidence:   answer.OCRConfidence,
				MaxPoints:       q.Marks,
			})
			if err != nil {
				return fmt.Errorf("score question %d: %w", q.QuestionNumber, err)
			}

			responses[i] = models.StudentResponse{
				QuestionID:           q.ID,
				ExtractedAnswer:      result.ExtractedAnswer,
				AssignedScore:        clampScore(result.Score, q.Marks),
				PredictedCorrectness: result.Correctness,
				Confidence:           result.Confidence,
				Explanation:          result.Explanation,
				NeedsReview:          result.Confidence < cfg.ReviewConfidenceThreshold,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0.0
	for _, r := range responses {
		total += r.AssignedScore
	}
	pct := percentage(total, totalMarks)

	return &gradedSubmission{
		Responses:  responses,
		TotalScore: total,
		Percentage: pct,
		Grade:      LetterGrade(cfg.GradeTable, pct),
	}, nil
}
