package grading

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/academia/grading-backend/internal/config"
	"github.com/academia/grading-backend/internal/models"
	"github.com/academia/grading-backend/internal/scoring"
)

// stubScorer returns a canned result per question ID, or an error for
// question IDs in fail, counting calls. Region IDs look like
// "q<questionID>".
type stubScorer struct {
	mu      sync.Mutex
	calls   int
	results map[int64]scoring.Result
	fail    map[int64]bool
}

func (s *stubScorer) Score(ctx context.Context, req scoring.Request) (*scoring.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	qid, err := strconv.ParseInt(strings.TrimPrefix(req.RegionID, "q"), 10, 64)
	if err != nil {
		return nil, err
	}
	if s.fail[qid] {
		return nil, errors.New("oracle unavailable")
	}
	r := s.results[qid]
	return &r, nil
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testQuestions() map[int64]models.Question {
	return map[int64]models.Question{
		1: {ID: 1, QuestionNumber: 1, Text: "What is osmosis?", Type: models.QuestionShortAnswer, Marks: 4},
		2: {ID: 2, QuestionNumber: 2, Text: "2+2?", Type: models.QuestionNumeric, Marks: 6},
	}
}

func testExpected() map[int64]models.ExpectedResponse {
	return map[int64]models.ExpectedResponse{
		1: {QuestionID: 1, Answer: "Diffusion of water across a membrane"},
		2: {QuestionID: 2, Answer: "4"},
	}
}

func testAnswers() []models.SubmissionAnswer {
	return []models.SubmissionAnswer{
		{SubmissionID: 1, QuestionID: 1, ExtractedText: "water diffusion", OCRConfidence: 0.9},
		{SubmissionID: 1, QuestionID: 2, ExtractedText: "4", OCRConfidence: 0.95},
	}
}

func TestGradeSubmissionHighConfidence(t *testing.T) {
	scorer := &stubScorer{results: map[int64]scoring.Result{
		1: {Score: 4, Correctness: models.CorrectnessCorrect, Confidence: 0.96},
		2: {Score: 6, Correctness: models.CorrectnessCorrect, Confidence: 0.98},
	}}

	result, err := gradeSubmission(context.Background(), scorer, testAnswers(),
		testQuestions(), testExpected(), 10, config.Default())
	if err != nil {
		t.Fatalf("gradeSubmission returned error: %v", err)
	}

	if result.TotalScore != 10 {
		t.Errorf("total = %v, want 10", result.TotalScore)
	}
	if result.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", result.Percentage)
	}
	if result.Grade != "A+" {
		t.Errorf("grade = %q, want A+", result.Grade)
	}
	for _, r := range result.Responses {
		if r.NeedsReview {
			t.Errorf("question %d flagged for review at confidence %v", r.QuestionID, r.Confidence)
		}
	}
}

func TestGradeSubmissionFlagsLowConfidence(t *testing.T) {
	scorer := &stubScorer{results: map[int64]scoring.Result{
		1: {Score: 2, Correctness: models.CorrectnessPartial, Confidence: 0.60},
		2: {Score: 6, Correctness: models.CorrectnessCorrect, Confidence: 0.95},
	}}

	result, err := gradeSubmission(context.Background(), scorer, testAnswers(),
		testQuestions(), testExpected(), 10, config.Default())
	if err != nil {
		t.Fatalf("gradeSubmission returned error: %v", err)
	}

	flagged := 0
	for _, r := range result.Responses {
		if r.NeedsReview {
			flagged++
			if r.QuestionID != 1 {
				t.Errorf("question %d flagged, expected only question 1", r.QuestionID)
			}
		}
	}
	if flagged != 1 {
		t.Errorf("flagged %d responses, want 1", flagged)
	}
	if result.TotalScore != 8 {
		t.Errorf("total = %v, want 8", result.TotalScore)
	}
}

func TestGradeSubmissionClampsOracleScore(t *testing.T) {
	scorer := &stubScorer{results: map[int64]scoring.Result{
		1: {Score: 99, Correctness: models.CorrectnessCorrect, Confidence: 0.97},
		2: {Score: -3, Correctness: models.CorrectnessIncorrect, Confidence: 0.97},
	}}

	result, err := gradeSubmission(context.Background(), scorer, testAnswers(),
		testQuestions(), testExpected(), 10, config.Default())
	if err != nil {
		t.Fatalf("gradeSubmission returned error: %v", err)
	}

	for _, r := range result.Responses {
		switch r.QuestionID {
		case 1:
			if r.AssignedScore != 4 {
				t.Errorf("question 1 score = %v, want clamped to 4", r.AssignedScore)
			}
		case 2:
			if r.AssignedScore != 0 {
				t.Errorf("question 2 score = %v, want clamped to 0", r.AssignedScore)
			}
		}
	}
}

func TestGradeSubmissionFailsWholeOnOracleError(t *testing.T) {
	scorer := &stubScorer{
		results: map[int64]scoring.Result{
			1: {Score: 4, Correctness: models.CorrectnessCorrect, Confidence: 0.96},
		},
		fail: map[int64]bool{2: true},
	}

	result, err := gradeSubmission(context.Background(), scorer, testAnswers(),
		testQuestions(), testExpected(), 10, config.Default())
	if err == nil {
		t.Fatal("expected error when one oracle call fails")
	}
	if result != nil {
		t.Error("a failed submission must not yield partial responses")
	}
}

func TestGradeSubmissionSkipsQuestionsWithoutExpectedResponse(t *testing.T) {
	// The marking guide covers only question 1; question 2 must never reach
	// the oracle and must not contribute to the total.
	scorer := &stubScorer{results: map[int64]scoring.Result{
		1: {Score: 4, Correctness: models.CorrectnessCorrect, Confidence: 0.96},
		2: {Score: 6, Correctness: models.CorrectnessCorrect, Confidence: 0.96},
	}}
	expected := map[int64]models.ExpectedResponse{
		1: {QuestionID: 1, Answer: "Diffusion of water across a membrane"},
	}

	result, err := gradeSubmission(context.Background(), scorer, testAnswers(),
		testQuestions(), expected, 10, config.Default())
	if err != nil {
		t.Fatalf("gradeSubmission returned error: %v", err)
	}

	if got := scorer.callCount(); got != 1 {
		t.Errorf("made %d oracle calls, want 1", got)
	}
	if len(result.Responses) != 1 {
		t.Fatalf("got %d responses, want 1 (only the covered question)", len(result.Responses))
	}
	if result.Responses[0].QuestionID != 1 {
		t.Errorf("scored question %d, want 1", result.Responses[0].QuestionID)
	}
	if result.TotalScore != 4 {
		t.Errorf("total = %v, want 4 (uncovered question contributes nothing)", result.TotalScore)
	}
}

func TestGradeSubmissionCoversUnansweredQuestions(t *testing.T) {
	// Student answered only question 1; question 2 is scored as empty.
	scorer := &stubScorer{results: map[int64]scoring.Result{
		1: {Score: 4, Correctness: models.CorrectnessCorrect, Confidence: 0.96},
		2: {Score: 0, Correctness: models.CorrectnessSkipped, Confidence: 0.99},
	}}
	answers := testAnswers()[:1]

	result, err := gradeSubmission(context.Background(), scorer, answers,
		testQuestions(), testExpected(), 10, config.Default())
	if err != nil {
		t.Fatalf("gradeSubmission returned error: %v", err)
	}
	if len(result.Responses) != 2 {
		t.Fatalf("got %d responses, want one per question", len(result.Responses))
	}
	for _, r := range result.Responses {
		if r.QuestionID == 2 && r.PredictedCorrectness != models.CorrectnessSkipped {
			t.Errorf("unanswered question correctness = %s, want SKIPPED", r.PredictedCorrectness)
		}
	}
	if result.TotalScore != 4 {
		t.Errorf("total = %v, want 4", result.TotalScore)
	}
}

func TestSessionOutcomeFailsWhenNothingGraded(t *testing.T) {
	// The single gradable submission fails its only oracle call, so the
	// run ends with zero graded.
	scorer := &stubScorer{fail: map[int64]bool{1: true, 2: true}}
	if _, err := gradeSubmission(context.Background(), scorer, testAnswers(),
		testQuestions(), testExpected(), 10, config.Default()); err == nil {
		t.Fatal("expected the submission to fail")
	}

	outcome := sessionOutcome(0, 0, 0)
	if outcome.Status != models.SessionFailed {
		t.Errorf("status = %s, want FAILED", outcome.Status)
	}
	if !outcome.PaperFailed {
		t.Error("a fully failed run must take the paper to ERROR")
	}
	if outcome.ErrorMessage == nil {
		t.Error("failed run should carry an error message")
	}
	if outcome.AverageConfidence != nil {
		t.Error("failed run has no average confidence")
	}
}

func TestSessionOutcomeCompletesOnPartialSuccess(t *testing.T) {
	// Three submissions, the middle one fails: 2 of 3 graded still
	// completes the session.
	okScorer := &stubScorer{results: map[int64]scoring.Result{
		1: {Score: 4, Correctness: models.CorrectnessCorrect, Confidence: 0.96},
		2: {Score: 6, Correctness: models.CorrectnessCorrect, Confidence: 0.92},
	}}
	badScorer := &stubScorer{fail: map[int64]bool{1: true, 2: true}}

	graded := 0
	var confidenceSum float64
	var confidenceCount int
	for _, scorer := range []*stubScorer{okScorer, badScorer, okScorer} {
		result, err := gradeSubmission(context.Background(), scorer, testAnswers(),
			testQuestions(), testExpected(), 10, config.Default())
		if err != nil {
			continue
		}
		graded++
		for _, r := range result.Responses {
			confidenceSum += r.Confidence
			confidenceCount++
		}
	}

	if graded != 2 {
		t.Fatalf("graded %d submissions, want 2", graded)
	}

	outcome := sessionOutcome(graded, confidenceSum, confidenceCount)
	if outcome.Status != models.SessionCompleted {
		t.Errorf("status = %s, want COMPLETED", outcome.Status)
	}
	if outcome.PaperFailed {
		t.Error("partial success must not fail the paper")
	}
	if outcome.ErrorMessage != nil {
		t.Errorf("completed run should carry no error message, got %q", *outcome.ErrorMessage)
	}
	if outcome.AverageConfidence == nil {
		t.Fatal("completed run should record average confidence")
	}
	if got := *outcome.AverageConfidence; got < 0.94-1e-9 || got > 0.94+1e-9 {
		t.Errorf("average confidence = %v, want 0.94", got)
	}
}
