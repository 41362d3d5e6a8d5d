package exam

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/academia/grading-backend/internal/apperr"
	"github.com/academia/grading-backend/internal/config"
	"github.com/academia/grading-backend/internal/drafter"
	"github.com/academia/grading-backend/internal/models"
)

type Service struct {
	store   *Store
	drafter *drafter.Drafter
	cfg     config.Grading
}

func NewService(store *Store, d *drafter.Drafter, cfg config.Grading) *Service {
	return &Service{store: store, drafter: d, cfg: cfg}
}

// requireOwnedPaper loads a paper and enforces the ownership guard every
// non-creation operation shares.
func (s *Service) requireOwnedPaper(teacherID, paperID int64) (*models.ExamPaper, error) {
	paper, err := s.store.GetPaper(paperID)
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

// advance moves the paper forward when the transition is legal and logs a
// refusal otherwise. Callers treat an illegal advance as a no-op because
// every advance here is triggered by an append operation that may be
// repeated after the paper already moved on.
func (s *Service) advance(paper *models.ExamPaper, to models.PaperStatus) error {
	if !CanTransition(paper.Status, to) {
		return nil
	}
	moved, err := s.store.UpdatePaperStatus(paper.ID, paper.Status, to)
	if err != nil {
		return err
	}
	if moved {
		log.Printf("[lifecycle] paper %d: %s -> %s", paper.ID, paper.Status, to)
		paper.Status = to
	}
	return nil
}

// ── Exam Papers ─────────────────────────────────────────

func (s *Service) CreatePaper(teacherID int64, req models.CreatePaperRequest) (*models.ExamPaper, error) {
	if req.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if req.TotalMarks <= 0 {
		return nil, apperr.Validation("total_marks must be positive")
	}
	return s.store.CreatePaper(teacherID, req)
}

func (s *Service) GetPaper(teacherID, paperID int64) (*models.ExamPaper, error) {
	return s.requireOwnedPaper(teacherID, paperID)
}

func (s *Service) ListPapers(teacherID int64) ([]models.ExamPaper, error) {
	return s.store.ListPapersByTeacher(teacherID)
}

// ── Questions ───────────────────────────────────────────

func (s *Service) AddQuestion(teacherID, paperID int64, req models.AddQuestionRequest) (*models.Question, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}
	if AtLeast(paper.Status, models.PaperGradingActive) {
		return nil, apperr.Validation("cannot add questions once grading has started")
	}
	if req.QuestionNumber <= 0 {
		return nil, apperr.Validation("question_number must be positive")
	}
	if req.Text == "" {
		return nil, apperr.Validation("question text is required")
	}
	if !models.ValidQuestionTypes[req.Type] {
		return nil, apperr.Validation("invalid question type %q", req.Type)
	}
	if req.Marks <= 0 {
		return nil, apperr.Validation("marks must be positive")
	}

	question, err := s.store.CreateQuestion(paperID, req)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, apperr.Conflict("question number %d already exists on exam paper %d", req.QuestionNumber, paperID)
		}
		return nil, err
	}

	// First question moves the paper out of DRAFT; later ones are no-ops.
	if err := s.advance(paper, models.PaperQuestionsAdded); err != nil {
		return nil, err
	}

	return question, nil
}

func (s *Service) ListQuestions(teacherID, paperID int64) ([]models.Question, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}
	return s.store.ListQuestions(paperID)
}

// ── Expected Responses ──────────────────────────────────

func (s *Service) SetExpectedResponses(ctx context.Context, teacherID, paperID int64, req models.SetExpectedResponsesRequest) ([]models.ExpectedResponse, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}
	if len(req.Responses) == 0 {
		return nil, apperr.Validation("at least one expected response is required")
	}

	questions, err := s.store.ListQuestions(paperID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	seen := make(map[int64]bool)
	for _, in := range req.Responses {
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, apperr.Validation("question %d does not belong to exam paper %d", in.QuestionID, paperID)
		}
		if seen[in.QuestionID] {
			return nil, apperr.Validation("duplicate expected response for question %d", in.QuestionID)
		}
		seen[in.QuestionID] = true
		if in.Answer == "" {
			return nil, apperr.Validation("expected response for question %d has an empty answer", q.QuestionNumber)
		}
		if err := validateMarkingScheme(q, in.MarkingScheme); err != nil {
			return nil, err
		}
	}

	if err := s.store.ReplaceExpectedResponses(ctx, paperID, req.Responses, false); err != nil {
		return nil, err
	}

	if err := s.advance(paper, models.PaperResponsesSet); err != nil {
		return nil, err
	}

	return s.store.ListExpectedResponses(paperID)
}

// DraftExpectedResponses asks the LLM to write the marking guide and saves
// the drafts through the same bulk-replace path as a manual set.
func (s *Service) DraftExpectedResponses(ctx context.Context, teacherID, paperID int64) ([]models.ExpectedResponse, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}

	questions, err := s.store.ListQuestions(paperID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, apperr.Validation("exam paper %d has no questions to draft responses for", paperID)
	}

	drafts, err := s.drafter.DraftExpectedResponses(ctx, paper, questions)
	if err != nil {
		return nil, fmt.Errorf("draft expected responses: %w", err)
	}

	byNumber := make(map[int]int64, len(questions))
	for _, q := range questions {
		byNumber[q.QuestionNumber] = q.ID
	}

	inputs := make([]models.ExpectedResponseInput, 0, len(drafts))
	for _, d := range drafts {
		questionID, ok := byNumber[d.QuestionNumber]
		if !ok {
			return nil, fmt.Errorf("draft references unknown question number %d", d.QuestionNumber)
		}
		inputs = append(inputs, models.ExpectedResponseInput{
			QuestionID:    questionID,
			Answer:        d.Answer,
			MarkingScheme: d.MarkingScheme,
			Keywords:      d.Keywords,
		})
	}

	if err := s.store.ReplaceExpectedResponses(ctx, paperID, inputs, true); err != nil {
		return nil, err
	}

	if err := s.advance(paper, models.PaperResponsesSet); err != nil {
		return nil, err
	}

	log.Printf("[drafter] paper %d: drafted %d expected responses with %s", paperID, len(inputs), s.drafter.ModelName())
	return s.store.ListExpectedResponses(paperID)
}

func (s *Service) ListExpectedResponses(teacherID, paperID int64) ([]models.ExpectedResponse, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}
	return s.store.ListExpectedResponses(paperID)
}

// validateMarkingScheme checks the typed scheme carries exactly the fields
// its question type needs. Schemes are optional; a bare canonical answer is
// a valid marking guide.
func validateMarkingScheme(q models.Question, scheme *models.MarkingScheme) error {
	if scheme == nil {
		return nil
	}
	if scheme.Type != "" && scheme.Type != q.Type {
		return apperr.Validation("marking scheme type %q does not match question %d type %q", scheme.Type, q.QuestionNumber, q.Type)
	}
	switch q.Type {
	case models.QuestionMCQ:
		if scheme.CorrectOption == "" {
			return apperr.Validation("MCQ marking scheme for question %d needs correct_option", q.QuestionNumber)
		}
	case models.QuestionTrueFalse:
		if scheme.BoolAnswer == nil {
			return apperr.Validation("TRUE_FALSE marking scheme for question %d needs bool_answer", q.QuestionNumber)
		}
	case models.QuestionNumeric:
		if scheme.NumericValue == nil {
			return apperr.Validation("NUMERIC marking scheme for question %d needs numeric_value", q.QuestionNumber)
		}
	case models.QuestionShortAnswer:
		for _, kw := range scheme.Keywords {
			if kw.Keyword == "" {
				return apperr.Validation("marking scheme for question %d has an empty keyword", q.QuestionNumber)
			}
		}
	case models.QuestionLongAnswer:
		total := 0.0
		for _, c := range scheme.RubricCriteria {
			if c.Marks < 0 {
				return apperr.Validation("rubric criterion for question %d has negative marks", q.QuestionNumber)
			}
			total += c.Marks
		}
		if len(scheme.RubricCriteria) > 0 && total > q.Marks {
			return apperr.Validation("rubric for question %d totals %g marks, question is worth %g", q.QuestionNumber, total, q.Marks)
		}
	}
	return nil
}

// ── Moderation Samples ──────────────────────────────────

func (s *Service) AddModerationSample(ctx context.Context, teacherID, paperID int64, req models.AddModerationSampleRequest) (*models.ModerationSample, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}
	if len(req.Entries) == 0 {
		return nil, apperr.Validation("moderation sample needs at least one entry")
	}

	questions, err := s.store.ListQuestions(paperID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for _, e := range req.Entries {
		q, ok := byID[e.QuestionID]
		if !ok {
			return nil, apperr.Validation("question %d does not belong to exam paper %d", e.QuestionID, paperID)
		}
		if e.Score < 0 || e.Score > q.Marks {
			return nil, apperr.Validation("score %g for question %d outside [0, %g]", e.Score, q.QuestionNumber, q.Marks)
		}
	}

	sample, err := s.store.CreateModerationSample(ctx, paperID, req)
	if err != nil {
		return nil, err
	}

	// Advisory nudge only: calibration re-checks its own verified-sample
	// precondition regardless of this status.
	count, err := s.store.CountModerationSamples(paperID)
	if err != nil {
		return nil, err
	}
	if count >= s.cfg.ModerationReadySampleCount {
		if err := s.advance(paper, models.PaperModerationReady); err != nil {
			return nil, err
		}
	}

	return sample, nil
}

func (s *Service) VerifyModerationSample(teacherID, sampleID int64) (*models.ModerationSample, error) {
	sample, err := s.store.GetModerationSample(sampleID)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		return nil, apperr.NotFound("moderation sample %d not found", sampleID)
	}
	if _, err := s.requireOwnedPaper(teacherID, sample.ExamPaperID); err != nil {
		return nil, err
	}
	if err := s.store.VerifyModerationSample(sampleID); err != nil {
		return nil, err
	}
	sample.IsVerified = true
	return sample, nil
}

func (s *Service) ListModerationSamples(teacherID, paperID int64) ([]models.ModerationSample, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}
	return s.store.ListModerationSamples(paperID, false)
}
