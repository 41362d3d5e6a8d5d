package grading

import (
	"log"

	"github.com/academia/grading-backend/internal/apperr"
	"github.com/academia/grading-backend/internal/models"
)

// highPriorityCeiling splits the review queue: below this confidence a
// flagged response is high priority, at or above it (but still under the
// review threshold) it is medium.
const highPriorityCeiling = 0.70

// GetReviewQueue returns the paper's flagged responses bucketed by
// priority, least confident first within each bucket.
func (s *Service) GetReviewQueue(teacherID, paperID int64) (*models.ReviewQueue, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}

	flagged, err := s.store.ListResponsesNeedingReview(paperID)
	if err != nil {
		return nil, err
	}

	queue := &models.ReviewQueue{
		HighPriority:   []models.StudentResponse{},
		MediumPriority: []models.StudentResponse{},
	}
	for _, r := range flagged {
		if r.Confidence < highPriorityCeiling {
			queue.HighPriority = append(queue.HighPriority, r)
		} else {
			queue.MediumPriority = append(queue.MediumPriority, r)
		}
	}
	queue.Total = len(flagged)
	return queue, nil
}

// BatchApproveHighConfidence clears the review flag on every flagged
// prediction at or above the high-confidence threshold in one shot.
func (s *Service) BatchApproveHighConfidence(teacherID, paperID int64) (*models.BatchApproveResponse, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}

	approved, err := s.store.BatchApproveHighConfidence(paperID, s.cfg.HighConfidenceApprovalThreshold)
	if err != nil {
		return nil, err
	}

	log.Printf("[review] paper %d: batch-approved %d responses at confidence >= %.2f",
		paperID, approved, s.cfg.HighConfidenceApprovalThreshold)
	return &models.BatchApproveResponse{Approved: approved}, nil
}

// ReviewResponse records a teacher override on one response and recomputes
// the submission's totals so the override is immediately reflected in the
// student's score.
func (s *Service) ReviewResponse(teacherID, responseID int64, req models.ReviewResponseRequest) (*models.StudentResponse, error) {
	rc, err := s.store.GetResponseContext(responseID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, apperr.NotFound("response %d not found", responseID)
	}
	if rc.TeacherID != teacherID {
		return nil, apperr.Forbidden("response %d does not belong to this teacher", responseID)
	}
	if req.Score < 0 || req.Score > rc.MaxMarks {
		return nil, apperr.Validation("score %g outside [0, %g]", req.Score, rc.MaxMarks)
	}

	if err := s.store.ApplyOverride(responseID, req.Score, req.Comment); err != nil {
		return nil, err
	}

	if err := s.recomputeSubmissionTotals(rc.Response.SubmissionID, rc.PaperID); err != nil {
		return nil, err
	}

	updated, err := s.store.GetResponseContext(responseID)
	if err != nil {
		return nil, err
	}
	return &updated.Response, nil
}

// recomputeSubmissionTotals re-derives total, percentage, and letter grade
// from the submission's effective scores.
func (s *Service) recomputeSubmissionTotals(submissionID, paperID int64) error {
	paper, err := s.exams.GetPaper(paperID)
	if err != nil {
		return err
	}
	if paper == nil {
		return apperr.NotFound("exam paper %d not found", paperID)
	}

	responses, err := s.store.ListResponsesBySubmission(submissionID)
	if err != nil {
		return err
	}

	total := 0.0
	for i := range responses {
		total += responses[i].EffectiveScore()
	}
	pct := percentage(total, paper.TotalMarks)

	return s.store.UpdateSubmissionTotals(submissionID, total, pct, LetterGrade(s.cfg.GradeTable, pct))
}
