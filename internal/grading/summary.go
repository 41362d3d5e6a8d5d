package grading

import (
	"log"

	"github.com/academia/grading-backend/internal/apperr"
	"github.com/academia/grading-backend/internal/exam"
	"github.com/academia/grading-backend/internal/models"
)

// GetGradingSummary aggregates the paper's results: submission counts by
// status, mean and median totals, and per-question score and correctness
// distributions.
func (s *Service) GetGradingSummary(teacherID, paperID int64) (*models.GradingSummary, error) {
	if _, err := s.requireOwnedPaper(teacherID, paperID); err != nil {
		return nil, err
	}

	counts, err := s.store.CountSubmissionsByStatus(paperID)
	if err != nil {
		return nil, err
	}

	totals, err := s.store.ListGradedTotals(paperID)
	if err != nil {
		return nil, err
	}

	statRows, err := s.store.ListQuestionStatRows(paperID)
	if err != nil {
		return nil, err
	}

	return &models.GradingSummary{
		ExamPaperID:      paperID,
		SubmissionCounts: counts,
		MeanScore:        mean(totals),
		MedianScore:      median(totals),
		QuestionStats:    buildQuestionStats(statRows),
	}, nil
}

// FinalizeGrading moves the paper to COMPLETED and optionally publishes
// results, flipping every graded submission to REVIEWED. Finalizing an
// already-completed paper is a no-op so retries are safe.
func (s *Service) FinalizeGrading(teacherID, paperID int64, req models.FinalizeRequest) (*models.FinalizeResponse, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}

	if paper.Status != models.PaperCompleted {
		if !exam.CanTransition(paper.Status, models.PaperCompleted) {
			return nil, apperr.Validation("exam paper %d cannot be finalized from status %s", paperID, paper.Status)
		}
		sess, err := s.store.GetSessionByPaper(paperID)
		if err != nil {
			return nil, err
		}
		if sess != nil && sess.Status == models.SessionRunning {
			return nil, apperr.Conflict("a grading run is still in progress for exam paper %d", paperID)
		}
		if _, err := s.exams.UpdatePaperStatus(paperID, paper.Status, models.PaperCompleted); err != nil {
			return nil, err
		}
	}

	published := 0
	if req.PublishResults {
		published, err = s.store.PublishResults(paperID)
		if err != nil {
			return nil, err
		}
		reviewed, err := s.store.CountReviewedSubmissions(paperID)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetReviewedCount(paperID, reviewed); err != nil {
			return nil, err
		}
	}

	log.Printf("[grading] paper %d finalized (published %d results)", paperID, published)
	return &models.FinalizeResponse{Status: models.PaperCompleted, Published: published}, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median expects values sorted ascending, which ListGradedTotals guarantees.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// buildQuestionStats folds the per-(question, correctness) aggregation rows
// into one stat per question. Rows arrive ordered by question number.
func buildQuestionStats(rows []questionStatRow) []models.QuestionStat {
	stats := []models.QuestionStat{}
	index := make(map[int64]int)

	for _, row := range rows {
		i, ok := index[row.QuestionID]
		if !ok {
			i = len(stats)
			index[row.QuestionID] = i
			stats = append(stats, models.QuestionStat{
				QuestionID:     row.QuestionID,
				QuestionNumber: row.QuestionNumber,
				Marks:          row.Marks,
				Correctness:    make(map[models.Correctness]int),
			})
		}
		stats[i].Correctness[row.Correctness] += row.Count
		// AverageScore temporarily accumulates the sum; divided below.
		stats[i].AverageScore += row.ScoreSum
	}

	for i := range stats {
		total := 0
		for _, n := range stats[i].Correctness {
			total += n
		}
		if total > 0 {
			stats[i].AverageScore /= float64(total)
		}
		if stats[i].Marks > 0 {
			stats[i].AverageScoreRatio = stats[i].AverageScore / stats[i].Marks
		}
	}
	return stats
}
