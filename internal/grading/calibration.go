package grading

import (
	"context"
	"fmt"
	"log"

	"github.com/academia/grading-backend/internal/apperr"
	"github.com/academia/grading-backend/internal/config"
	"github.com/academia/grading-backend/internal/models"
	"github.com/academia/grading-backend/internal/scoring"
)

// scoreComparison pairs the oracle's score with the teacher's score for one
// sample answer.
type scoreComparison struct {
	OracleScore  float64
	TeacherScore float64
	MaxMarks     float64
}

// RunCalibration scores every verified moderation sample through the oracle
// and compares against the teacher's scores. The verified-sample floor is
// checked before any oracle call is made.
func (s *Service) RunCalibration(ctx context.Context, teacherID, paperID int64) (*models.CalibrationResult, error) {
	paper, err := s.requireOwnedPaper(teacherID, paperID)
	if err != nil {
		return nil, err
	}

	samples, err := s.exams.ListModerationSamples(paperID, true)
	if err != nil {
		return nil, err
	}
	if len(samples) < s.cfg.MinVerifiedSamples {
		return nil, apperr.Validation("calibration needs at least %d verified moderation samples, have %d",
			s.cfg.MinVerifiedSamples, len(samples))
	}

	questions, expected, err := s.loadMarkingGuide(paperID)
	if err != nil {
		return nil, err
	}

	var comparisons []scoreComparison
	for _, sample := range samples {
		for _, entry := range sample.Entries {
			q, ok := questions[entry.QuestionID]
			if !ok {
				continue
			}
			// Same coverage rule as batch grading: no expected response,
			// no oracle call.
			exp, ok := expected[entry.QuestionID]
			if !ok {
				continue
			}

			result, err := s.scorer.Score(ctx, scoring.Request{
				RegionID:        fmt.Sprintf("cal-s%d-q%d", sample.ID, q.ID),
				QuestionText:    q.Text,
				QuestionType:    q.Type,
				ExpectedAnswer:  exp.Answer,
				ExtractedAnswer: entry.AnswerText,
				OCRConfidence:   1.0,
				MaxPoints:       q.Marks,
			})
			if err != nil {
				return nil, fmt.Errorf("calibrate sample %d question %d: %w", sample.ID, q.QuestionNumber, err)
			}

			comparisons = append(comparisons, scoreComparison{
				OracleScore:  clampScore(result.Score, q.Marks),
				TeacherScore: entry.Score,
				MaxMarks:     q.Marks,
			})
		}
	}

	result := calibrate(comparisons, len(samples), s.cfg)

	if err := s.store.SetCalibrationAccuracy(paperID, result.Accuracy); err != nil {
		return nil, err
	}

	log.Printf("[calibration] paper %d: accuracy %.2f over %d comparisons (calibrated=%v)",
		paper.ID, result.Accuracy, result.ComparisonCount, result.IsCalibrated)
	return result, nil
}

// calibrate computes accuracy over the comparisons. A prediction agrees
// with the teacher when it lands within the tolerance band, which scales
// with the question's marks so a 1-mark MCQ and a 10-mark essay are judged
// proportionally.
func calibrate(comparisons []scoreComparison, samplesUsed int, cfg config.Grading) *models.CalibrationResult {
	if len(comparisons) == 0 {
		return &models.CalibrationResult{
			SamplesUsed: samplesUsed,
			Message:     "No comparable answers found in the verified samples.",
		}
	}

	agreeing := 0
	var deviationSum float64
	for _, c := range comparisons {
		deviation := c.OracleScore - c.TeacherScore
		if deviation < 0 {
			deviation = -deviation
		}
		deviationSum += deviation

		tolerance := cfg.CalibrationScoreTolerance * c.MaxMarks
		if deviation <= tolerance {
			agreeing++
		}
	}

	accuracy := float64(agreeing) / float64(len(comparisons))
	calibrated := accuracy >= cfg.CalibrationAccuracyThreshold

	message := fmt.Sprintf("Model agrees with teacher scoring on %d of %d answers; safe to start batch grading.",
		agreeing, len(comparisons))
	if !calibrated {
		message = fmt.Sprintf("Model agrees with teacher scoring on only %d of %d answers; add more verified samples or review the expected responses before grading.",
			agreeing, len(comparisons))
	}

	return &models.CalibrationResult{
		Accuracy:         accuracy,
		AverageDeviation: deviationSum / float64(len(comparisons)),
		IsCalibrated:     calibrated,
		SamplesUsed:      samplesUsed,
		ComparisonCount:  len(comparisons),
		Message:          message,
	}
}
