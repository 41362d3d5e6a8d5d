package grading

import (
	"testing"

	"github.com/academia/grading-backend/internal/models"
)

func TestMean(t *testing.T) {
	if got := mean(nil); got != 0 {
		t.Errorf("mean(nil) = %v, want 0", got)
	}
	if got := mean([]float64{4, 6, 8}); got != 6 {
		t.Errorf("mean = %v, want 6", got)
	}
}

func TestMedian(t *testing.T) {
	if got := median(nil); got != 0 {
		t.Errorf("median(nil) = %v, want 0", got)
	}
	if got := median([]float64{1, 5, 9}); got != 5 {
		t.Errorf("odd median = %v, want 5", got)
	}
	if got := median([]float64{2, 4, 6, 8}); got != 5 {
		t.Errorf("even median = %v, want 5", got)
	}
}

func TestBuildQuestionStats(t *testing.T) {
	rows := []questionStatRow{
		{QuestionID: 1, QuestionNumber: 1, Marks: 4, Correctness: models.CorrectnessCorrect, Count: 3, ScoreSum: 12},
		{QuestionID: 1, QuestionNumber: 1, Marks: 4, Correctness: models.CorrectnessIncorrect, Count: 1, ScoreSum: 0},
		{QuestionID: 2, QuestionNumber: 2, Marks: 6, Correctness: models.CorrectnessPartial, Count: 4, ScoreSum: 12},
	}

	stats := buildQuestionStats(rows)
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}

	q1 := stats[0]
	if q1.QuestionNumber != 1 {
		t.Errorf("first stat question number = %d, want 1", q1.QuestionNumber)
	}
	if q1.AverageScore != 3 {
		t.Errorf("q1 average = %v, want 3 (12 over 4 responses)", q1.AverageScore)
	}
	if q1.AverageScoreRatio != 0.75 {
		t.Errorf("q1 ratio = %v, want 0.75", q1.AverageScoreRatio)
	}
	if q1.Correctness[models.CorrectnessCorrect] != 3 || q1.Correctness[models.CorrectnessIncorrect] != 1 {
		t.Errorf("q1 correctness distribution = %v", q1.Correctness)
	}

	q2 := stats[1]
	if q2.AverageScore != 3 {
		t.Errorf("q2 average = %v, want 3", q2.AverageScore)
	}
	if q2.AverageScoreRatio != 0.5 {
		t.Errorf("q2 ratio = %v, want 0.5", q2.AverageScoreRatio)
	}
}

func TestBuildQuestionStatsEmpty(t *testing.T) {
	stats := buildQuestionStats(nil)
	if stats == nil || len(stats) != 0 {
		t.Errorf("empty rows should yield an empty (non-nil) slice, got %v", stats)
	}
}
