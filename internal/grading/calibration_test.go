package grading

import (
	"strings"
	"testing"

	"github.com/academia/grading-backend/internal/config"
)

func TestCalibrateAllAgreeing(t *testing.T) {
	cfg := config.Default()
	comparisons := []scoreComparison{
		{OracleScore: 5, TeacherScore: 5, MaxMarks: 5},
		{OracleScore: 2.5, TeacherScore: 3, MaxMarks: 10},  // off by 0.5, tolerance 2.0
		{OracleScore: 9, TeacherScore: 10, MaxMarks: 10},   // off by 1.0, tolerance 2.0
		{OracleScore: 1, TeacherScore: 1.1, MaxMarks: 1},   // off by 0.1, tolerance 0.2
	}

	result := calibrate(comparisons, 3, cfg)
	if result.Accuracy != 1.0 {
		t.Errorf("accuracy = %v, want 1.0", result.Accuracy)
	}
	if !result.IsCalibrated {
		t.Error("should be calibrated at full agreement")
	}
	if result.SamplesUsed != 3 {
		t.Errorf("samples used = %d, want 3", result.SamplesUsed)
	}
	if result.ComparisonCount != 4 {
		t.Errorf("comparison count = %d, want 4", result.ComparisonCount)
	}
	if !strings.Contains(result.Message, "safe to start") {
		t.Errorf("calibrated message should invite grading, got %q", result.Message)
	}
}

func TestCalibrateToleranceScalesWithMarks(t *testing.T) {
	cfg := config.Default() // tolerance 0.20 of marks

	// Deviation of 1.5: outside tolerance for a 5-mark question (1.0),
	// inside for a 10-mark question (2.0).
	small := calibrate([]scoreComparison{{OracleScore: 3.5, TeacherScore: 5, MaxMarks: 5}}, 2, cfg)
	if small.Accuracy != 0 {
		t.Errorf("5-mark deviation 1.5 should disagree, accuracy = %v", small.Accuracy)
	}
	large := calibrate([]scoreComparison{{OracleScore: 8.5, TeacherScore: 10, MaxMarks: 10}}, 2, cfg)
	if large.Accuracy != 1 {
		t.Errorf("10-mark deviation 1.5 should agree, accuracy = %v", large.Accuracy)
	}
}

func TestCalibrateBelowThreshold(t *testing.T) {
	cfg := config.Default()
	comparisons := []scoreComparison{
		{OracleScore: 5, TeacherScore: 5, MaxMarks: 5},
		{OracleScore: 0, TeacherScore: 5, MaxMarks: 5},
		{OracleScore: 1, TeacherScore: 4, MaxMarks: 5},
		{OracleScore: 5, TeacherScore: 0, MaxMarks: 5},
	}

	result := calibrate(comparisons, 2, cfg)
	if result.Accuracy != 0.25 {
		t.Errorf("accuracy = %v, want 0.25", result.Accuracy)
	}
	if result.IsCalibrated {
		t.Error("should not be calibrated at 25% agreement")
	}
	if !strings.Contains(result.Message, "add more verified samples") {
		t.Errorf("uncalibrated message should suggest remediation, got %q", result.Message)
	}
}

func TestCalibrateAverageDeviation(t *testing.T) {
	cfg := config.Default()
	comparisons := []scoreComparison{
		{OracleScore: 4, TeacherScore: 5, MaxMarks: 10}, // deviation 1
		{OracleScore: 8, TeacherScore: 5, MaxMarks: 10}, // deviation 3
	}

	result := calibrate(comparisons, 2, cfg)
	if result.AverageDeviation != 2 {
		t.Errorf("average deviation = %v, want 2", result.AverageDeviation)
	}
}

func TestCalibrateNoComparisons(t *testing.T) {
	result := calibrate(nil, 2, config.Default())
	if result.IsCalibrated {
		t.Error("no comparisons should not count as calibrated")
	}
	if result.Accuracy != 0 || result.ComparisonCount != 0 {
		t.Errorf("empty calibration = %+v, want zeroes", result)
	}
}
