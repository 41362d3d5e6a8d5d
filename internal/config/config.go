// Package config centralizes the grading thresholds that the origin system
// scattered as magic numbers. Every component receives the struct by value
// so tests can exercise boundary values deterministically.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// GradeBand maps a minimum percentage to a letter grade.
type GradeBand struct {
	MinPercentage float64 `json:"min_percentage"`
	Letter        string  `json:"letter"`
}

type Grading struct {
	// Below this confidence a response is flagged needs_review.
	ReviewConfidenceThreshold float64
	// At or above this confidence a response is eligible for one-click
	// batch approval.
	HighConfidenceApprovalThreshold float64
	// Minimum calibration accuracy for is_calibrated.
	CalibrationAccuracyThreshold float64
	// A prediction counts toward accuracy when it is within this fraction
	// of the question's marks of the human score.
	CalibrationScoreTolerance float64
	// Hard precondition for running calibration.
	MinVerifiedSamples int
	// Advisory sample count for the MODERATION_READY status nudge.
	ModerationReadySampleCount int
	// Max in-flight oracle calls during a batch run.
	GradingConcurrency int
	// Ordered bands (highest minimum first) deriving letter grades.
	GradeTable []GradeBand
}

func Default() Grading {
	return Grading{
		ReviewConfidenceThreshold:       0.90,
		HighConfidenceApprovalThreshold: 0.95,
		CalibrationAccuracyThreshold:    0.80,
		CalibrationScoreTolerance:       0.20,
		MinVerifiedSamples:              2,
		ModerationReadySampleCount:      3,
		GradingConcurrency:              10,
		GradeTable: []GradeBand{
			{90, "A+"}, {80, "A"}, {70, "B"}, {60, "C"}, {50, "D"}, {0, "F"},
		},
	}
}

// FromEnv returns the default configuration overridden by any recognized
// environment variables. Unparseable values keep the default.
func FromEnv() Grading {
	cfg := Default()
	cfg.ReviewConfidenceThreshold = floatEnv("REVIEW_CONFIDENCE_THRESHOLD", cfg.ReviewConfidenceThreshold)
	cfg.HighConfidenceApprovalThreshold = floatEnv("HIGH_CONFIDENCE_APPROVAL_THRESHOLD", cfg.HighConfidenceApprovalThreshold)
	cfg.CalibrationAccuracyThreshold = floatEnv("CALIBRATION_ACCURACY_THRESHOLD", cfg.CalibrationAccuracyThreshold)
	cfg.CalibrationScoreTolerance = floatEnv("CALIBRATION_SCORE_TOLERANCE", cfg.CalibrationScoreTolerance)
	cfg.MinVerifiedSamples = intEnv("MIN_VERIFIED_SAMPLES", cfg.MinVerifiedSamples)
	cfg.ModerationReadySampleCount = intEnv("MODERATION_READY_SAMPLE_COUNT", cfg.ModerationReadySampleCount)
	cfg.GradingConcurrency = intEnv("GRADING_CONCURRENCY", cfg.GradingConcurrency)

	if v := os.Getenv("GRADE_TABLE"); v != "" {
		table, err := ParseGradeTable(v)
		if err == nil {
			cfg.GradeTable = table
		}
	}
	return cfg
}

// ParseGradeTable parses "90:A+,80:A,70:B,60:C,50:D,0:F" into ordered bands
// (highest minimum first).
func ParseGradeTable(s string) ([]GradeBand, error) {
	var table []GradeBand
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("invalid grade band %q", pair)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid grade band %q: %w", pair, err)
		}
		table = append(table, GradeBand{MinPercentage: min, Letter: strings.TrimSpace(parts[1])})
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("empty grade table")
	}
	sort.Slice(table, func(i, j int) bool { return table[i].MinPercentage > table[j].MinPercentage })
	return table, nil
}

func floatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
