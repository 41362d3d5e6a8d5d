// Package grading runs the batch grading pipeline: calibration against
// teacher-scored samples, oracle fan-out over uploaded submissions, review
// triage for low-confidence predictions, and finalization.
package grading

import "github.com/academia/grading-backend/internal/config"

// LetterGrade maps a percentage onto the configured grade table. Bands are
// ordered highest minimum first; the first band at or below the percentage
// wins. An empty table yields "".
func LetterGrade(table []config.GradeBand, percentage float64) string {
	for _, band := range table {
		if percentage >= band.MinPercentage {
			return band.Letter
		}
	}
	if len(table) > 0 {
		return table[len(table)-1].Letter
	}
	return ""
}

// clampScore forces a score into [0, max]. The oracle is trusted but its
// scores are bounded here anyway so a misbehaving model cannot push a
// submission past full marks.
func clampScore(score, max float64) float64 {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}

// percentage converts a raw total into a 0-100 percentage, guarding the
// degenerate zero-mark paper.
func percentage(total, totalMarks float64) float64 {
	if totalMarks <= 0 {
		return 0
	}
	return total / totalMarks * 100
}
