package grading

import (
	"testing"

	"github.com/academia/grading-backend/internal/config"
)

func TestLetterGrade(t *testing.T) {
	table := config.Default().GradeTable

	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A+"},
		{90, "A+"},
		{89.9, "A"},
		{75, "B"},
		{60, "C"},
		{55, "D"},
		{49.9, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		if got := LetterGrade(table, tt.pct); got != tt.want {
			t.Errorf("LetterGrade(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestLetterGradeEmptyTable(t *testing.T) {
	if got := LetterGrade(nil, 80); got != "" {
		t.Errorf("empty table should yield empty grade, got %q", got)
	}
}

func TestLetterGradeBelowAllBands(t *testing.T) {
	table := []config.GradeBand{{MinPercentage: 50, Letter: "PASS"}, {MinPercentage: 20, Letter: "FAIL"}}
	if got := LetterGrade(table, 5); got != "FAIL" {
		t.Errorf("percentage below every band should fall to the last band, got %q", got)
	}
}

func TestClampScore(t *testing.T) {
	if got := clampScore(-1, 10); got != 0 {
		t.Errorf("clampScore(-1, 10) = %v, want 0", got)
	}
	if got := clampScore(12, 10); got != 10 {
		t.Errorf("clampScore(12, 10) = %v, want 10", got)
	}
	if got := clampScore(7.5, 10); got != 7.5 {
		t.Errorf("clampScore(7.5, 10) = %v, want 7.5", got)
	}
}

func TestPercentage(t *testing.T) {
	if got := percentage(10, 10); got != 100 {
		t.Errorf("percentage(10, 10) = %v, want 100", got)
	}
	if got := percentage(3, 12); got != 25 {
		t.Errorf("percentage(3, 12) = %v, want 25", got)
	}
	if got := percentage(5, 0); got != 0 {
		t.Errorf("zero-mark paper should yield 0, got %v", got)
	}
}
