package exam

import (
	"testing"

	"github.com/academia/grading-backend/internal/models"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	tests := []struct {
		name string
		from models.PaperStatus
		to   models.PaperStatus
		want bool
	}{
		{"draft to questions added", models.PaperDraft, models.PaperQuestionsAdded, true},
		{"questions added to responses set", models.PaperQuestionsAdded, models.PaperResponsesSet, true},
		{"responses set to moderation ready", models.PaperResponsesSet, models.PaperModerationReady, true},
		{"moderation ready is optional", models.PaperResponsesSet, models.PaperGradingActive, true},
		{"moderation ready to grading", models.PaperModerationReady, models.PaperGradingActive, true},
		{"no skipping responses set", models.PaperQuestionsAdded, models.PaperModerationReady, false},
		{"no skipping to grading from draft", models.PaperDraft, models.PaperGradingActive, false},
		{"no skipping to completed", models.PaperResponsesSet, models.PaperCompleted, false},
		{"backwards", models.PaperResponsesSet, models.PaperQuestionsAdded, false},
		{"same status", models.PaperGradingActive, models.PaperGradingActive, false},
		{"completed is terminal forward", models.PaperCompleted, models.PaperGradingActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCanTransitionErrorPaths(t *testing.T) {
	if !CanTransition(models.PaperGradingActive, models.PaperError) {
		t.Error("GRADING_ACTIVE should be able to enter ERROR")
	}
	for _, from := range []models.PaperStatus{models.PaperDraft, models.PaperResponsesSet, models.PaperCompleted} {
		if CanTransition(from, models.PaperError) {
			t.Errorf("%s should not be able to enter ERROR", from)
		}
	}

	if !CanTransition(models.PaperError, models.PaperCompleted) {
		t.Error("ERROR paper should still be finalizable")
	}
	if CanTransition(models.PaperError, models.PaperGradingActive) {
		t.Error("ERROR paper should not re-enter GRADING_ACTIVE directly")
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	if CanTransition(models.PaperStatus("BOGUS"), models.PaperCompleted) {
		t.Error("unknown from-status should never transition")
	}
	if CanTransition(models.PaperDraft, models.PaperStatus("BOGUS")) {
		t.Error("unknown to-status should never be reachable")
	}
}

func TestStatusRank(t *testing.T) {
	if StatusRank(models.PaperDraft) != 0 {
		t.Errorf("DRAFT rank = %d, want 0", StatusRank(models.PaperDraft))
	}
	if StatusRank(models.PaperCompleted) != 5 {
		t.Errorf("COMPLETED rank = %d, want 5", StatusRank(models.PaperCompleted))
	}
	if StatusRank(models.PaperError) != -1 {
		t.Errorf("ERROR rank = %d, want -1", StatusRank(models.PaperError))
	}
}

func TestAtLeast(t *testing.T) {
	if !AtLeast(models.PaperGradingActive, models.PaperResponsesSet) {
		t.Error("GRADING_ACTIVE should count as at least RESPONSES_SET")
	}
	if AtLeast(models.PaperQuestionsAdded, models.PaperGradingActive) {
		t.Error("QUESTIONS_ADDED should not count as at least GRADING_ACTIVE")
	}
	if !AtLeast(models.PaperError, models.PaperGradingActive) {
		t.Error("ERROR should count as having reached GRADING_ACTIVE")
	}
	if AtLeast(models.PaperError, models.PaperCompleted) {
		t.Error("ERROR should not count as COMPLETED")
	}
}
