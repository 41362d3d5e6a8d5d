package exam

import "github.com/academia/grading-backend/internal/models"

// statusRank orders the forward-only lifecycle. ERROR sits outside the
// ordering and is handled explicitly.
var statusRank = map[models.PaperStatus]int{
	models.PaperDraft:           0,
	models.PaperQuestionsAdded:  1,
	models.PaperResponsesSet:    2,
	models.PaperModerationReady: 3,
	models.PaperGradingActive:   4,
	models.PaperCompleted:       5,
}

// StatusRank returns the position of a status in the forward order, or -1
// for ERROR and unknown values.
func StatusRank(s models.PaperStatus) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// allowedFrom lists the legal predecessors of each status. The lifecycle
// only moves forward and never skips a required step; MODERATION_READY is
// the one optional stop, so GRADING_ACTIVE accepts both RESPONSES_SET and
// MODERATION_READY. ERROR is reachable solely from GRADING_ACTIVE, and a
// failed paper can still be finalized.
var allowedFrom = map[models.PaperStatus][]models.PaperStatus{
	models.PaperQuestionsAdded:  {models.PaperDraft},
	models.PaperResponsesSet:    {models.PaperQuestionsAdded},
	models.PaperModerationReady: {models.PaperResponsesSet},
	models.PaperGradingActive:   {models.PaperResponsesSet, models.PaperModerationReady},
	models.PaperCompleted:       {models.PaperGradingActive, models.PaperError},
	models.PaperError:           {models.PaperGradingActive},
}

// CanTransition reports whether a paper may move from one status to another.
func CanTransition(from, to models.PaperStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// AtLeast reports whether the paper has reached the given status (ERROR
// counts as having passed GRADING_ACTIVE).
func AtLeast(status, floor models.PaperStatus) bool {
	if status == models.PaperError {
		return StatusRank(floor) <= statusRank[models.PaperGradingActive]
	}
	r := StatusRank(status)
	f := StatusRank(floor)
	return r >= 0 && f >= 0 && r >= f
}
