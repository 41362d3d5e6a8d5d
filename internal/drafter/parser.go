package drafter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/academia/grading-backend/internal/models"
)

type draftEnvelope struct {
	Responses []DraftedResponse `json:"responses"`
}

type DraftedResponse struct {
	QuestionNumber int                   `json:"question_number"`
	Answer         string                `json:"answer"`
	Keywords       []string              `json:"keywords"`
	MarkingScheme  *models.MarkingScheme `json:"marking_scheme"`
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// ParseResponse parses the LLM output and checks it covers every question
// exactly once with a non-empty answer.
func ParseResponse(responseBody string, questions []models.Question) ([]DraftedResponse, error) {
	cleaned := stripCodeFences(responseBody)

	var envelope draftEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if err := validateDrafts(envelope.Responses, questions); err != nil {
		return nil, err
	}

	return envelope.Responses, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func validateDrafts(drafts []DraftedResponse, questions []models.Question) error {
	var errs []string

	if len(drafts) == 0 {
		return &ValidationError{Errors: []string{"no responses in draft"}}
	}

	byNumber := make(map[int]bool)
	for i, d := range drafts {
		if d.Answer == "" {
			errs = append(errs, fmt.Sprintf("response %d: empty answer", i+1))
		}
		if byNumber[d.QuestionNumber] {
			errs = append(errs, fmt.Sprintf("question %d drafted more than once", d.QuestionNumber))
		}
		byNumber[d.QuestionNumber] = true

		if d.MarkingScheme != nil && d.MarkingScheme.Type != "" && !models.ValidQuestionTypes[d.MarkingScheme.Type] {
			errs = append(errs, fmt.Sprintf("question %d: invalid marking scheme type %q", d.QuestionNumber, d.MarkingScheme.Type))
		}
	}

	for _, q := range questions {
		if !byNumber[q.QuestionNumber] {
			errs = append(errs, fmt.Sprintf("question %d has no drafted response", q.QuestionNumber))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}
