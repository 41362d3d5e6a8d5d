package drafter

import (
	"fmt"
	"strings"

	"github.com/academia/grading-backend/internal/models"
)

func SystemPrompt() string {
	return `You are an experienced teacher writing the marking guide for an exam paper.
For each question you are given, produce the canonical expected answer, a short
list of keywords a correct answer should contain, and a marking scheme.

Respond with ONLY a JSON object, no prose and no code fences:
{
  "responses": [
    {
      "question_number": 1,
      "answer": "the canonical answer",
      "keywords": ["keyword1", "keyword2"],
      "marking_scheme": {
        "type": "SHORT_ANSWER",
        "correct_option": "B",
        "bool_answer": true,
        "numeric_value": 42.0,
        "numeric_tolerance": 0.5,
        "keywords": [{"keyword": "osmosis", "weight": 2}],
        "rubric_criteria": [{"description": "names the process", "marks": 2}]
      }
    }
  ]
}

Marking scheme rules by question type:
- MCQ: set correct_option to the correct letter, omit the other fields.
- TRUE_FALSE: set bool_answer only.
- NUMERIC: set numeric_value and numeric_tolerance only.
- SHORT_ANSWER: set keywords with weights summing to the question's marks.
- LONG_ANSWER: set rubric_criteria with marks summing to the question's marks.
- OTHER: omit all optional fields.

Cover every question exactly once. Answers must be directly markable, not
explanations of how to mark.`
}

func BuildUserPrompt(paper *models.ExamPaper, questions []models.Question) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Exam paper: %s", paper.Title)
	if paper.Subject != "" {
		fmt.Fprintf(&sb, " (subject: %s)", paper.Subject)
	}
	fmt.Fprintf(&sb, "\nTotal marks: %g\n\n", paper.TotalMarks)

	for _, q := range questions {
		fmt.Fprintf(&sb, "Question %d (%s, %g marks): %s\n", q.QuestionNumber, q.Type, q.Marks, q.Text)
	}

	sb.WriteString("\nDraft the expected response for every question above.")
	return sb.String()
}
