package drafter

import (
	"context"
	"strings"
	"testing"

	"github.com/academia/grading-backend/internal/models"
)

func parserQuestions() []models.Question {
	return []models.Question{
		{ID: 10, QuestionNumber: 1, Text: "Define osmosis.", Type: models.QuestionShortAnswer, Marks: 4},
		{ID: 11, QuestionNumber: 2, Text: "Is water wet?", Type: models.QuestionTrueFalse, Marks: 1},
	}
}

func TestParseResponseValid(t *testing.T) {
	body := `{"responses":[
		{"question_number":1,"answer":"Diffusion of water across a membrane","keywords":["diffusion","membrane"],"marking_scheme":{"type":"SHORT_ANSWER"}},
		{"question_number":2,"answer":"true","marking_scheme":{"type":"TRUE_FALSE","bool_answer":true}}
	]}`

	drafts, err := ParseResponse(body, parserQuestions())
	if err != nil {
		t.Fatalf("ParseResponse returned error: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].QuestionNumber != 1 || len(drafts[0].Keywords) != 2 {
		t.Errorf("first draft = %+v", drafts[0])
	}
	if drafts[1].MarkingScheme == nil || drafts[1].MarkingScheme.BoolAnswer == nil || !*drafts[1].MarkingScheme.BoolAnswer {
		t.Errorf("second draft scheme = %+v", drafts[1].MarkingScheme)
	}
}

func TestParseResponseStripsCodeFences(t *testing.T) {
	body := "```json\n" + `{"responses":[
		{"question_number":1,"answer":"a"},
		{"question_number":2,"answer":"b"}
	]}` + "\n```"

	drafts, err := ParseResponse(body, parserQuestions())
	if err != nil {
		t.Fatalf("ParseResponse returned error: %v", err)
	}
	if len(drafts) != 2 {
		t.Errorf("got %d drafts, want 2", len(drafts))
	}
}

func TestParseResponseInvalidJSON(t *testing.T) {
	if _, err := ParseResponse("not json at all", parserQuestions()); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestParseResponseMissingQuestion(t *testing.T) {
	body := `{"responses":[{"question_number":1,"answer":"a"}]}`
	_, err := ParseResponse(body, parserQuestions())
	if err == nil {
		t.Fatal("expected validation error for missing question")
	}
	if !strings.Contains(err.Error(), "question 2 has no drafted response") {
		t.Errorf("error = %v", err)
	}
}

func TestParseResponseDuplicateQuestion(t *testing.T) {
	body := `{"responses":[
		{"question_number":1,"answer":"a"},
		{"question_number":1,"answer":"b"},
		{"question_number":2,"answer":"c"}
	]}`
	_, err := ParseResponse(body, parserQuestions())
	if err == nil {
		t.Fatal("expected validation error for duplicate question")
	}
	if !strings.Contains(err.Error(), "drafted more than once") {
		t.Errorf("error = %v", err)
	}
}

func TestParseResponseEmptyAnswer(t *testing.T) {
	body := `{"responses":[
		{"question_number":1,"answer":""},
		{"question_number":2,"answer":"b"}
	]}`
	if _, err := ParseResponse(body, parserQuestions()); err == nil {
		t.Error("expected validation error for empty answer")
	}
}

func TestParseResponseBadSchemeType(t *testing.T) {
	body := `{"responses":[
		{"question_number":1,"answer":"a","marking_scheme":{"type":"ESSAY"}},
		{"question_number":2,"answer":"b"}
	]}`
	if _, err := ParseResponse(body, parserQuestions()); err == nil {
		t.Error("expected validation error for unknown marking scheme type")
	}
}

func TestMockClientCoversEveryQuestion(t *testing.T) {
	questions := parserQuestions()
	paper := &models.ExamPaper{Title: "Biology Midterm", TotalMarks: 5}
	prompt := BuildUserPrompt(paper, questions)

	resp, err := NewMockClient().Generate(context.Background(), SystemPrompt(), prompt)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	drafts, err := ParseResponse(resp.Content, questions)
	if err != nil {
		t.Fatalf("mock output failed validation: %v", err)
	}
	if len(drafts) != len(questions) {
		t.Errorf("got %d drafts for %d questions", len(drafts), len(questions))
	}
	for i, d := range drafts {
		if d.MarkingScheme == nil || d.MarkingScheme.Type != questions[i].Type {
			t.Errorf("draft %d scheme type mismatch: %+v", i, d.MarkingScheme)
		}
	}
}
