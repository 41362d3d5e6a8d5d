// Package drafter generates draft expected responses for a paper's
// questions via an LLM. Drafts are marked ai-generated and the teacher is
// expected to review them before moderation.
package drafter

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/academia/grading-backend/internal/models"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// LLMClient is the interface both drafter implementations satisfy.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Drafter wraps an LLMClient and adds the expected-response drafting flow.
type Drafter struct {
	llm   LLMClient
	model string
}

func New() *Drafter {
	var llm LLMClient
	model := "mock"

	if os.Getenv("MOCK_DRAFTER") == "true" {
		llm = NewMockClient()
		log.Println("Drafter using mock data")
	} else {
		model = os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-opus-4-5-20251101"
		}
		llm = NewAPIClient(model)
		log.Println("Drafter using Anthropic API:", model)
	}

	return &Drafter{llm: llm, model: model}
}

func (d *Drafter) ModelName() string {
	return d.model
}

// DraftExpectedResponses asks the LLM for a canonical answer, keyword list,
// and marking scheme for every question on the paper.
func (d *Drafter) DraftExpectedResponses(ctx context.Context, paper *models.ExamPaper, questions []models.Question) ([]DraftedResponse, error) {
	systemPrompt := SystemPrompt()
	userPrompt := BuildUserPrompt(paper, questions)

	resp, err := d.llm.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("draft expected responses: %w", err)
	}

	drafts, err := ParseResponse(resp.Content, questions)
	if err != nil {
		return nil, fmt.Errorf("parse draft response: %w", err)
	}

	return drafts, nil
}

// ── APIClient — Anthropic SDK (Production) ─────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   8192,
		Temperature: param.NewOpt(0.3),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("Retrying Anthropic API call in %v (attempt %d)", sleepDuration, attempt+1)
			time.Sleep(sleepDuration)
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		log.Printf("Anthropic API attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient — Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

var questionLineRe = regexp.MustCompile(`(?m)^Question (\d+) \(([A-Z_]+), `)

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	matches := questionLineRe.FindAllStringSubmatch(userPrompt, -1)

	var sb strings.Builder
	sb.WriteString(`{"responses":[`)
	for i, match := range matches {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb,
			`{"question_number":%s,"answer":"[Mock] Canonical answer for question %s.","keywords":["mock","answer"],"marking_scheme":{"type":"%s"}}`,
			match[1], match[1], match[2])
	}
	sb.WriteString(`]}`)

	return &LLMResponse{
		Content:      sb.String(),
		PromptTokens: 800,
		OutputTokens: 1200,
	}, nil
}
