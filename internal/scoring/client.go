// Package scoring adapts the external ML scoring oracle. The oracle
// converts a (question, extracted answer) pair into a predicted score,
// correctness label, confidence, and explanation; everything behind its
// /predict endpoint is someone else's problem.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/academia/grading-backend/internal/models"
)

// Request is one scoring call. RegionID identifies the answer region for
// oracle-side tracing and is echoed back unchanged.
type Request struct {
	RegionID        string
	QuestionText    string
	QuestionType    models.QuestionType
	ExpectedAnswer  string
	ExtractedAnswer string
	OCRConfidence   float64
	MaxPoints       float64
}

// Result is the oracle's verdict. ExtractedAnswer may come back normalized.
type Result struct {
	ExtractedAnswer string
	Score           float64
	Correctness     models.Correctness
	Confidence      float64
	Explanation     string
}

// Client is the interface both oracle implementations satisfy.
type Client interface {
	Score(ctx context.Context, req Request) (*Result, error)
}

// NewClient picks the oracle implementation from the environment.
func NewClient() Client {
	if os.Getenv("MOCK_SCORER") == "true" {
		log.Println("Scoring client using mock oracle")
		return NewMockClient()
	}
	c := NewHTTPClient()
	log.Println("Scoring client using ML service:", c.baseURL)
	return c
}

// ── HTTPClient — ML Service (Production) ───────────────────

type HTTPClient struct {
	baseURL string
	modelID string
	client  *http.Client
}

func NewHTTPClient() *HTTPClient {
	baseURL := os.Getenv("ORACLE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}
	modelID := os.Getenv("ORACLE_MODEL_ID")
	if modelID == "" {
		modelID = "default"
	}
	timeout := 30 * time.Second
	if v := os.Getenv("ORACLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		modelID: modelID,
		client:  &http.Client{Timeout: timeout},
	}
}

// predictRequest matches the ML service's /predict contract.
type predictRequest struct {
	ModelID        string             `json:"model_id"`
	RegionID       string             `json:"region_id"`
	Text           string             `json:"text"`
	OCRData        map[string]float64 `json:"ocr_data"`
	QuestionType   string             `json:"question_type"`
	ExpectedAnswer string             `json:"expected_answer,omitempty"`
	MaxPoints      float64            `json:"max_points"`
}

type predictResponse struct {
	RegionID             string  `json:"region_id"`
	PredictedCorrectness string  `json:"predicted_correctness"`
	Confidence           float64 `json:"confidence"`
	AssignedScore        float64 `json:"assigned_score"`
	Explanation          string  `json:"explanation"`
}

func (c *HTTPClient) Score(ctx context.Context, req Request) (*Result, error) {
	payload := predictRequest{
		ModelID:        c.modelID,
		RegionID:       req.RegionID,
		Text:           req.ExtractedAnswer,
		OCRData:        map[string]float64{"confidence": req.OCRConfidence},
		QuestionType:   string(req.QuestionType),
		ExpectedAnswer: req.ExpectedAnswer,
		MaxPoints:      req.MaxPoints,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	resp, err := c.callWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	correctness := models.Correctness(resp.PredictedCorrectness)
	if !models.ValidCorrectness[correctness] {
		return nil, fmt.Errorf("oracle returned unknown correctness %q", resp.PredictedCorrectness)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return nil, fmt.Errorf("oracle returned confidence %f outside [0,1]", resp.Confidence)
	}

	return &Result{
		ExtractedAnswer: req.ExtractedAnswer,
		Score:           resp.AssignedScore,
		Correctness:     correctness,
		Confidence:      resp.Confidence,
		Explanation:     resp.Explanation,
	}, nil
}

func (c *HTTPClient) callWithRetry(ctx context.Context, body []byte) (*predictResponse, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("Retrying scoring oracle call in %v (attempt %d)", sleepDuration, attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepDuration):
			}
		}

		resp, err := c.doPredict(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		log.Printf("Scoring oracle attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("scoring oracle failed after retries: %w", lastErr)
}

func (c *HTTPClient) doPredict(ctx context.Context, body []byte) (*predictResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("predict call: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("predict returned status %d: %s", httpResp.StatusCode, string(snippet))
	}

	var resp predictResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	return &resp, nil
}

// ── MockClient — Local Development ─────────────────────────

// MockClient scores by word overlap with the expected answer, which is
// deterministic and good enough for local runs and tests.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Score(ctx context.Context, req Request) (*Result, error) {
	extracted := strings.TrimSpace(strings.ToLower(req.ExtractedAnswer))
	expected := strings.TrimSpace(strings.ToLower(req.ExpectedAnswer))

	if extracted == "" {
		return &Result{
			ExtractedAnswer: req.ExtractedAnswer,
			Score:           0,
			Correctness:     models.CorrectnessSkipped,
			Confidence:      0.99,
			Explanation:     "No answer detected in this region.",
		}, nil
	}

	if extracted == expected {
		return &Result{
			ExtractedAnswer: req.ExtractedAnswer,
			Score:           req.MaxPoints,
			Correctness:     models.CorrectnessCorrect,
			Confidence:      0.97,
			Explanation:     "Answer matches the expected response exactly.",
		}, nil
	}

	overlap := wordOverlap(extracted, expected)
	if overlap >= 0.5 {
		return &Result{
			ExtractedAnswer: req.ExtractedAnswer,
			Score:           req.MaxPoints / 2,
			Correctness:     models.CorrectnessPartial,
			Confidence:      0.55 + overlap/4,
			Explanation:     fmt.Sprintf("Partial overlap with expected answer (%.0f%%).", overlap*100),
		}, nil
	}

	return &Result{
		ExtractedAnswer: req.ExtractedAnswer,
		Score:           0,
		Correctness:     models.CorrectnessIncorrect,
		Confidence:      0.75,
		Explanation:     "Answer does not match expected criteria.",
	}, nil
}

func wordOverlap(a, b string) float64 {
	aWords := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		aWords[w] = true
	}
	bWords := make(map[string]bool)
	for _, w := range strings.Fields(b) {
		bWords[w] = true
	}
	if len(aWords) == 0 || len(bWords) == 0 {
		return 0
	}
	intersection := 0
	for w := range aWords {
		if bWords[w] {
			intersection++
		}
	}
	union := len(aWords) + len(bWords) - intersection
	return float64(intersection) / float64(union)
}
