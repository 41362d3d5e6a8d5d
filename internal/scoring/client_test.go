package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/academia/grading-backend/internal/models"
)

func testHTTPClient(url string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(url, "/"),
		modelID: "test-model",
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func TestHTTPClientScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("path = %s, want /predict", r.URL.Path)
		}

		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ModelID != "test-model" {
			t.Errorf("model_id = %q, want test-model", req.ModelID)
		}
		if req.Text != "the mitochondria" {
			t.Errorf("text = %q", req.Text)
		}
		if req.OCRData["confidence"] != 0.88 {
			t.Errorf("ocr confidence = %v, want 0.88", req.OCRData["confidence"])
		}

		json.NewEncoder(w).Encode(predictResponse{
			RegionID:             req.RegionID,
			PredictedCorrectness: "PARTIAL",
			Confidence:           0.72,
			AssignedScore:        2.5,
			Explanation:          "Names the organelle but not its function.",
		})
	}))
	defer server.Close()

	result, err := testHTTPClient(server.URL).Score(context.Background(), Request{
		RegionID:        "q7",
		QuestionText:    "What produces ATP?",
		QuestionType:    models.QuestionShortAnswer,
		ExpectedAnswer:  "the mitochondria produces ATP",
		ExtractedAnswer: "the mitochondria",
		OCRConfidence:   0.88,
		MaxPoints:       5,
	})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	if result.Score != 2.5 {
		t.Errorf("score = %v, want 2.5", result.Score)
	}
	if result.Correctness != models.CorrectnessPartial {
		t.Errorf("correctness = %s, want PARTIAL", result.Correctness)
	}
	if result.Confidence != 0.72 {
		t.Errorf("confidence = %v, want 0.72", result.Confidence)
	}
}

func TestHTTPClientRetriesThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "transient", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(predictResponse{
			PredictedCorrectness: "CORRECT",
			Confidence:           0.95,
			AssignedScore:        5,
		})
	}))
	defer server.Close()

	result, err := testHTTPClient(server.URL).Score(context.Background(), Request{MaxPoints: 5})
	if err != nil {
		t.Fatalf("Score should succeed on retry, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
	if result.Correctness != models.CorrectnessCorrect {
		t.Errorf("correctness = %s, want CORRECT", result.Correctness)
	}
}

func TestHTTPClientGivesUpAfterRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testHTTPClient(server.URL).Score(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error when oracle keeps failing")
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}

func TestHTTPClientRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		resp predictResponse
	}{
		{"unknown correctness", predictResponse{PredictedCorrectness: "MAYBE", Confidence: 0.5}},
		{"confidence above one", predictResponse{PredictedCorrectness: "CORRECT", Confidence: 1.5}},
		{"negative confidence", predictResponse{PredictedCorrectness: "CORRECT", Confidence: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.resp)
			}))
			defer server.Close()

			if _, err := testHTTPClient(server.URL).Score(context.Background(), Request{}); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMockClientExactMatch(t *testing.T) {
	result, err := NewMockClient().Score(context.Background(), Request{
		ExpectedAnswer:  "Photosynthesis",
		ExtractedAnswer: "photosynthesis",
		MaxPoints:       5,
	})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Correctness != models.CorrectnessCorrect {
		t.Errorf("correctness = %s, want CORRECT", result.Correctness)
	}
	if result.Score != 5 {
		t.Errorf("score = %v, want full marks", result.Score)
	}
}

func TestMockClientEmptyAnswer(t *testing.T) {
	result, err := NewMockClient().Score(context.Background(), Request{
		ExpectedAnswer:  "something",
		ExtractedAnswer: "   ",
		MaxPoints:       5,
	})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Correctness != models.CorrectnessSkipped {
		t.Errorf("correctness = %s, want SKIPPED", result.Correctness)
	}
	if result.Score != 0 {
		t.Errorf("score = %v, want 0", result.Score)
	}
}

func TestMockClientNoOverlap(t *testing.T) {
	result, err := NewMockClient().Score(context.Background(), Request{
		ExpectedAnswer:  "mitochondria powerhouse cell",
		ExtractedAnswer: "completely unrelated words",
		MaxPoints:       4,
	})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Correctness != models.CorrectnessIncorrect {
		t.Errorf("correctness = %s, want INCORRECT", result.Correctness)
	}
	if result.Score != 0 {
		t.Errorf("score = %v, want 0", result.Score)
	}
}

func TestMockClientDeterministic(t *testing.T) {
	req := Request{ExpectedAnswer: "water cycle evaporation", ExtractedAnswer: "evaporation of water", MaxPoints: 6}
	first, err := NewMockClient().Score(context.Background(), req)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	second, err := NewMockClient().Score(context.Background(), req)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if *first != *second {
		t.Errorf("mock scoring not deterministic: %+v vs %+v", first, second)
	}
}

func TestWordOverlap(t *testing.T) {
	if got := wordOverlap("a b c", "a b c"); got != 1 {
		t.Errorf("identical overlap = %v, want 1", got)
	}
	if got := wordOverlap("a b", "c d"); got != 0 {
		t.Errorf("disjoint overlap = %v, want 0", got)
	}
	if got := wordOverlap("", "a"); got != 0 {
		t.Errorf("empty overlap = %v, want 0", got)
	}
}
