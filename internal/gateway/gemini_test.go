package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(serverURL string) *GeminiClient {
	return NewGeminiClientWithConfig(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Timeout: 5 * time.Second,
	})
}

func TestGenerateContentSuccess(t *testing.T) {
	var gotBody geminiRequest
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{Text: "  hello "}, {Text: "world  "}}},
			}},
			UsageMetadata: geminiUsage{PromptTokenCount: 12, CandidatesTokenCount: 4, CachedContentTokenCount: 2},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	outcome, err := c.GenerateContent(context.Background(), &CallRequest{
		Contents:          "say hi",
		Model:             SpeedFlash,
		SystemInstruction: "be brief",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Text != "hello world" {
		t.Fatalf("expected joined trimmed parts, got %q", outcome.Text)
	}
	if outcome.Usage.InputTokens != 12 || outcome.Usage.OutputTokens != 4 || outcome.Usage.CachedTokens != 2 {
		t.Fatalf("unexpected usage: %+v", outcome.Usage)
	}
	if !strings.Contains(gotPath, "models/"+SpeedFlash) {
		t.Fatalf("request went to the wrong model path: %s", gotPath)
	}
	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction not sent: %+v", gotBody.SystemInstruction)
	}
	if gotBody.GenerationConfig.ThinkingConfig != nil {
		t.Fatal("thinking config must not be sent unless requested")
	}
}

func TestGenerateContentSendsThinkingConfig(t *testing.T) {
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: "x"}}}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GenerateContent(context.Background(), &CallRequest{
		Contents: "think",
		Thinking: &ThinkingConfig{IncludeThoughts: true, Level: "high"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tc := gotBody.GenerationConfig.ThinkingConfig
	if tc == nil || !tc.IncludeThoughts || tc.ThinkingLevel != "high" {
		t.Fatalf("thinking config not serialized: %+v", tc)
	}
}

func TestGenerateContentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "overloaded")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GenerateContent(context.Background(), &CallRequest{Contents: "hi"})
	if err == nil {
		t.Fatal("expected an error")
	}

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a ProviderError, got %T", err)
	}
	if pe.StatusCode != 503 || !strings.Contains(pe.Message, "overloaded") {
		t.Fatalf("unexpected provider error: %+v", pe)
	}
}

func TestGenerateContentAPIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{
			Error: &geminiAPIError{Code: 429, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GenerateContent(context.Background(), &CallRequest{Contents: "hi"})

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a ProviderError, got %v", err)
	}
	if pe.StatusCode != 429 {
		t.Fatalf("expected 429, got %d", pe.StatusCode)
	}
}

func TestGenerateContentEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{
			UsageMetadata: geminiUsage{PromptTokenCount: 5},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	outcome, err := c.GenerateContent(context.Background(), &CallRequest{Contents: "hi"})
	if err != nil {
		t.Fatalf("empty candidates must not be an error: %v", err)
	}
	if outcome.Text != "" {
		t.Fatalf("expected empty text, got %q", outcome.Text)
	}
	if outcome.Usage.InputTokens != 5 {
		t.Fatalf("usage must still be reported: %+v", outcome.Usage)
	}
}

func TestGenerateContentRequiresAPIKey(t *testing.T) {
	c := NewGeminiClientWithConfig(GeminiConfig{Timeout: time.Second})
	if _, err := c.GenerateContent(context.Background(), &CallRequest{Contents: "hi"}); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

func TestGenerateContentDefaultsModel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: "x"}}}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.GenerateContent(context.Background(), &CallRequest{Contents: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotPath, "models/"+DefaultModel) {
		t.Fatalf("expected the default model in the path: %s", gotPath)
	}
}
