package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"muse/internal/logging"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           DefaultModel,
		Timeout:         10 * time.Minute, // Large context models need extended timeout
		MaxOutputTokens: 65536,
	}
}

// GeminiClient implements LanguageClient against the Google Gemini API.
// It performs exactly one HTTP round trip per GenerateContent call; retry
// policy lives in the Gateway.
type GeminiClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a Gemini client with default config.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a Gemini client with custom config.
func NewGeminiClientWithConfig(config GeminiConfig) *GeminiClient {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = DefaultModel
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = 65536
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiClient{
		apiKey:          config.APIKey,
		baseURL:         baseURL,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Gemini wire format.

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64               `json:"temperature"`
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiThinkingConfig struct {
	IncludeThoughts bool   `json:"includeThoughts"`
	ThinkingLevel   string `json:"thinkingLevel,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
	Error         *geminiAPIError   `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateContent sends one generate-content request.
func (c *GeminiClient) GenerateContent(ctx context.Context, req *CallRequest) (*CallOutcome, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if c.apiKey == "" {
		logging.GatewayError("[Gemini] GenerateContent: API key not configured")
		return nil, fmt.Errorf("API key not configured")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	// Rate limiting: minimum spacing between outbound requests.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: req.Contents}},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     1.0,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if req.SystemInstruction != "" {
		reqBody.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}
	if req.Thinking != nil {
		reqBody.GenerationConfig.ThinkingConfig = &geminiThinkingConfig{
			IncludeThoughts: req.Thinking.IncludeThoughts,
			ThinkingLevel:   req.Thinking.Level,
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if geminiResp.Error != nil {
		return nil, &ProviderError{
			StatusCode: geminiResp.Error.Code,
			Message:    geminiResp.Error.Message,
		}
	}

	outcome := &CallOutcome{
		Usage: UsageMetadata{
			InputTokens:  geminiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
			CachedTokens: geminiResp.UsageMetadata.CachedContentTokenCount,
		},
	}

	// A response without text is an empty-string result, not an error;
	// callers check for empty output themselves.
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		logging.GatewayWarn("[Gemini] GenerateContent: no completion returned model=%s", model)
		return outcome, nil
	}

	var result strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}
	outcome.Text = strings.TrimSpace(result.String())

	return outcome, nil
}

// SetModel changes the default model used when a request names none.
func (c *GeminiClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current default model.
func (c *GeminiClient) GetModel() string {
	return c.model
}
