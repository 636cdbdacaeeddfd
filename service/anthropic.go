package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicReviewer is the fallback review backend, speaking the messages
// API directly.
type AnthropicReviewer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewAnthropicReviewer(apiKey, modelName string) *AnthropicReviewer {
	return &AnthropicReviewer{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: anthropicAPIURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (a *AnthropicReviewer) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicReviewer) Review(ctx context.Context, language, code string) (*model.Feedback, error) {
	reqBody := anthropicRequest{
		Model:     a.model,
		MaxTokens: 4096,
		Messages: []anthropicMessage{
			{Role: "user", Content: reviewPrompt(language, code)},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("parsing response: %w", err)}
	}

	var content strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	var feedback model.Feedback
	if err := json.Unmarshal([]byte(extractJSON(content.String())), &feedback); err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("parsing feedback: %w", err)}
	}
	return &feedback, nil
}

// extractJSON strips any prose around the first top-level JSON object.
// Anthropic has no JSON response mode, so the model occasionally wraps the
// object in explanation or a code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
