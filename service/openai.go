package service

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

// OpenAIReviewer is the primary review backend
type OpenAIReviewer struct {
	client *openai.Client
	model  string
}

func NewOpenAIReviewer(apiKey, modelName string) *OpenAIReviewer {
	return &OpenAIReviewer{
		client: openai.NewClient(apiKey),
		model:  modelName,
	}
}

func (o *OpenAIReviewer) Name() string { return "openai" }

func (o *OpenAIReviewer) Review(ctx context.Context, language, code string) (*model.Feedback, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: reviewPrompt(language, code)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("no choices in response")}
	}

	var feedback model.Feedback
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &feedback); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("parsing feedback: %w", err)}
	}
	return &feedback, nil
}
