package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/internal/llm/convert"
	"github.com/haasonsaas/sage/pkg/models"
)

const defaultGoogleModel = "gemini-2.0-flash"

// GoogleConfig configures the Gemini client.
type GoogleConfig struct {
	// APIKey is required.
	APIKey string

	// Model is the default model id.
	Model string
}

// GoogleClient implements llm.Client over the Gemini SDK.
type GoogleClient struct {
	client *genai.Client
	model  string
}

// NewGoogleClient creates a Gemini-backed client.
func NewGoogleClient(ctx context.Context, config GoogleConfig) (*GoogleClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if config.Model == "" {
		config.Model = defaultGoogleModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	return &GoogleClient{client: client, model: config.Model}, nil
}

// Provider implements llm.Client.
func (c *GoogleClient) Provider() string { return "google" }

// Chat implements llm.Client.
func (c *GoogleClient) Chat(ctx context.Context, messages []models.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	contents := convert.ToGeminiContents(messages)
	config := &genai.GenerateContentConfig{
		Tools: convert.ToGeminiTools(tools),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("google: empty candidates in response")
	}

	candidate := resp.Candidates[0]
	response := &llm.Response{
		FinishReason: string(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		response.Usage = &models.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			response.Content += part.Text
		}
		if part.FunctionCall != nil {
			callID := part.FunctionCall.ID
			if callID == "" {
				callID = "call_" + uuid.NewString()
			}
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			response.ToolCalls = append(response.ToolCalls, models.ToolCall{
				ID:        callID,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}

	return response, nil
}
