package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/internal/llm/convert"
	"github.com/haasonsaas/sage/pkg/models"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIConfig configures the OpenAI client.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string

	// Model is the default model id.
	Model string

	// MaxTokens bounds each response. Zero leaves the provider default.
	MaxTokens int
}

// OpenAIClient implements llm.Client over the go-openai SDK.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIClient creates an OpenAI-backed client.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.Model == "" {
		config.Model = defaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     config.Model,
		maxTokens: config.MaxTokens,
	}, nil
}

// Provider implements llm.Client.
func (c *OpenAIClient) Provider() string { return "openai" }

// Chat implements llm.Client.
func (c *OpenAIClient) Chat(ctx context.Context, messages []models.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  convert.ToOpenAIMessages(messages),
		Tools:     convert.ToOpenAITools(tools),
		MaxTokens: c.maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	response := &llm.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: &models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, call := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			args = map[string]any{}
		}
		response.ToolCalls = append(response.ToolCalls, models.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	return response, nil
}
