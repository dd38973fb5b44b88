// Package providers implements the llm.Client contract for Anthropic,
// OpenAI, and Google backends.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/internal/llm/convert"
	"github.com/haasonsaas/sage/pkg/models"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicConfig configures the Anthropic client.
type AnthropicConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the default model id.
	Model string

	// MaxTokens bounds each response. Default 4096.
	MaxTokens int
}

// AnthropicClient implements llm.Client over the Anthropic SDK.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicClient creates an Anthropic-backed client.
func NewAnthropicClient(config AnthropicConfig) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.Model == "" {
		config.Model = defaultAnthropicModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(options...),
		model:     config.Model,
		maxTokens: config.MaxTokens,
	}, nil
}

// Provider implements llm.Client.
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Chat implements llm.Client.
func (c *AnthropicClient) Chat(ctx context.Context, messages []models.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	params, err := convert.ToAnthropicParams(c.model, c.maxTokens, messages, tools)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	response := &llm.Response{
		FinishReason: string(message.StopReason),
		Usage: &models.TokenUsage{
			PromptTokens:             int(message.Usage.InputTokens),
			CompletionTokens:         int(message.Usage.OutputTokens),
			TotalTokens:              int(message.Usage.InputTokens + message.Usage.OutputTokens),
			CacheCreationInputTokens: int(message.Usage.CacheCreationInputTokens),
			CacheReadInputTokens:     int(message.Usage.CacheReadInputTokens),
		},
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				args = map[string]any{}
			}
			response.ToolCalls = append(response.ToolCalls, models.ToolCall{
				ID:        toolUse.ID,
				Name:      toolUse.Name,
				Arguments: args,
			})
		}
	}
	response.Content = text.String()

	return response, nil
}
