package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/pkg/models"
)

// maxCachedMessages bounds how many trailing messages receive ephemeral
// cache_control. Anthropic allows four cache breakpoints per request; one is
// reserved for the system prompt and one for the tool definitions.
const maxCachedMessages = 2

// ToAnthropicParams converts the canonical conversation into Anthropic
// message params. System messages are extracted into params.System, tool-role
// messages become user messages holding a tool_result block, and assistant
// tool calls become tool_use blocks.
func ToAnthropicParams(model string, maxTokens int, messages []models.Message, tools []llm.ToolSchema) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}

	var systemParts []string
	var converted []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}

		case models.RoleTool:
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))

		case models.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input map[string]any
				if err := json.Unmarshal(call.ArgumentsJSON(), &input); err != nil {
					return anthropic.MessageNewParams{}, fmt.Errorf("invalid tool call input for %s: %w", call.Name, err)
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(content) == 0 {
				content = append(content, anthropic.NewTextBlock(" "))
			}
			converted = append(converted, anthropic.NewAssistantMessage(content...))

		default:
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	if len(systemParts) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(systemParts, "\n\n")},
		}
	}

	applyCacheControl(converted)
	params.Messages = converted

	if len(tools) > 0 {
		anthropicTools, err := ToAnthropicTools(tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = anthropicTools
	}

	return params, nil
}

// applyCacheControl marks the last two messages carrying non-empty text with
// ephemeral cache_control so the prompt prefix stays cacheable.
func applyCacheControl(messages []anthropic.MessageParam) {
	marked := 0
	for i := len(messages) - 1; i >= 0 && marked < maxCachedMessages; i-- {
		for j := len(messages[i].Content) - 1; j >= 0; j-- {
			block := &messages[i].Content[j]
			if block.OfText != nil && strings.TrimSpace(block.OfText.Text) != "" {
				block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
				marked++
				break
			}
		}
	}
}

// ToAnthropicTools converts tool schemas to Anthropic tool definitions.
func ToAnthropicTools(tools []llm.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}
