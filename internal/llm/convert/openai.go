// Package convert shapes the canonical conversation and tool schemas into
// provider-specific request types.
package convert

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/pkg/models"
)

// ToOpenAIMessages converts canonical messages to OpenAI chat messages.
// Assistant tool calls become function tool_calls with stringified argument
// JSON; tool-role messages carry the originating tool_call_id.
func ToOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		out := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(call.ArgumentsJSON()),
				},
			})
		}

		if msg.Role == models.RoleTool {
			out.ToolCallID = msg.ToolCallID
			out.Name = msg.ToolName
		}

		result = append(result, out)
	}

	return result
}

// ToOpenAITools converts tool schemas to OpenAI function definitions.
func ToOpenAITools(tools []llm.ToolSchema) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Parameters, &schemaMap); err != nil {
			schemaMap = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}

		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaMap,
			},
		}
	}
	return result
}
