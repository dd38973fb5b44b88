package convert

import (
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/pkg/models"
)

// continuationStub closes a conversation that would otherwise end on a model
// turn. Gemini requires the final content to come from the user.
const continuationStub = "Continue."

// ToGeminiContents converts canonical messages to Gemini contents. System
// content is prepended to the first user turn, the assistant role is renamed
// "model", and tool-role messages become user turns carrying a function
// response part.
func ToGeminiContents(messages []models.Message) []*genai.Content {
	var systemParts []string
	var contents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}

		case models.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   call.ID,
						Name: call.Name,
						Args: args,
					},
				})
			}
			if len(parts) == 0 {
				parts = append(parts, &genai.Part{Text: " "})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})

		case models.RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					{
						FunctionResponse: &genai.FunctionResponse{
							ID:       msg.ToolCallID,
							Name:     msg.ToolName,
							Response: map[string]any{"output": msg.Content},
						},
					},
				},
			})

		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	// Fold system content into the first user turn.
	if len(systemParts) > 0 {
		system := strings.Join(systemParts, "\n\n")
		prepended := false
		for _, content := range contents {
			if content.Role == "user" && len(content.Parts) > 0 && content.Parts[0].Text != "" {
				content.Parts[0].Text = system + "\n\n" + content.Parts[0].Text
				prepended = true
				break
			}
		}
		if !prepended {
			contents = append([]*genai.Content{
				{Role: "user", Parts: []*genai.Part{{Text: system}}},
			}, contents...)
		}
	}

	// Conversations must end with a user turn.
	if len(contents) > 0 && contents[len(contents)-1].Role == "model" {
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: continuationStub}},
		})
	}

	return contents
}

// ToGeminiTools converts tool schemas to Gemini function declarations.
func ToGeminiTools(tools []llm.ToolSchema) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Parameters, &schemaMap); err != nil {
			continue
		}

		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toGeminiSchema(schemaMap),
		})
	}

	if len(declarations) == 0 {
		return nil
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toGeminiSchema converts a JSON Schema map to Gemini's Schema type.
func toGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}

	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = toGeminiSchema(items)
	}

	return schema
}
