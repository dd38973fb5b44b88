package convert

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/pkg/models"
)

func sampleConversation() []models.Message {
	return []models.Message{
		models.SystemMessage("be helpful"),
		models.UserMessage("list the files"),
		models.AssistantMessage("listing now", []models.ToolCall{{
			ID:        "c1",
			Name:      "bash",
			Arguments: map[string]any{"command": "ls"},
		}}),
		models.ToolMessage("c1", "bash", "a.txt\nb.txt"),
		models.AssistantMessage("There are two files.", nil),
	}
}

func sampleTools() []llm.ToolSchema {
	return []llm.ToolSchema{{
		Name:        "bash",
		Description: "run a command",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"command": {"type": "string", "description": "shell command"}},
			"required": ["command"]
		}`),
	}}
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := ToOpenAIMessages(sampleConversation())

	if len(msgs) != 5 {
		t.Fatalf("messages = %d, want 5", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("role[0] = %s, want system", msgs[0].Role)
	}

	assistant := msgs[2]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].ID != "c1" || assistant.ToolCalls[0].Function.Name != "bash" {
		t.Errorf("tool call = %+v", assistant.ToolCalls[0])
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(assistant.ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["command"] != "ls" {
		t.Errorf("arguments = %v", args)
	}

	tool := msgs[3]
	if tool.Role != "tool" || tool.ToolCallID != "c1" {
		t.Errorf("tool message = %+v, want role tool with call id c1", tool)
	}
}

func TestToOpenAITools(t *testing.T) {
	converted := ToOpenAITools(sampleTools())
	if len(converted) != 1 {
		t.Fatalf("tools = %d, want 1", len(converted))
	}
	if converted[0].Function.Name != "bash" || converted[0].Function.Description != "run a command" {
		t.Errorf("tool = %+v", converted[0].Function)
	}
}

func TestToAnthropicParamsShapesSystemAndToolResults(t *testing.T) {
	params, err := ToAnthropicParams("claude-sonnet-4-20250514", 4096, sampleConversation(), sampleTools())
	if err != nil {
		t.Fatal(err)
	}

	if len(params.System) != 1 || params.System[0].Text != "be helpful" {
		t.Errorf("system = %+v, want the extracted system prompt", params.System)
	}

	// System messages are pulled out, so 4 conversation messages remain.
	if len(params.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(params.Messages))
	}

	// The tool-role message becomes a user message holding a tool_result.
	toolMsg := params.Messages[2]
	if string(toolMsg.Role) != "user" {
		t.Errorf("tool result role = %s, want user", toolMsg.Role)
	}
	if len(toolMsg.Content) != 1 || toolMsg.Content[0].OfToolResult == nil {
		t.Fatalf("tool result block missing: %+v", toolMsg.Content)
	}
	if toolMsg.Content[0].OfToolResult.ToolUseID != "c1" {
		t.Errorf("tool_use_id = %q, want c1", toolMsg.Content[0].OfToolResult.ToolUseID)
	}

	// The assistant tool call becomes a tool_use block.
	assistant := params.Messages[1]
	foundToolUse := false
	for _, block := range assistant.Content {
		if block.OfToolUse != nil && block.OfToolUse.Name == "bash" {
			foundToolUse = true
		}
	}
	if !foundToolUse {
		t.Error("assistant message must carry a tool_use block")
	}

	if len(params.Tools) != 1 {
		t.Errorf("tools = %d, want 1", len(params.Tools))
	}
}

func TestToAnthropicParamsCacheControlLimit(t *testing.T) {
	msgs := []models.Message{
		models.SystemMessage("sys"),
		models.UserMessage("one"),
		models.UserMessage("two"),
		models.UserMessage("three"),
		models.UserMessage("four"),
	}
	params, err := ToAnthropicParams("claude-sonnet-4-20250514", 1024, msgs, nil)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(params.Messages)
	if err != nil {
		t.Fatal(err)
	}
	if cached := strings.Count(string(data), "cache_control"); cached != 2 {
		t.Errorf("cache_control markers = %d, want exactly 2", cached)
	}
}

func TestToGeminiContentsFoldsSystemAndRenamesRoles(t *testing.T) {
	contents := ToGeminiContents(sampleConversation())

	// System content is folded into the first user turn.
	if contents[0].Role != "user" {
		t.Fatalf("first role = %s, want user", contents[0].Role)
	}
	if !strings.Contains(contents[0].Parts[0].Text, "be helpful") ||
		!strings.Contains(contents[0].Parts[0].Text, "list the files") {
		t.Errorf("first user turn = %q, want system + user content", contents[0].Parts[0].Text)
	}

	// Assistant becomes model.
	if contents[1].Role != "model" {
		t.Errorf("assistant role = %s, want model", contents[1].Role)
	}
	foundCall := false
	for _, part := range contents[1].Parts {
		if part.FunctionCall != nil && part.FunctionCall.Name == "bash" {
			foundCall = true
		}
	}
	if !foundCall {
		t.Error("model turn must carry the function call")
	}

	// Tool role becomes a user turn with a function response.
	if contents[2].Role != "user" || contents[2].Parts[0].FunctionResponse == nil {
		t.Errorf("tool turn = %+v, want user function response", contents[2])
	}
	if contents[2].Parts[0].FunctionResponse.Name != "bash" {
		t.Errorf("function response name = %q, want bash", contents[2].Parts[0].FunctionResponse.Name)
	}

	// The conversation ends on a model turn, so a user stub is appended.
	last := contents[len(contents)-1]
	if last.Role != "user" {
		t.Errorf("last role = %s, want user (continuation stub)", last.Role)
	}
}

func TestToGeminiTools(t *testing.T) {
	converted := ToGeminiTools(sampleTools())
	if len(converted) != 1 || len(converted[0].FunctionDeclarations) != 1 {
		t.Fatalf("tools = %+v, want one declaration", converted)
	}
	decl := converted[0].FunctionDeclarations[0]
	if decl.Name != "bash" {
		t.Errorf("name = %q, want bash", decl.Name)
	}
	if decl.Parameters == nil || decl.Parameters.Properties["command"] == nil {
		t.Errorf("parameters = %+v, want command property", decl.Parameters)
	}
	if len(decl.Parameters.Required) != 1 || decl.Parameters.Required[0] != "command" {
		t.Errorf("required = %v, want [command]", decl.Parameters.Required)
	}
}

func TestConvertersDoNotMutateCanonicalMessages(t *testing.T) {
	original := sampleConversation()
	snapshot := sampleConversation()

	ToOpenAIMessages(original)
	if _, err := ToAnthropicParams("m", 100, original, nil); err != nil {
		t.Fatal(err)
	}
	ToGeminiContents(original)

	for i := range original {
		if original[i].Role != snapshot[i].Role || original[i].Content != snapshot[i].Content {
			t.Fatalf("canonical message %d mutated", i)
		}
	}
}
