// Package contextmgr provides token estimation and conversation pruning so a
// long-running execution stays within the model's context window.
package contextmgr

import (
	"strings"
	"unicode/utf8"

	"github.com/haasonsaas/sage/pkg/models"
)

const (
	// charsPerToken is a rough estimate for natural-language text.
	charsPerToken = 4.0

	// codeCharsPerToken is the denser estimate for code-like content, which
	// tokenizes into more tokens per character.
	codeCharsPerToken = 3.0

	// messageOverheadTokens accounts for role markers and formatting.
	messageOverheadTokens = 4

	// toolCallOverheadTokens accounts for tool-call serialization framing.
	toolCallOverheadTokens = 8
)

// Estimator estimates the token cost of messages using a character-based
// heuristic adjusted for code-like content.
type Estimator struct{}

// NewEstimator creates a token estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// EstimateText estimates tokens for a text fragment.
func (e *Estimator) EstimateText(text string) int {
	charCount := utf8.RuneCountInString(text)
	if charCount == 0 {
		return 0
	}

	ratio := charsPerToken
	if looksLikeCode(text) {
		ratio = codeCharsPerToken
	}

	tokens := int(float64(charCount) / ratio)
	if tokens == 0 {
		return 1
	}
	return tokens
}

// EstimateMessage estimates tokens for a message including role and tool-call
// overhead.
func (e *Estimator) EstimateMessage(msg models.Message) int {
	tokens := messageOverheadTokens
	tokens += e.EstimateText(msg.Content)

	for _, call := range msg.ToolCalls {
		tokens += toolCallOverheadTokens
		tokens += e.EstimateText(call.Name)
		tokens += e.EstimateText(string(call.ArgumentsJSON()))
	}

	return tokens
}

// EstimateMessages estimates tokens for a full conversation.
func (e *Estimator) EstimateMessages(messages []models.Message) int {
	total := 0
	for _, msg := range messages {
		total += e.EstimateMessage(msg)
	}
	return total
}

// looksLikeCode applies cheap structural signals: braces, semicolons, heavy
// indentation, and line density.
func looksLikeCode(text string) bool {
	if len(text) < 40 {
		return false
	}

	braces := strings.Count(text, "{") + strings.Count(text, "}")
	semis := strings.Count(text, ";")
	lines := strings.Count(text, "\n") + 1
	indented := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			indented++
		}
	}

	if braces >= 4 || semis >= 4 {
		return true
	}
	if lines >= 5 && indented*2 >= lines {
		return true
	}
	return false
}
