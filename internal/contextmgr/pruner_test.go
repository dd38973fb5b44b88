package contextmgr

import (
	"strings"
	"testing"

	"github.com/haasonsaas/sage/pkg/models"
)

func conversation(n int) []models.Message {
	msgs := []models.Message{models.SystemMessage("You are a test agent.")}
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.Message{
			Role:    role,
			Content: strings.Repeat("word ", 50),
		})
	}
	return msgs
}

func countRole(msgs []models.Message, role models.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

func TestEstimatorBasics(t *testing.T) {
	e := NewEstimator()

	if got := e.EstimateText(""); got != 0 {
		t.Errorf("empty text = %d tokens, want 0", got)
	}
	if got := e.EstimateText("hi"); got < 1 {
		t.Errorf("non-empty text = %d tokens, want >= 1", got)
	}

	prose := strings.Repeat("plain english words here ", 40)
	code := strings.Repeat("if x { y(); z(); }\n", 50)
	proseTokens := e.EstimateText(prose)
	codeTokens := e.EstimateText(code)
	if float64(codeTokens)/float64(len(code)) <= float64(proseTokens)/float64(len(prose)) {
		t.Error("code-like content must estimate denser than prose")
	}
}

func TestEstimatorMessageOverhead(t *testing.T) {
	e := NewEstimator()
	plain := e.EstimateText("hello")
	msg := e.EstimateMessage(models.UserMessage("hello"))
	if msg <= plain {
		t.Errorf("message estimate %d must exceed bare text %d", msg, plain)
	}
}

func TestPruneUnderTargetIsIdentity(t *testing.T) {
	pruner := NewPruner(DefaultConfig())
	msgs := conversation(4)

	result := pruner.Prune(msgs, 1_000_000)

	if len(result.Kept) != len(msgs) {
		t.Fatalf("kept = %d, want %d", len(result.Kept), len(msgs))
	}
	if len(result.Removed) != 0 {
		t.Fatalf("removed = %d, want 0", len(result.Removed))
	}
}

func TestPruneTruncateKeepsSystemAndTail(t *testing.T) {
	config := DefaultConfig()
	config.MinMessagesToKeep = 4
	pruner := NewPruner(config)

	msgs := conversation(40)
	result := pruner.Prune(msgs, 500)

	if countRole(result.Kept, models.RoleSystem) != 1 {
		t.Error("system message must survive truncation")
	}
	if len(result.Removed) == 0 {
		t.Fatal("expected removals over a tight target")
	}

	// Non-system kept messages must be the conversation tail, in order.
	var keptTail []models.Message
	for _, m := range result.Kept {
		if !m.IsSystem() {
			keptTail = append(keptTail, m)
		}
	}
	if len(keptTail) < config.MinMessagesToKeep {
		t.Errorf("kept tail = %d, want at least %d", len(keptTail), config.MinMessagesToKeep)
	}
	tailStart := len(msgs) - len(keptTail)
	for i, m := range keptTail {
		if msgs[tailStart+i].Content != m.Content || msgs[tailStart+i].Role != m.Role {
			t.Fatalf("kept tail not contiguous at %d", i)
		}
	}
}

func TestPruneTruncateIdempotent(t *testing.T) {
	pruner := NewPruner(DefaultConfig())
	msgs := conversation(40)

	first := pruner.Prune(msgs, 800)
	second := pruner.Prune(first.Kept, 800)

	if len(second.Removed) != 0 {
		t.Fatalf("second prune removed %d messages, want 0 (prune must be stable)", len(second.Removed))
	}
	if len(second.Kept) != len(first.Kept) {
		t.Fatalf("second prune kept %d, want %d", len(second.Kept), len(first.Kept))
	}
}

func TestPruneSlidingWindow(t *testing.T) {
	config := DefaultConfig()
	config.OverflowStrategy = StrategySlidingWindow
	config.SlidingWindowFirst = 2
	config.SlidingWindowLast = 3
	pruner := NewPruner(config)

	msgs := conversation(20)
	result := pruner.Prune(msgs, 100)

	nonSystem := len(result.Kept) - countRole(result.Kept, models.RoleSystem)
	if nonSystem != 5 {
		t.Errorf("kept non-system = %d, want first 2 + last 3 = 5", nonSystem)
	}
	if len(result.Removed) != 15 {
		t.Errorf("removed = %d, want 15", len(result.Removed))
	}
}

func TestPruneSummarizePreservesToolResults(t *testing.T) {
	config := DefaultConfig()
	config.OverflowStrategy = StrategySummarize
	config.MinMessagesToKeep = 2
	config.PreserveToolResults = true
	pruner := NewPruner(config)

	msgs := []models.Message{
		models.SystemMessage("system"),
		models.UserMessage(strings.Repeat("old ", 100)),
		models.ToolMessage("c1", "bash", "tool output"),
		models.UserMessage(strings.Repeat("mid ", 100)),
		models.UserMessage("recent one"),
		models.UserMessage("recent two"),
	}

	result := pruner.Prune(msgs, 10)

	if countRole(result.Kept, models.RoleTool) != 1 {
		t.Error("tool message must be preserved in place")
	}
	for _, m := range result.Removed {
		if m.Role == models.RoleTool {
			t.Error("tool message must not be in removed")
		}
	}
	if len(result.Removed) != 2 {
		t.Errorf("removed = %d, want the two old user messages", len(result.Removed))
	}
}

func TestPruneResultReportsKeptTokens(t *testing.T) {
	pruner := NewPruner(DefaultConfig())
	msgs := conversation(10)

	result := pruner.Prune(msgs, 200)
	if result.KeptTokens <= 0 {
		t.Error("kept tokens must be reported")
	}
}
