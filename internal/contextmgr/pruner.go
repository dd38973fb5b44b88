package contextmgr

import (
	"github.com/haasonsaas/sage/pkg/models"
)

// OverflowStrategy defines how to reduce the conversation when it exceeds the
// token target.
type OverflowStrategy string

const (
	// StrategyTruncate keeps system messages and as many recent messages as
	// fit, removing from the head.
	StrategyTruncate OverflowStrategy = "truncate"

	// StrategySlidingWindow keeps system messages plus the first N and last M
	// non-system messages.
	StrategySlidingWindow OverflowStrategy = "sliding_window"

	// StrategySummarize keeps system messages and the most recent messages;
	// everything else is reported as removed for external summarization.
	StrategySummarize OverflowStrategy = "summarize"

	// StrategyHybrid behaves like StrategySummarize; the caller decides
	// whether to summarize or drop the removed messages.
	StrategyHybrid OverflowStrategy = "hybrid"
)

// Config configures the pruner.
type Config struct {
	// OverflowStrategy selects the pruning behavior.
	OverflowStrategy OverflowStrategy `yaml:"overflow_strategy"`

	// MinMessagesToKeep is the floor of non-system messages retained by the
	// truncate and summarize strategies.
	MinMessagesToKeep int `yaml:"min_messages_to_keep"`

	// SlidingWindowFirst is the number of leading non-system messages kept by
	// the sliding-window strategy.
	SlidingWindowFirst int `yaml:"sliding_window_first"`

	// SlidingWindowLast is the number of trailing non-system messages kept by
	// the sliding-window strategy.
	SlidingWindowLast int `yaml:"sliding_window_last"`

	// PreserveToolResults keeps tool-role messages in place during
	// summarization pruning.
	PreserveToolResults bool `yaml:"preserve_tool_results"`
}

// DefaultConfig returns the default pruner configuration.
func DefaultConfig() Config {
	return Config{
		OverflowStrategy:    StrategyTruncate,
		MinMessagesToKeep:   6,
		SlidingWindowFirst:  2,
		SlidingWindowLast:   10,
		PreserveToolResults: true,
	}
}

func sanitizeConfig(config Config) Config {
	if config.OverflowStrategy == "" {
		config.OverflowStrategy = StrategyTruncate
	}
	if config.MinMessagesToKeep <= 0 {
		config.MinMessagesToKeep = DefaultConfig().MinMessagesToKeep
	}
	if config.SlidingWindowFirst < 0 {
		config.SlidingWindowFirst = 0
	}
	if config.SlidingWindowLast <= 0 {
		config.SlidingWindowLast = DefaultConfig().SlidingWindowLast
	}
	return config
}

// PruneResult holds the outcome of a pruning pass. The caller may hand
// Removed to a summarizer and re-insert the summary as a single system
// message.
type PruneResult struct {
	// Kept is the retained conversation in chronological order.
	Kept []models.Message

	// Removed is the messages dropped, in chronological order.
	Removed []models.Message

	// KeptTokens is the estimated token count of the kept messages.
	KeptTokens int
}

// Pruner reduces conversation history to fit within a token target while
// preserving system messages and recent context.
type Pruner struct {
	config    Config
	estimator *Estimator
}

// NewPruner creates a pruner with the given configuration.
func NewPruner(config Config) *Pruner {
	return &Pruner{
		config:    sanitizeConfig(config),
		estimator: NewEstimator(),
	}
}

// Prune reduces messages to fit within targetTokens according to the
// configured strategy. Pruning is stable: pruning an already-pruned result
// with the same target returns it unchanged.
func (p *Pruner) Prune(messages []models.Message, targetTokens int) PruneResult {
	if p.estimator.EstimateMessages(messages) <= targetTokens {
		return PruneResult{
			Kept:       append([]models.Message(nil), messages...),
			KeptTokens: p.estimator.EstimateMessages(messages),
		}
	}

	switch p.config.OverflowStrategy {
	case StrategySlidingWindow:
		return p.pruneSlidingWindow(messages)
	case StrategySummarize, StrategyHybrid:
		return p.pruneForSummarization(messages)
	default:
		return p.pruneTruncate(messages, targetTokens)
	}
}

// pruneTruncate keeps all system messages, then keeps as many trailing
// non-system messages as fit the target, never fewer than MinMessagesToKeep.
func (p *Pruner) pruneTruncate(messages []models.Message, targetTokens int) PruneResult {
	system, other := splitSystem(messages)

	kept := make([]models.Message, 0, len(messages))
	currentTokens := 0
	for _, msg := range system {
		currentTokens += p.estimator.EstimateMessage(msg)
		kept = append(kept, msg)
	}

	// Walk the non-system tail newest-first so recency wins. Once a message
	// does not fit, it and every older message are removed.
	var keptTail []models.Message
	var removed []models.Message
	full := false
	for i := len(other) - 1; i >= 0; i-- {
		msg := other[i]
		msgTokens := p.estimator.EstimateMessage(msg)
		if !full && (len(keptTail) < p.config.MinMessagesToKeep || currentTokens+msgTokens <= targetTokens) {
			currentTokens += msgTokens
			keptTail = append(keptTail, msg)
		} else {
			full = true
			removed = append(removed, msg)
		}
	}

	// Restore chronological order.
	reverse(keptTail)
	reverse(removed)
	kept = append(kept, keptTail...)

	return PruneResult{Kept: kept, Removed: removed, KeptTokens: currentTokens}
}

// pruneSlidingWindow keeps system messages plus the first N and last M
// non-system messages.
func (p *Pruner) pruneSlidingWindow(messages []models.Message) PruneResult {
	system, other := splitSystem(messages)
	firstN := p.config.SlidingWindowFirst
	lastM := p.config.SlidingWindowLast

	kept := make([]models.Message, 0, len(system)+firstN+lastM)
	kept = append(kept, system...)

	var removed []models.Message
	if len(other) <= firstN+lastM {
		kept = append(kept, other...)
	} else {
		kept = append(kept, other[:firstN]...)
		removed = append(removed, other[firstN:len(other)-lastM]...)
		kept = append(kept, other[len(other)-lastM:]...)
	}

	return PruneResult{
		Kept:       kept,
		Removed:    removed,
		KeptTokens: p.estimator.EstimateMessages(kept),
	}
}

// pruneForSummarization keeps system messages and the last MinMessagesToKeep
// non-system messages; older messages are reported as removed so the caller
// can summarize them. Tool-role messages survive in place when
// PreserveToolResults is set.
func (p *Pruner) pruneForSummarization(messages []models.Message) PruneResult {
	system, other := splitSystem(messages)
	minKeep := p.config.MinMessagesToKeep

	kept := make([]models.Message, 0, len(messages))
	kept = append(kept, system...)

	var removed []models.Message
	if len(other) <= minKeep {
		kept = append(kept, other...)
	} else {
		cutoff := len(other) - minKeep
		for _, msg := range other[:cutoff] {
			if p.config.PreserveToolResults && msg.Role == models.RoleTool {
				kept = append(kept, msg)
			} else {
				removed = append(removed, msg)
			}
		}
		kept = append(kept, other[cutoff:]...)
	}

	return PruneResult{
		Kept:       kept,
		Removed:    removed,
		KeptTokens: p.estimator.EstimateMessages(kept),
	}
}

func splitSystem(messages []models.Message) (system, other []models.Message) {
	for _, msg := range messages {
		if msg.IsSystem() {
			system = append(system, msg)
		} else {
			other = append(other, msg)
		}
	}
	return system, other
}

func reverse(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
