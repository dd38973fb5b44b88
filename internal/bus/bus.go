// Package bus provides a broadcast channel for agent lifecycle events.
//
// Publishing never blocks: a subscriber that falls behind loses events, and
// the drop is counted rather than stalling the step loop.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/sage/pkg/models"
)

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 256

// Bus broadcasts agent events to any number of subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan models.AgentEvent
	nextID      int
	bufferSize  int
	sequence    atomic.Uint64
	dropped     atomic.Uint64
	logger      *slog.Logger
	closed      bool
}

// New creates a bus with the given per-subscriber buffer size. Zero or
// negative uses DefaultBufferSize.
func New(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[int]chan models.AgentEvent),
		bufferSize:  bufferSize,
		logger:      logger.With("component", "bus"),
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan models.AgentEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan models.AgentEvent)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan models.AgentEvent, b.bufferSize)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish stamps the event with a timestamp and sequence number and fans it
// out. Slow subscribers drop the event.
func (b *Bus) Publish(event models.AgentEvent) {
	event.Version = 1
	event.Time = time.Now()
	event.Sequence = b.sequence.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many events were dropped on full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close publishes a Shutdown event and closes every subscriber channel.
func (b *Bus) Close() {
	b.Publish(models.AgentEvent{Type: models.EventShutdown})

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	b.logger.Debug("bus closed", "dropped", b.dropped.Load())
}

// Convenience emitters used by the loop.

// AgentStarted publishes an agent start event.
func (b *Bus) AgentStarted(agentID, task string) {
	b.Publish(models.AgentEvent{
		Type:  models.EventAgentStarted,
		Agent: &models.AgentEventPayload{AgentID: agentID, Task: task},
	})
}

// AgentStateChanged publishes a state transition event.
func (b *Bus) AgentStateChanged(from, to string) {
	b.Publish(models.AgentEvent{
		Type:  models.EventAgentStateChanged,
		Agent: &models.AgentEventPayload{FromState: from, ToState: to},
	})
}

// AgentIterationStart publishes the beginning of a loop iteration.
func (b *Bus) AgentIterationStart(iteration int) {
	b.Publish(models.AgentEvent{
		Type:  models.EventAgentIterationStart,
		Agent: &models.AgentEventPayload{Iteration: iteration},
	})
}

// AgentCompleted publishes the terminal agent event.
func (b *Bus) AgentCompleted(success bool) {
	b.Publish(models.AgentEvent{
		Type:  models.EventAgentCompleted,
		Agent: &models.AgentEventPayload{Success: success},
	})
}

// ToolCallStart publishes the start of a tool call.
func (b *Bus) ToolCallStart(callID, name string) {
	b.Publish(models.AgentEvent{
		Type: models.EventToolCallStart,
		Tool: &models.ToolEventPayload{CallID: callID, Name: name},
	})
}

// ToolCallComplete publishes the completion of a tool call.
func (b *Bus) ToolCallComplete(callID string, success bool, result, errMsg string) {
	b.Publish(models.AgentEvent{
		Type: models.EventToolCallComplete,
		Tool: &models.ToolEventPayload{CallID: callID, Success: success, Result: result, Error: errMsg},
	})
}

// Error publishes an error event.
func (b *Bus) Error(source, message string, recoverable bool) {
	b.Publish(models.AgentEvent{
		Type:    models.EventError,
		Problem: &models.ProblemEventPayload{Source: source, Message: message, Recoverable: recoverable},
	})
}

// Heartbeat publishes a liveness event.
func (b *Bus) Heartbeat() {
	b.Publish(models.AgentEvent{Type: models.EventHeartbeat})
}

// Warning publishes a warning event.
func (b *Bus) Warning(source, message string) {
	b.Publish(models.AgentEvent{
		Type:    models.EventWarning,
		Problem: &models.ProblemEventPayload{Source: source, Message: message},
	})
}
