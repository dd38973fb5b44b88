// Package metrics registers Prometheus instruments for the execution engine.
// Collection and exposition are external; the engine only records.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepsTotal counts loop steps executed.
	StepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "agent",
		Name:      "steps_total",
		Help:      "Total agent loop steps executed.",
	})

	// ExecutionsTotal counts executions by outcome variant.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "agent",
		Name:      "executions_total",
		Help:      "Total task executions by outcome.",
	}, []string{"outcome"})

	// ToolExecutionsTotal counts tool calls by tool name and success.
	ToolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "tools",
		Name:      "executions_total",
		Help:      "Total tool executions by tool and result.",
	}, []string{"tool", "result"})

	// ToolDurationSeconds observes tool execution latency.
	ToolDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sage",
		Subsystem: "tools",
		Name:      "duration_seconds",
		Help:      "Tool execution duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	// LLMRetriesTotal counts retried LLM calls.
	LLMRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "llm",
		Name:      "retries_total",
		Help:      "Total LLM call retries.",
	})

	// RateLimitWaitSeconds observes time spent waiting on the provider rate
	// limiter.
	RateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sage",
		Subsystem: "llm",
		Name:      "rate_limit_wait_seconds",
		Help:      "Time spent acquiring rate limiter tokens.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// RecordToolResult records a tool execution's outcome and latency.
func RecordToolResult(tool string, success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	ToolExecutionsTotal.WithLabelValues(tool, result).Inc()
	ToolDurationSeconds.WithLabelValues(tool).Observe(durationSeconds)
}
