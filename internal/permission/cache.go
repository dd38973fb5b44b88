package permission

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/sage/pkg/models"
)

// Cache stores per-session "always allow" / "always deny" decisions keyed by
// a generalized fingerprint of the tool call.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]bool
}

// NewCache creates an empty session cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]bool)}
}

// CacheKey derives a deterministic, generalizable key for a tool call:
//
//	bash "npm install lodash"  -> Bash(npm *)
//	read "/src/main.go"        -> Read(src/**)
//	other                      -> Tool([arg keys])
func CacheKey(toolName string, call models.ToolCall) string {
	pattern := extractPattern(toolName, call)
	if pattern == "" {
		return toolName
	}
	return fmt.Sprintf("%s(%s)", canonicalToolName(toolName), pattern)
}

func canonicalToolName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func extractPattern(toolName string, call models.ToolCall) string {
	switch strings.ToLower(toolName) {
	case "bash":
		command := call.StringArg("command")
		if command == "" {
			return ""
		}
		parts := strings.Fields(command)
		if len(parts) > 1 {
			return parts[0] + " *"
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "*"

	case "read", "write", "edit", "multiedit":
		path := call.StringArg("file_path")
		if path == "" {
			path = call.StringArg("path")
		}
		if path == "" {
			return ""
		}
		path = strings.TrimPrefix(path, "/")
		if idx := strings.Index(path, "/"); idx > 0 {
			return path[:idx] + "/**"
		}
		if path != "" {
			return path + "/**"
		}
		return "**"

	default:
		if len(call.Arguments) == 0 {
			return ""
		}
		keys := make([]string, 0, len(call.Arguments))
		for k := range call.Arguments {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "[" + strings.Join(keys, ", ") + "]"
	}
}

// Get returns the cached decision for a key.
func (c *Cache) Get(key string) (allowed bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	allowed, ok = c.entries[key]
	return allowed, ok
}

// Set records a decision for a key.
func (c *Cache) Set(key string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = allowed
}

// Clear drops every cached decision.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]bool)
}

// Len returns the number of cached decisions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
