package tools

import (
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/sage/internal/llm"
)

// Registry manages available tools with thread-safe registration and lookup.
// Tools are keyed by their case-sensitive name.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	compiled map[string]*jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the registry. An existing tool with the same name
// is replaced. The tool's parameter schema is compiled eagerly; a schema that
// does not compile is dropped without an error, and calls to that tool then
// skip argument validation.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name()] = tool
	delete(r.compiled, tool.Name())
	if schema, err := jsonschema.CompileString(tool.Name()+".json", string(tool.Schema())); err == nil {
		r.compiled[tool.Name()] = schema
	}
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.compiled, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// schemaOf returns the compiled parameter schema for a tool, if any.
func (r *Registry) schemaOf(name string) *jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compiled[name]
}

// List returns all registered tools sorted by name for deterministic schema
// ordering in requests.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Schemas returns the tool schemas advertised to LLM providers, filtered by
// the optional allow predicate.
func (r *Registry) Schemas(allow func(name string) bool) []llm.ToolSchema {
	var schemas []llm.ToolSchema
	for _, tool := range r.List() {
		if allow != nil && !allow(tool.Name()) {
			continue
		}
		schemas = append(schemas, SchemaFor(tool))
	}
	return schemas
}
