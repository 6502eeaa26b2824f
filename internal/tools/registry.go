// In file: internal/tools/registry.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTool is returned when the model requests a tool that was never
// registered. Unlike a failing lookup, this is a protocol violation by the
// inference engine and aborts the conversation.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds the set of tools exposed to the model. It is populated once
// at startup and read-only afterwards, so concurrent requests can share it
// without locking.
type Registry struct {
	tools map[string]ToolExecutor
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolExecutor),
	}
}

// Register adds a tool under its declared function name.
func (r *Registry) Register(tool ToolExecutor) {
	name := tool.Definition().Function.Name
	r.tools[name] = tool
}

// Definitions returns the registered tool schemas, sorted by name so the
// model sees a stable ordering on every round.
func (r *Registry) Definitions() []Tool {
	defs := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Function.Name < defs[j].Function.Name
	})
	return defs
}

// Execute validates the arguments against the named tool's schema and, only
// if they pass, runs the bound executor.
//
// A validation failure does not reach the executor and is not an error
// either: it is reported as the tool result so the model can retry with
// corrected arguments on the next round.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if err := tool.Definition().Function.Parameters.Validate(arguments); err != nil {
		return fmt.Sprintf("Invalid arguments for %s: %v. Call the tool again with corrected arguments.", name, err), nil
	}
	return tool.Execute(ctx, arguments)
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.tools)
}
