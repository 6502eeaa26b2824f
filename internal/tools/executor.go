// In file: internal/tools/executor.go
package tools

import "context"

// ToolExecutor is the contract every capability exposed to the model
// implements. The registry manages executors uniformly, so adding a tool
// means implementing this interface and registering it at startup.
type ToolExecutor interface {
	// Definition returns the tool's schema, provided to the model so it
	// understands the tool's name, purpose and arguments.
	Definition() Tool

	// Execute runs the tool with the JSON arguments the model produced,
	// already validated against the schema from Definition. The context
	// carries the request deadline, so an abandoned chat request also stops
	// the tool's outbound call. The returned string is fed back to the model
	// as the tool result.
	Execute(ctx context.Context, arguments string) (string, error)
}
