// In file: internal/tools/types.go

// Package tools defines the callable capabilities exposed to the inference
// engine: the provider-agnostic schema types used to describe a tool, the
// executor contract, and the registry that validates and dispatches the
// engine's tool-invocation requests.
package tools

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Tool is the schema describing one callable capability to the model.
type Tool struct {
	// Type is almost always "function".
	Type string `json:"type"`
	// Function holds the detailed definition of the function.
	Function Function `json:"function"`
}

// Function carries the name, description and parameter schema of a tool.
// The description is what the model reads to decide when to call the tool,
// so it matters as much as the code behind it.
type Function struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// JSONSchema is a typed representation of the JSON Schema subset used for
// tool parameters. Keeping it a struct instead of map[string]interface{}
// catches schema mistakes at compile time and lets the registry validate
// arguments before execution.
type JSONSchema struct {
	// Type is the data type of a schema node ("object", "string", "number",
	// "integer", "boolean"). The top-level parameters node is always "object".
	Type string `json:"type"`
	// Description explains what a specific parameter is for.
	Description string `json:"description,omitempty"`
	// Properties maps parameter names to their schemas.
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	// Required lists the parameter names that must be present.
	Required []string `json:"required,omitempty"`
}

// ToolCall is a request from the model to execute one tool.
type ToolCall struct {
	// ID ties the execution result back to this request when the
	// conversation is resubmitted to the model.
	ID string `json:"id"`
	// Type is almost always "function".
	Type string `json:"type"`
	// Function names the tool and carries its arguments.
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and raw JSON arguments of a requested call.
type ToolCallFunction struct {
	Name string `json:"name"`
	// Arguments is a JSON object encoded as a string, produced by the model.
	// It is validated against the tool's parameter schema before execution.
	Arguments string `json:"arguments"`
}

// NewFunctionTool builds a Tool with the correct "function" type.
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
