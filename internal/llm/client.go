// In file: internal/llm/client.go

// Package llm contains the inference-engine boundary of the backend: the
// conversation message types, the universal client interface, the concrete
// provider clients (Cloudflare Workers AI, Google Gemini) and the model
// telemetry profiler.
package llm

import (
	"context"

	"github.com/meteo-chat/backend/internal/api"
	"github.com/meteo-chat/backend/internal/tools"
)

// Role identifies the originator of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a conversation history. Tool results carry
// the ToolCallID of the invocation they answer; assistant messages that
// requested tools carry the ToolCalls themselves, so the engine sees a
// causally consistent history on resubmission.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []*tools.ToolCall `json:"tool_calls,omitempty"`
}

// GenerationConfig controls a single generation call.
type GenerationConfig struct {
	// Model is the provider-specific model identifier
	// (e.g. "@cf/meta/llama-3-8b-instruct" or "gemini-1.5-flash").
	Model string
	// Temperature controls randomness. A pointer distinguishes an explicit
	// 0.0 from "use the provider default".
	Temperature *float32
	// MaxTokens caps the response length; 0 means provider default.
	MaxTokens int
}

// GenerationResult is the complete output of a blocking generation call.
type GenerationResult struct {
	// Content is the generated text, empty when the model chose to call
	// tools instead of answering.
	Content string
	// ToolCalls are the tool invocations the model requested, in request
	// order. Models may request several in one turn.
	ToolCalls []*tools.ToolCall
	// Usage holds token statistics for this call.
	Usage api.Usage
}

// StreamingResult is one chunk of a streamed response.
type StreamingResult struct {
	// ContentDelta is the text produced in this chunk.
	ContentDelta string
	// ToolCallChunk carries a (possibly partial) tool invocation. Providers
	// stream the arguments progressively; chunks without an ID continue the
	// previous call.
	ToolCallChunk *tools.ToolCall
	// Usage arrives once, typically as the last chunk of the stream.
	Usage *api.Usage
	// Err terminates the stream when the provider or transport fails.
	Err error
}

// LLMClient is the opaque capability interface every inference backend must
// satisfy: given a conversation and a tool schema it either answers directly
// or requests tool invocations. Any provider implementing it is
// substitutable in the orchestrator.
type LLMClient interface {
	// Generate performs a blocking call and returns the complete result.
	Generate(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (*GenerationResult, error)

	// GenerateStream performs a streaming call. The returned channel yields
	// chunks as the model produces them and is closed when the stream ends.
	GenerateStream(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (<-chan *StreamingResult, error)
}
