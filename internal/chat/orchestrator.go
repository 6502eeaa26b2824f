// In file: internal/chat/orchestrator.go

// Package chat implements the conversation orchestrator: the control loop
// that submits the conversation and tool schemas to the inference engine,
// executes the tools the engine requests, feeds their results back, and
// streams the final answer to the caller.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/meteo-chat/backend/internal/api"
	"github.com/meteo-chat/backend/internal/llm"
	"github.com/meteo-chat/backend/internal/tools"
)

// DefaultMaxToolRounds bounds the tool-resolution loop. A misbehaving model
// that keeps requesting tools terminates with ErrToolRoundsExceeded instead
// of looping forever.
const DefaultMaxToolRounds = 5

// ErrToolRoundsExceeded reports that the engine never produced a final
// textual answer within the configured number of rounds.
var ErrToolRoundsExceeded = errors.New("exceeded maximum number of tool rounds")

// Config carries the orchestration settings resolved at startup. It is
// passed in explicitly at construction; nothing here is ambient state.
type Config struct {
	// Model is the inference model identifier.
	Model string `yaml:"model"`
	// MaxToolRounds caps engine consultations per request; 0 means
	// DefaultMaxToolRounds.
	MaxToolRounds int `yaml:"max_tool_rounds"`
	// Persona is the first sentence of the system directive.
	Persona string `yaml:"persona"`
	// RefusalSentence is the exact sentence the model must use for
	// off-topic questions.
	RefusalSentence string `yaml:"refusal_sentence"`
	// ResponseLanguage names the language the model answers in.
	ResponseLanguage string `yaml:"response_language"`
	// MaxTokens caps each generation; 0 means provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// Outcome summarizes a completed (or aborted) conversation run.
type Outcome struct {
	// Usage is the token usage summed over all rounds.
	Usage api.Usage
	// Rounds is how many times the engine was consulted.
	Rounds int
}

// Orchestrator drives the tool-resolution loop for one request at a time.
// It holds no per-request state, so a single instance serves all requests.
type Orchestrator struct {
	client   llm.LLMClient
	registry *tools.Registry
	config   Config
	now      func() time.Time
}

func New(client llm.LLMClient, registry *tools.Registry, config Config) *Orchestrator {
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = DefaultMaxToolRounds
	}
	return &Orchestrator{
		client:   client,
		registry: registry,
		config:   config,
		now:      time.Now,
	}
}

// Stream runs the conversation until the engine produces a final textual
// answer, forwarding each content delta to emit as it arrives. The history
// must not contain a system message; the directive is synthesized here and
// placed first. An emit error (client gone) aborts the run.
func (o *Orchestrator) Stream(ctx context.Context, history []llm.Message, emit func(delta string) error) (*Outcome, error) {
	directive := BuildSystemDirective(o.config, o.now())
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: directive})
	messages = append(messages, history...)

	genConfig := &llm.GenerationConfig{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
	}

	outcome := &Outcome{}
	for round := 0; round < o.config.MaxToolRounds; round++ {
		outcome.Rounds++

		stream, err := o.client.GenerateStream(ctx, messages, genConfig, o.registry.Definitions())
		if err != nil {
			return outcome, fmt.Errorf("inference request failed: %w", err)
		}

		content, toolCalls, err := o.consumeStream(stream, emit, &outcome.Usage)
		if err != nil {
			return outcome, err
		}
		if len(toolCalls) == 0 {
			// Terminal state: the answer has already been streamed.
			return outcome, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})

		// Execute sequentially and append results in request order, so the
		// engine sees a causally consistent history on the next round.
		for _, call := range toolCalls {
			log.Printf("🛠️ Executing tool %s (ID: %s) with args: %s", call.Function.Name, call.ID, call.Function.Arguments)
			result, err := o.registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				if errors.Is(err, tools.ErrUnknownTool) {
					// Protocol violation by the engine; abort rather than
					// attempt undefined execution.
					return outcome, err
				}
				result = fmt.Sprintf("Error executing tool %s: %v", call.Function.Name, err)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
	return outcome, ErrToolRoundsExceeded
}

// consumeStream drains one engine response. Content deltas are forwarded to
// emit immediately (the engine produces either text or tool calls in a
// round, never both in practice); partial tool-call chunks are assembled
// into complete invocations, in request order.
func (o *Orchestrator) consumeStream(stream <-chan *llm.StreamingResult, emit func(string) error, usage *api.Usage) (string, []*tools.ToolCall, error) {
	var content strings.Builder
	var toolCalls []*tools.ToolCall

	for chunk := range stream {
		if chunk.Err != nil {
			return "", nil, fmt.Errorf("inference stream failed: %w", chunk.Err)
		}
		if chunk.Usage != nil {
			usage.Add(*chunk.Usage)
		}
		if chunk.ContentDelta != "" {
			content.WriteString(chunk.ContentDelta)
			if len(toolCalls) == 0 {
				if err := emit(chunk.ContentDelta); err != nil {
					return "", nil, fmt.Errorf("client stream aborted: %w", err)
				}
			}
		}
		if tc := chunk.ToolCallChunk; tc != nil {
			if tc.ID != "" || len(toolCalls) == 0 {
				call := *tc
				toolCalls = append(toolCalls, &call)
			} else {
				// An ID-less chunk continues the previous call's arguments.
				last := toolCalls[len(toolCalls)-1]
				last.Function.Arguments += tc.Function.Arguments
				if tc.Function.Name != "" {
					last.Function.Name = tc.Function.Name
				}
			}
		}
	}
	return content.String(), toolCalls, nil
}
