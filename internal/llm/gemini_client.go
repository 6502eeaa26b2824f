// In file: internal/llm/gemini_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/meteo-chat/backend/internal/api"
	"github.com/meteo-chat/backend/internal/tools"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// geminiToolCallIDPrefix synthesizes stable tool-call IDs, since the Gemini
// API has no native ID concept. The tool name is recovered from the ID when
// the result is sent back as a FunctionResponse.
const geminiToolCallIDPrefix = "gemini-toolcall-"

// GeminiClient is the alternate inference backend, driven through Google's
// generative-ai-go SDK. It supports function calling and token streaming.
// One instance serves all requests concurrently: each call prepares its own
// model handle, so no request ever observes another's system instruction,
// tool set or generation settings.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

var _ LLMClient = (*GeminiClient)(nil)

func NewGeminiClient(apiKey, modelID string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelID: modelID}, nil
}

// Generate performs a blocking request to the Gemini API.
func (c *GeminiClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	model, messages := c.prepareModel(messages, config, availableTools)

	chat := model.StartChat()
	chat.History = toGeminiContentHistory(messages)

	resp, err := chat.SendMessage(ctx, toGeminiParts(messages[len(messages)-1])...)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return parseGeminiResponse(resp)
}

// GenerateStream performs a streaming request to the Gemini API. Text parts
// are forwarded as content deltas; FunctionCall parts arrive complete and
// are forwarded as whole tool-call chunks.
func (c *GeminiClient) GenerateStream(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (<-chan *StreamingResult, error) {
	model, messages := c.prepareModel(messages, config, availableTools)

	chat := model.StartChat()
	chat.History = toGeminiContentHistory(messages)
	lastMessage := messages[len(messages)-1]

	outChan := make(chan *StreamingResult)
	go func() {
		defer close(outChan)
		iter := chat.SendMessageStream(ctx, toGeminiParts(lastMessage)...)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				outChan <- &StreamingResult{Err: fmt.Errorf("gemini stream error: %w", err)}
				return
			}
			if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				switch v := part.(type) {
				case genai.Text:
					if string(v) != "" {
						outChan <- &StreamingResult{ContentDelta: string(v)}
					}
				case genai.FunctionCall:
					if call := toToolCall(v); call != nil {
						outChan <- &StreamingResult{ToolCallChunk: call}
					}
				}
			}
			if resp.UsageMetadata != nil {
				usage := usageFromMetadata(resp.UsageMetadata)
				outChan <- &StreamingResult{Usage: &usage}
			}
		}
	}()
	return outChan, nil
}

// prepareModel builds a model handle for a single call: a leading system
// message goes into the SDK's dedicated system-instruction slot, generation
// settings and tool schemas are applied, and the remaining history is
// returned. The handle is never shared, so concurrent requests cannot
// observe each other's configuration.
func (c *GeminiClient) prepareModel(messages []Message, config *GenerationConfig, availableTools []tools.Tool) (*genai.GenerativeModel, []Message) {
	model := c.client.GenerativeModel(c.modelID)

	if len(messages) > 0 && messages[0].Role == RoleSystem {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(messages[0].Content)},
		}
		messages = messages[1:]
	}

	model.SetMaxOutputTokens(4096)
	if config != nil {
		if config.Temperature != nil {
			model.SetTemperature(*config.Temperature)
		}
		if config.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(config.MaxTokens))
		}
	}

	if len(availableTools) > 0 {
		model.Tools = toGeminiTools(availableTools)
	}
	return model, messages
}

// toGeminiTools converts the internal tool definitions to the SDK's format.
func toGeminiTools(toolsToConvert []tools.Tool) []*genai.Tool {
	var geminiTools []*genai.Tool
	for _, t := range toolsToConvert {
		funcDecl := &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		}
		geminiTools = append(geminiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{funcDecl},
		})
	}
	return geminiTools
}

// convertSchema maps the internal JSONSchema onto the SDK's schema type.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	genaiSchema := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	}
	if s.Properties != nil {
		genaiSchema.Properties = make(map[string]*genai.Schema)
		for k, v := range s.Properties {
			genaiSchema.Properties[k] = convertSchema(*v)
		}
	}
	return genaiSchema
}

// toGeminiParts renders one message as SDK parts. Tool results become
// FunctionResponse parts so the model can match them to its own calls.
func toGeminiParts(msg Message) []genai.Part {
	if msg.Role == RoleTool {
		return []genai.Part{genai.FunctionResponse{
			Name:     strings.TrimPrefix(msg.ToolCallID, geminiToolCallIDPrefix),
			Response: map[string]any{"content": msg.Content},
		}}
	}
	return []genai.Part{genai.Text(msg.Content)}
}

// toGeminiContentHistory converts the message history (everything but the
// last message, which is sent as the new turn) to the SDK's format.
func toGeminiContentHistory(messages []Message) []*genai.Content {
	var history []*genai.Content
	for _, msg := range messages[:len(messages)-1] {
		role := "user"
		switch msg.Role {
		case RoleAssistant:
			role = "model"
		case RoleTool:
			role = "function"
		}

		parts := toGeminiParts(msg)
		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			// Replay the model's own tool requests so resubmitted history
			// stays causally consistent.
			parts = nil
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					log.Printf("Warning: could not decode tool call args for history: %v", err)
					args = map[string]any{}
				}
				parts = append(parts, genai.FunctionCall{Name: tc.Function.Name, Args: args})
			}
		}

		history = append(history, &genai.Content{
			Role:  role,
			Parts: parts,
		})
	}
	return history
}

// toToolCall converts an SDK FunctionCall part to the internal type.
func toToolCall(v genai.FunctionCall) *tools.ToolCall {
	argsJSON, err := json.Marshal(v.Args)
	if err != nil {
		log.Printf("Warning: could not marshal tool call args: %v", err)
		return nil
	}
	return &tools.ToolCall{
		ID:   geminiToolCallIDPrefix + v.Name,
		Type: tools.ToolTypeFunction,
		Function: tools.ToolCallFunction{
			Name:      v.Name,
			Arguments: string(argsJSON),
		},
	}
}

func usageFromMetadata(md *genai.UsageMetadata) api.Usage {
	return api.Usage{
		PromptTokens:     int(md.PromptTokenCount),
		CompletionTokens: int(md.CandidatesTokenCount),
		TotalTokens:      int(md.TotalTokenCount),
	}
}

// parseGeminiResponse converts an SDK response into the internal result type.
func parseGeminiResponse(resp *genai.GenerateContentResponse) (*GenerationResult, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}

	candidate := resp.Candidates[0]
	var contentBuilder strings.Builder
	var toolCalls []*tools.ToolCall

	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			contentBuilder.WriteString(string(v))
		case genai.FunctionCall:
			if call := toToolCall(v); call != nil {
				toolCalls = append(toolCalls, call)
			}
		}
	}

	result := &GenerationResult{
		Content:   strings.TrimSpace(contentBuilder.String()),
		ToolCalls: toolCalls,
	}
	if resp.UsageMetadata != nil {
		result.Usage = usageFromMetadata(resp.UsageMetadata)
	}
	return result, nil
}
