// In file: internal/llm/workersai_client.go
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meteo-chat/backend/internal/api"
	"github.com/meteo-chat/backend/internal/tools"
)

// workersAIEndpoint is Cloudflare's OpenAI-compatible chat completions URL,
// parameterized by account ID.
const workersAIEndpoint = "https://api.cloudflare.com/client/v4/accounts/%s/ai/v1/chat/completions"

// workersAIRequest is the top-level request body for a chat completion.
type workersAIRequest struct {
	Model       string             `json:"model"`
	Messages    []workersAIMessage `json:"messages"`
	Tools       []workersAITool    `json:"tools,omitempty"`
	ToolChoice  string             `json:"tool_choice,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature *float32           `json:"temperature,omitempty"`
}

// workersAIMessage is a single conversation message in wire format.
type workersAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []tools.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// workersAITool wraps a function definition in the OpenAI-compatible shape.
type workersAITool struct {
	Type     string         `json:"type"`
	Function tools.Function `json:"function"`
}

// workersAIResponse is a successful non-streaming completion.
type workersAIResponse struct {
	Choices []struct {
		Message workersAIMessage `json:"message"`
	} `json:"choices"`
	Usage api.Usage `json:"usage"`
}

// workersAIStreamChunk is one SSE event of a streaming completion.
type workersAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []tools.ToolCall `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *api.Usage `json:"usage"`
}

// WorkersAIClient talks to Cloudflare Workers AI through its OpenAI-compatible
// REST endpoint. This is the primary inference backend: the service was
// designed around the "@cf/..." model catalogue.
type WorkersAIClient struct {
	apiToken   string
	endpoint   string
	httpClient *http.Client
}

var _ LLMClient = (*WorkersAIClient)(nil)

// NewWorkersAIClient creates a configured client for the given Cloudflare
// account. The model is chosen per request via GenerationConfig.
func NewWorkersAIClient(accountID, apiToken string) (*WorkersAIClient, error) {
	if accountID == "" {
		return nil, errors.New("Cloudflare account ID cannot be empty")
	}
	if apiToken == "" {
		return nil, errors.New("Cloudflare API token cannot be empty")
	}
	return &WorkersAIClient{
		apiToken: apiToken,
		endpoint: fmt.Sprintf(workersAIEndpoint, accountID),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

// Generate performs a blocking chat completion.
func (c *WorkersAIClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	payload, err := c.buildRequestPayload(messages, config, availableTools, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build workers ai request payload: %w", err)
	}

	respBody, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	return parseWorkersAIResponse(respBody)
}

// GenerateStream performs a streaming chat completion. Results are delivered
// on the returned channel as SSE events arrive.
func (c *WorkersAIClient) GenerateStream(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (<-chan *StreamingResult, error) {
	payload, err := c.buildRequestPayload(messages, config, availableTools, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build workers ai stream payload: %w", err)
	}

	respBody, err := c.doRequestStream(ctx, payload)
	if err != nil {
		return nil, err
	}

	outChan := make(chan *StreamingResult)
	go c.processStream(respBody, outChan)
	return outChan, nil
}

// buildRequestPayload converts the internal message and tool formats into the
// OpenAI-compatible request body.
func (c *WorkersAIClient) buildRequestPayload(messages []Message, config *GenerationConfig, availableTools []tools.Tool, stream bool) (*bytes.Buffer, error) {
	req := workersAIRequest{
		Model:    config.Model,
		Messages: toWorkersAIMessages(messages),
		Tools:    toWorkersAITools(availableTools),
		Stream:   stream,
	}
	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}
	if config.Temperature != nil {
		req.Temperature = config.Temperature
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return bytes.NewBuffer(payloadBytes), nil
}

// doRequest performs the HTTP call with bounded retries for the blocking
// path. Client errors (4xx) are never retried.
func (c *WorkersAIClient) doRequest(ctx context.Context, payload *bytes.Buffer) ([]byte, error) {
	var lastErr error
	delay := initialRetryDelay

	for i := 0; i < maxRetries; i++ {
		// A bytes.Reader lets the body be re-read on retry.
		req, err := c.createRequest(ctx, bytes.NewReader(payload.Bytes()))
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", i+1, maxRetries, err)
			time.Sleep(delay)
			delay *= 2
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response body: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		lastErr = fmt.Errorf("workers ai API error (attempt %d/%d): status %d, body: %s", i+1, maxRetries, resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, lastErr
		}

		time.Sleep(delay)
		delay *= 2
	}
	return nil, lastErr
}

// doRequestStream executes the HTTP request for streaming and hands the body
// back for SSE processing.
func (c *WorkersAIClient) doRequestStream(ctx context.Context, payload *bytes.Buffer) (io.ReadCloser, error) {
	req, err := c.createRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to start stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("workers ai API stream error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

func (c *WorkersAIClient) createRequest(ctx context.Context, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	return req, nil
}

// processStream reads the SSE stream and forwards chunks to outChan. Partial
// tool calls are forwarded as they arrive; assembling them into complete
// invocations is the caller's concern.
func (c *WorkersAIClient) processStream(body io.ReadCloser, outChan chan<- *StreamingResult) {
	defer body.Close()
	defer close(outChan)

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return
		}

		var chunk workersAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			outChan <- &StreamingResult{Err: fmt.Errorf("error unmarshalling stream chunk: %w", err)}
			return
		}

		if chunk.Usage != nil {
			outChan <- &StreamingResult{Usage: chunk.Usage}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			outChan <- &StreamingResult{ContentDelta: delta.Content}
		}
		// Providers may pack several tool-call deltas into one event; each
		// becomes its own chunk so none is lost.
		for _, tc := range delta.ToolCalls {
			outChan <- &StreamingResult{ToolCallChunk: &tools.ToolCall{
				ID:   tc.ID,
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}}
		}
	}

	if err := scanner.Err(); err != nil {
		outChan <- &StreamingResult{Err: fmt.Errorf("error reading stream: %w", err)}
	}
}

// toWorkersAIMessages converts the internal message slice to wire format.
func toWorkersAIMessages(messages []Message) []workersAIMessage {
	out := make([]workersAIMessage, 0, len(messages))
	for _, msg := range messages {
		m := workersAIMessage{Role: string(msg.Role)}
		switch msg.Role {
		case RoleTool:
			m.ToolCallID = msg.ToolCallID
			m.Content = msg.Content
		case RoleAssistant:
			m.Content = msg.Content
			if len(msg.ToolCalls) > 0 {
				m.ToolCalls = make([]tools.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					m.ToolCalls[i] = *tc
				}
			}
		default: // RoleUser and RoleSystem
			m.Content = msg.Content
		}
		out = append(out, m)
	}
	return out
}

func toWorkersAITools(availableTools []tools.Tool) []workersAITool {
	if len(availableTools) == 0 {
		return nil
	}
	out := make([]workersAITool, 0, len(availableTools))
	for _, tool := range availableTools {
		out = append(out, workersAITool{
			Type:     tools.ToolTypeFunction,
			Function: tool.Function,
		})
	}
	return out
}

// parseWorkersAIResponse converts a full completion response into the
// internal GenerationResult.
func parseWorkersAIResponse(body []byte) (*GenerationResult, error) {
	var resp workersAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workers ai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from Workers AI")
	}

	choice := resp.Choices[0]
	result := &GenerationResult{
		Content: choice.Message.Content,
		Usage:   resp.Usage,
	}
	if len(choice.Message.ToolCalls) > 0 {
		result.ToolCalls = make([]*tools.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, &tools.ToolCall{
				ID:   tc.ID,
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
	}
	return result, nil
}
