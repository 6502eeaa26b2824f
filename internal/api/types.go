// In file: internal/api/types.go

// Package api defines the public wire types of the chat backend: the request
// body accepted by POST /api/chat and the token accounting shared with the
// llm package.
package api

// Message is a single conversation entry as supplied by the caller.
// The system directive is never accepted from the outside; it is synthesized
// per request by the orchestrator.
type Message struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ChatRequest is the body of POST /api/chat: the ordered conversation
// history, oldest message first.
type ChatRequest struct {
	Messages []Message `json:"messages" binding:"required,min=1,dive"`
}

// Usage holds token statistics for one or more generation calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another call's usage into u. The orchestrator uses this to
// sum usage across tool-resolution rounds.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
