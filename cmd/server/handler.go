// In file: cmd/server/handler.go
package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/meteo-chat/backend/internal/api"
	"github.com/meteo-chat/backend/internal/chat"
	"github.com/meteo-chat/backend/internal/llm"

	"github.com/gin-gonic/gin"
)

// ChatHandler owns the HTTP surface of the chat endpoint and delegates the
// conversation to the orchestrator. Each request is handled independently;
// the handler itself carries no per-request state.
type ChatHandler struct {
	orchestrator *chat.Orchestrator
	profiler     *llm.Profiler
	model        string
}

func NewChatHandler(orchestrator *chat.Orchestrator, profiler *llm.Profiler, model string) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		profiler:     profiler,
		model:        model,
	}
}

// HandleChat implements POST /api/chat. Malformed payloads are rejected
// before any model or tool work begins; once streaming has started, a
// failure terminates the stream early instead of producing an error body.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	startTime := time.Now()

	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	history, err := toLLMMessages(req.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("--- New chat request (%d message(s), last: '%.40s') ---", len(history), history[len(history)-1].Content)

	started := false
	emit := func(delta string) error {
		if _, err := c.Writer.WriteString(delta); err != nil {
			return err
		}
		if !started {
			started = true
		}
		c.Writer.Flush()
		return nil
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")

	outcome, err := h.orchestrator.Stream(c.Request.Context(), history, emit)
	latency := time.Since(startTime)

	if err != nil {
		h.profiler.UpdateProfileOnFailure(c.Request.Context(), h.model)
		log.Printf("❌ Chat request failed after %d round(s): %v", outcome.Rounds, err)
		if started {
			// Headers are gone; the truncated stream is all we can signal.
			return
		}
		status := http.StatusBadGateway
		if errors.Is(err, chat.ErrToolRoundsExceeded) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": "The assistant is currently unavailable. Please try again."})
		return
	}

	h.profiler.UpdateProfileOnSuccess(c.Request.Context(), h.model, latency, outcome.Usage)
	log.Printf("✅ Chat request completed in %d round(s), %dms", outcome.Rounds, latency.Milliseconds())
}

// toLLMMessages converts and checks the inbound history. The system
// directive is always synthesized server-side, so caller-supplied system
// messages are dropped rather than trusted.
func toLLMMessages(in []api.Message) ([]llm.Message, error) {
	out := make([]llm.Message, 0, len(in))
	for i, msg := range in {
		switch llm.Role(msg.Role) {
		case llm.RoleSystem:
			continue
		case llm.RoleUser, llm.RoleAssistant:
			out = append(out, llm.Message{Role: llm.Role(msg.Role), Content: msg.Content})
		default:
			return nil, fmt.Errorf("message %d has unsupported role %q", i, msg.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("messages must contain at least one user or assistant entry")
	}
	return out, nil
}
