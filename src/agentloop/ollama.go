package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ollama "github.com/ollama/ollama/api"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/models"
)

// OllamaChatter is the chat call RunOllama needs. *ollama.Client satisfies it.
type OllamaChatter interface {
	Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error
}

var _ OllamaChatter = (*ollama.Client)(nil)

// RunOllama is Run for a local Ollama daemon. Requests are not streamed;
// tool results go back as role "tool" messages naming the tool.
func RunOllama(ctx context.Context, cfg Config, chat OllamaChatter, session dkod.ToolSession, task string) (*Transcript, error) {
	if chat == nil {
		return nil, errors.New("agentloop: chat client is nil")
	}
	if session == nil {
		return nil, errors.New("agentloop: session is nil")
	}
	cfg = cfg.withModel(models.DefaultModels[models.ProviderOllama])

	tools, err := models.OllamaTools()
	if err != nil {
		return nil, err
	}
	stream := false
	history := []ollama.Message{
		{Role: "system", Content: cfg.SystemPrompt},
		{Role: "user", Content: task},
	}
	tr := &Transcript{}

	for tr.Turns < cfg.MaxTurns {
		tr.Turns++
		var (
			reply ollama.Message
			text  strings.Builder
		)
		err := chat.Chat(ctx, &ollama.ChatRequest{
			Model:    cfg.Model,
			Messages: history,
			Stream:   &stream,
			Tools:    tools,
			Options:  map[string]any{"num_predict": cfg.MaxTokens},
		}, func(resp ollama.ChatResponse) error {
			text.WriteString(resp.Message.Content)
			reply.ToolCalls = append(reply.ToolCalls, resp.Message.ToolCalls...)
			return nil
		})
		if err != nil {
			return tr, fmt.Errorf("agentloop: turn %d: %w", tr.Turns, err)
		}
		reply.Role = "assistant"
		reply.Content = text.String()
		history = append(history, reply)

		if reply.Content != "" {
			tr.FinalText = reply.Content
			if cfg.OnText != nil {
				cfg.OnText(reply.Content)
			}
		}
		cfg.Logger.Debug("agentloop turn", "provider", models.ProviderOllama, "turn", tr.Turns, "tool_calls", len(reply.ToolCalls))

		if len(reply.ToolCalls) == 0 {
			return tr, nil
		}
		for _, call := range reply.ToolCalls {
			input, err := json.Marshal(call.Function.Arguments)
			if err != nil {
				input = []byte("{}")
			}
			out, _ := callTool(ctx, cfg, session, tr, call.Function.Name, input)
			history = append(history, ollama.Message{Role: "tool", Content: out, ToolName: call.Function.Name})
		}
	}
	return tr, ErrTurnLimit
}
