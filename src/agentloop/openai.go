package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/models"
)

// ChatCompleter is the chat-completions call RunOpenAI needs.
// *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ ChatCompleter = (*openai.Client)(nil)

// RunOpenAI is Run for the OpenAI chat-completions API. Tool results are
// sent back as role "tool" messages carrying the call id.
func RunOpenAI(ctx context.Context, cfg Config, chat ChatCompleter, session dkod.ToolSession, task string) (*Transcript, error) {
	if chat == nil {
		return nil, errors.New("agentloop: chat client is nil")
	}
	if session == nil {
		return nil, errors.New("agentloop: session is nil")
	}
	cfg = cfg.withModel(models.DefaultModels[models.ProviderOpenAI])

	tools := models.OpenAITools()
	history := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: cfg.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: task},
	}
	tr := &Transcript{}

	for tr.Turns < cfg.MaxTurns {
		tr.Turns++
		resp, err := chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     cfg.Model,
			MaxTokens: int(cfg.MaxTokens),
			Messages:  history,
			Tools:     tools,
		})
		if err != nil {
			return tr, fmt.Errorf("agentloop: turn %d: %w", tr.Turns, err)
		}
		if len(resp.Choices) == 0 {
			return tr, fmt.Errorf("agentloop: turn %d: no choices in response", tr.Turns)
		}
		choice := resp.Choices[0]
		msg := choice.Message
		history = append(history, msg)

		if msg.Content != "" {
			tr.FinalText = msg.Content
			if cfg.OnText != nil {
				cfg.OnText(msg.Content)
			}
		}
		cfg.Logger.Debug("agentloop turn", "provider", models.ProviderOpenAI, "turn", tr.Turns, "finish_reason", choice.FinishReason, "tool_calls", len(msg.ToolCalls))

		if len(msg.ToolCalls) == 0 {
			return tr, nil
		}
		for _, call := range msg.ToolCalls {
			out, _ := callTool(ctx, cfg, session, tr, call.Function.Name, json.RawMessage(call.Function.Arguments))
			history = append(history, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
	return tr, ErrTurnLimit
}
