package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/models"
)

// GeminiChat is the chat call RunGemini needs. *genai.ChatSession satisfies it
// and keeps the history itself.
type GeminiChat interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

var _ GeminiChat = (*genai.ChatSession)(nil)

// NewGeminiChat starts a chat on cfg.Model with the dkod tools and the
// system prompt attached.
func NewGeminiChat(client *genai.Client, cfg Config) *genai.ChatSession {
	cfg = cfg.withModel(models.DefaultModels[models.ProviderGemini])
	model := models.GeminiModel(client, cfg.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(cfg.SystemPrompt))
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	return model.StartChat()
}

// RunGemini is Run for Gemini. Each tool result goes back as a
// FunctionResponse whose payload is {"result": ...} or {"error": ...}.
func RunGemini(ctx context.Context, cfg Config, chat GeminiChat, session dkod.ToolSession, task string) (*Transcript, error) {
	if chat == nil {
		return nil, errors.New("agentloop: chat is nil")
	}
	if session == nil {
		return nil, errors.New("agentloop: session is nil")
	}
	cfg = cfg.withModel(models.DefaultModels[models.ProviderGemini])

	tr := &Transcript{}
	parts := []genai.Part{genai.Text(task)}
	for tr.Turns < cfg.MaxTurns {
		tr.Turns++
		resp, err := chat.SendMessage(ctx, parts...)
		if err != nil {
			return tr, fmt.Errorf("agentloop: turn %d: %w", tr.Turns, err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return tr, fmt.Errorf("agentloop: turn %d: empty response", tr.Turns)
		}

		var text strings.Builder
		var calls []genai.FunctionCall
		for _, part := range resp.Candidates[0].Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text.WriteString(string(p))
				if cfg.OnText != nil {
					cfg.OnText(string(p))
				}
			case genai.FunctionCall:
				calls = append(calls, p)
			}
		}
		if text.Len() > 0 {
			tr.FinalText = text.String()
		}
		cfg.Logger.Debug("agentloop turn", "provider", models.ProviderGemini, "turn", tr.Turns, "tool_calls", len(calls))

		if len(calls) == 0 {
			return tr, nil
		}
		parts = make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			input, err := json.Marshal(call.Args)
			if err != nil {
				input = []byte("{}")
			}
			out, isError := callTool(ctx, cfg, session, tr, call.Name, input)
			key := "result"
			if isError {
				key = "error"
			}
			parts = append(parts, genai.FunctionResponse{Name: call.Name, Response: map[string]any{key: out}})
		}
	}
	return tr, ErrTurnLimit
}
