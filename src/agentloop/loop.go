// Package agentloop drives a tool-use conversation against a dkod session.
// Every tool call the model makes is routed through dkod.Dispatch and the
// result is sent back in the provider's tool-result form. Run speaks the
// Anthropic Messages API; RunOpenAI, RunGemini and RunOllama cover the other
// providers.
package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/models"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens = 4096
	DefaultMaxTurns  = 25
)

// DefaultSystemPrompt tells the model how to work with the dkod tools.
const DefaultSystemPrompt = `You are a coding agent working on a codebase through the dkod tools.
Always call dkod_context to find the relevant symbols before changing anything.
Read files with dkod_read_file when you need surrounding code.
Submit complete replacement source for each symbol with dkod_submit and explain every change in its rationale.
When the task is done, reply with a short summary and no tool calls.`

// ErrTurnLimit is returned when the model is still calling tools after
// MaxTurns requests.
var ErrTurnLimit = errors.New("agentloop: turn limit reached")

// MessageCreator is the Messages API call the loop needs.
// *anthropic.MessageService satisfies it.
type MessageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

var _ MessageCreator = (*anthropic.MessageService)(nil)

// Config controls one run. Messages is required by Run and ignored by the
// other providers' runners; zero values elsewhere take the package defaults.
type Config struct {
	Messages     MessageCreator
	Model        string
	MaxTokens    int64
	MaxTurns     int
	SystemPrompt string
	Logger       *slog.Logger

	OnText       func(text string)
	OnToolCall   func(name string, input json.RawMessage)
	OnToolResult func(name, result string, isError bool)
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// withModel fills an empty Model with model before the other defaults apply.
func (c Config) withModel(model string) Config {
	if c.Model == "" {
		c.Model = model
	}
	return c.withDefaults()
}

// Transcript is the conversation as sent to the API plus a few counters.
// Messages is only filled by Run.
type Transcript struct {
	Messages   []anthropic.MessageParam
	FinalText  string
	Turns      int
	ToolCalls  int
	ToolErrors int
}

// Run sends task to the model and keeps answering tool calls until the model
// stops calling tools, ends its turn, or MaxTurns is reached. Dispatch errors
// are reported back to the model as error results; only API errors abort.
func Run(ctx context.Context, cfg Config, session dkod.ToolSession, task string) (*Transcript, error) {
	if cfg.Messages == nil {
		return nil, errors.New("agentloop: Config.Messages is nil")
	}
	if session == nil {
		return nil, errors.New("agentloop: session is nil")
	}
	cfg = cfg.withDefaults()

	tools := models.AnthropicTools()
	tr := &Transcript{
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(task))},
	}

	for tr.Turns < cfg.MaxTurns {
		tr.Turns++
		msg, err := cfg.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(cfg.Model),
			MaxTokens: cfg.MaxTokens,
			System:    []anthropic.TextBlockParam{{Text: cfg.SystemPrompt}},
			Messages:  tr.Messages,
			Tools:     tools,
		})
		if err != nil {
			return tr, fmt.Errorf("agentloop: turn %d: %w", tr.Turns, err)
		}
		tr.Messages = append(tr.Messages, msg.ToParam())

		var (
			text    strings.Builder
			results []anthropic.ContentBlockParamUnion
		)
		for _, block := range msg.Content {
			switch b := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(b.Text)
				if cfg.OnText != nil {
					cfg.OnText(b.Text)
				}
			case anthropic.ToolUseBlock:
				results = append(results, runTool(ctx, cfg, session, tr, b))
			}
		}
		if text.Len() > 0 {
			tr.FinalText = text.String()
		}
		cfg.Logger.Debug("agentloop turn", "turn", tr.Turns, "stop_reason", msg.StopReason, "tool_calls", len(results))

		if len(results) == 0 || msg.StopReason == anthropic.StopReasonEndTurn {
			return tr, nil
		}
		tr.Messages = append(tr.Messages, anthropic.NewUserMessage(results...))
	}
	return tr, ErrTurnLimit
}

func runTool(ctx context.Context, cfg Config, session dkod.ToolSession, tr *Transcript, b anthropic.ToolUseBlock) anthropic.ContentBlockParamUnion {
	out, isError := callTool(ctx, cfg, session, tr, b.Name, b.Input)
	return anthropic.NewToolResultBlock(b.ID, out, isError)
}

// callTool dispatches one tool call and returns the text to send back to the
// model. Failures become "Error: ..." text rather than aborting the loop.
func callTool(ctx context.Context, cfg Config, session dkod.ToolSession, tr *Transcript, name string, input json.RawMessage) (string, bool) {
	tr.ToolCalls++
	if cfg.OnToolCall != nil {
		cfg.OnToolCall(name, input)
	}
	out, err := dkod.DispatchJSON(ctx, session, name, input, dkod.WithDispatchLogger(cfg.Logger))
	isError := err != nil
	if isError {
		tr.ToolErrors++
		out = "Error: " + err.Error()
		cfg.Logger.Debug("agentloop tool failed", "tool", name, "validation", dkod.IsValidationError(err), "err", err)
	}
	if cfg.OnToolResult != nil {
		cfg.OnToolResult(name, out, isError)
	}
	return out, isError
}
