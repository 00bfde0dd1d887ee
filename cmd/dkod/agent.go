package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/agentloop"
	"github.com/dkod-io/agent-sdk-go/src/config"
	"github.com/dkod-io/agent-sdk-go/src/helpers"
	"github.com/dkod-io/agent-sdk-go/src/models"
)

func newAgentCmd(a *app) *cobra.Command {
	var (
		provider  string
		model     string
		maxTurns  int
		maxTokens int64
	)
	cmd := &cobra.Command{
		Use:   "agent <task>",
		Short: "Run an LLM agent on the codebase until it finishes the task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args, " ")
			override(&a.cfg.Agent.Provider, provider)
			name, err := models.NormalizeProvider(a.cfg.Agent.Provider)
			if err != nil {
				return err
			}
			// The Claude default model means nothing to the other providers.
			if name != models.ProviderAnthropic && a.cfg.Agent.Model == config.DefaultModel {
				a.cfg.Agent.Model = ""
			}
			override(&a.cfg.Agent.Model, model)
			if maxTurns > 0 {
				a.cfg.Agent.MaxTurns = maxTurns
			}
			if maxTokens > 0 {
				a.cfg.Agent.MaxTokens = maxTokens
			}

			var apiKey string
			if name == models.ProviderAnthropic {
				if a.cfg.Agent.APIKey == "" {
					return errors.New("ANTHROPIC_API_KEY is not set")
				}
				apiKey = a.cfg.Agent.APIKey
			}
			client, err := models.NewProviderClient(cmd.Context(), name, apiKey)
			if err != nil {
				return err
			}
			defer client.Close()

			return a.withSession(cmd, task, func(session *dkod.Session) error {
				tr, err := runAgent(cmd, a.agentConfig(cmd), client, session, task)
				if tr != nil {
					a.logger.Info("agent finished", "provider", name, "turns", tr.Turns, "tool_calls", tr.ToolCalls, "tool_errors", tr.ToolErrors)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "anthropic, openai, gemini or ollama (default from config)")
	cmd.Flags().StringVar(&model, "model", "", "model name (default depends on the provider)")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "stop after this many model requests")
	cmd.Flags().Int64Var(&maxTokens, "max-tokens", 0, "max output tokens per model request")
	return cmd
}

func (a *app) agentConfig(cmd *cobra.Command) agentloop.Config {
	out := cmd.OutOrStdout()
	return agentloop.Config{
		Model:        a.cfg.Agent.Model,
		MaxTokens:    a.cfg.Agent.MaxTokens,
		MaxTurns:     a.cfg.Agent.MaxTurns,
		SystemPrompt: a.cfg.Agent.SystemPrompt,
		Logger:       a.logger,
		OnText:       func(text string) { fmt.Fprintln(out, text) },
		OnToolCall: func(name string, input json.RawMessage) {
			a.logger.Info("tool call", "tool", name, "input", helpers.Truncate(string(input), 200))
		},
		OnToolResult: func(name, result string, isError bool) {
			a.logger.Debug("tool result", "tool", name, "error", isError, "result", helpers.Truncate(result, 200))
		},
	}
}

func runAgent(cmd *cobra.Command, cfg agentloop.Config, client *models.ProviderClient, session *dkod.Session, task string) (*agentloop.Transcript, error) {
	ctx := cmd.Context()
	switch client.Name {
	case models.ProviderOpenAI:
		return agentloop.RunOpenAI(ctx, cfg, client.OpenAI, session, task)
	case models.ProviderGemini:
		return agentloop.RunGemini(ctx, cfg, agentloop.NewGeminiChat(client.Gemini, cfg), session, task)
	case models.ProviderOllama:
		return agentloop.RunOllama(ctx, cfg, client.Ollama, session, task)
	default:
		cfg.Messages = &client.Anthropic.Messages
		return agentloop.Run(ctx, cfg, session, task)
	}
}
