package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	genai "github.com/google/generative-ai-go/genai"
	ollama "github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
)

// Agent providers accepted by NewProviderClient.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// DefaultModels is the model each provider uses when none is configured.
var DefaultModels = map[string]string{
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderOpenAI:    "gpt-4o",
	ProviderGemini:    "gemini-2.5-pro",
	ProviderOllama:    "llama3.1",
}

// NormalizeProvider maps provider aliases to their canonical name.
func NormalizeProvider(provider string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "anthropic", "claude":
		return ProviderAnthropic, nil
	case "openai":
		return ProviderOpenAI, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "ollama":
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}
}

// ProviderClient holds the SDK client of one provider. Exactly one of the
// client fields is set, matching Name.
type ProviderClient struct {
	Name      string
	Anthropic *anthropic.Client
	OpenAI    *openai.Client
	Gemini    *genai.Client
	Ollama    *ollama.Client
}

// NewProviderClient builds the client for provider. An empty apiKey falls
// back to the provider's usual environment variables; Ollama needs none.
func NewProviderClient(ctx context.Context, provider, apiKey string) (*ProviderClient, error) {
	name, err := NormalizeProvider(provider)
	if err != nil {
		return nil, err
	}
	p := &ProviderClient{Name: name}
	switch name {
	case ProviderAnthropic:
		client := NewAnthropicClient(apiKey)
		p.Anthropic = &client
	case ProviderOpenAI:
		client, err := newOpenAIClient(apiKey)
		if err != nil {
			return nil, err
		}
		p.OpenAI = client
	case ProviderGemini:
		if p.Gemini, err = NewGeminiClient(ctx, apiKey); err != nil {
			return nil, err
		}
	case ProviderOllama:
		if p.Ollama, err = NewOllamaClient(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newOpenAIClient(apiKey string) (*openai.Client, error) {
	if apiKey == "" && openAIKeyFromEnv() == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	return NewOpenAIClient(apiKey), nil
}

// Close releases the Gemini client's connections. Other clients hold nothing
// that needs closing.
func (p *ProviderClient) Close() error {
	if p.Gemini != nil {
		return p.Gemini.Close()
	}
	return nil
}
