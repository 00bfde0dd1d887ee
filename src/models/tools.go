// Package models renders the dkod tool descriptors in the tool formats of the
// LLM provider SDKs and builds clients for those providers.
package models

import (
	"fmt"
	"strings"

	dkod "github.com/dkod-io/agent-sdk-go"
)

// Providers lists the names accepted by ToolsFor.
var Providers = []string{"dkod", "anthropic", "anthropic-beta", "openai", "gemini", "ollama"}

// ToolsFor returns the tool list in the given provider's format, ready to be
// marshalled as JSON.
func ToolsFor(provider string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "dkod":
		return dkod.Tools(), nil
	case "anthropic", "claude":
		return AnthropicTools(), nil
	case "anthropic-beta":
		return AnthropicBetaTools(), nil
	case "openai":
		return OpenAITools(), nil
	case "gemini", "google":
		return GeminiTools(), nil
	case "ollama":
		return OllamaTools()
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
