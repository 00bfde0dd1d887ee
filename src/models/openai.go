package models

import (
	"os"

	"github.com/sashabaranov/go-openai"

	dkod "github.com/dkod-io/agent-sdk-go"
)

// NewOpenAIClient reads OPENAI_API_KEY (or OPENAI_KEY) when apiKey is empty.
func NewOpenAIClient(apiKey string) *openai.Client {
	if apiKey == "" {
		apiKey = openAIKeyFromEnv()
	}
	return openai.NewClient(apiKey)
}

func openAIKeyFromEnv() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_KEY")
}

// OpenAITools returns the dkod tools as chat-completion function tools.
func OpenAITools() []openai.Tool {
	descriptors := dkod.Tools()
	out := make([]openai.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema.Map(),
			},
		})
	}
	return out
}
