package models

import (
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	dkod "github.com/dkod-io/agent-sdk-go"
)

// NewAnthropicClient builds a Messages API client. An empty apiKey falls back
// to ANTHROPIC_API_KEY.
func NewAnthropicClient(apiKey string, opts ...anthropicopt.RequestOption) anthropic.Client {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return anthropic.NewClient(append([]anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}, opts...)...)
}

// AnthropicTools returns the dkod tools as Messages API tool definitions.
func AnthropicTools() []anthropic.ToolUnionParam {
	descriptors := dkod.Tools()
	out := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schemaProperties(d),
					Required:   d.InputSchema.Required,
				},
			},
		})
	}
	return out
}

// AnthropicBetaTools is AnthropicTools for the beta Messages API, carrying
// allowed_callers so the tools can be called from code execution.
func AnthropicBetaTools() []anthropic.BetaToolUnionParam {
	descriptors := dkod.Tools()
	out := make([]anthropic.BetaToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, anthropic.BetaToolUnionParam{
			OfTool: &anthropic.BetaToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.BetaToolInputSchemaParam{
					Properties: schemaProperties(d),
					Required:   d.InputSchema.Required,
				},
				AllowedCallers: d.AllowedCallers,
			},
		})
	}
	return out
}

func schemaProperties(d dkod.ToolDescriptor) map[string]any {
	props, _ := d.InputSchema.Map()["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	return props
}
