package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	dkod "github.com/dkod-io/agent-sdk-go"
)

// NewGeminiClient reads GOOGLE_API_KEY or GEMINI_API_KEY when apiKey is empty.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return client, nil
}

// GeminiModel returns a generative model with the dkod tools attached.
func GeminiModel(client *genai.Client, name string) *genai.GenerativeModel {
	model := client.GenerativeModel(name)
	model.Tools = GeminiTools()
	return model
}

// GeminiTools returns the dkod tools as one Gemini tool holding six
// function declarations.
func GeminiTools() []*genai.Tool {
	descriptors := dkod.Tools()
	decls := make([]*genai.FunctionDeclaration, 0, len(descriptors))
	for _, d := range descriptors {
		decl := &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
		}
		// Gemini rejects OBJECT parameters with no properties.
		if len(d.InputSchema.Properties) > 0 {
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: geminiProperties(d.InputSchema.Properties),
				Required:   d.InputSchema.Required,
			}
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func geminiProperties(props map[string]dkod.Property) map[string]*genai.Schema {
	if len(props) == 0 {
		return nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]*genai.Schema, len(props))
	for _, k := range keys {
		out[k] = geminiSchema(props[k])
	}
	return out
}

func geminiSchema(p dkod.Property) *genai.Schema {
	s := &genai.Schema{
		Type:        geminiType(p.Type),
		Description: p.Description,
		Enum:        p.Enum,
		Properties:  geminiProperties(p.Properties),
		Required:    p.Required,
	}
	if len(p.Enum) > 0 {
		s.Format = "enum"
	}
	if p.Items != nil {
		s.Items = geminiSchema(*p.Items)
	}
	return s
}

func geminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
