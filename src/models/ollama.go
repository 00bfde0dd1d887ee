package models

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	ollama "github.com/ollama/ollama/api"

	dkod "github.com/dkod-io/agent-sdk-go"
)

// NewOllamaClient connects to OLLAMA_HOST, defaulting to the local daemon.
func NewOllamaClient() (*ollama.Client, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	return ollama.NewClient(u, &http.Client{Timeout: 60 * time.Second}), nil
}

type functionTool struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  dkod.InputSchema `json:"parameters"`
}

// OllamaTools returns the dkod tools in Ollama's chat tool format.
func OllamaTools() ([]ollama.Tool, error) {
	descriptors := dkod.Tools()
	out := make([]ollama.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		data, err := json.Marshal(functionTool{
			Type:     "function",
			Function: functionSpec{Name: d.Name, Description: d.Description, Parameters: d.InputSchema},
		})
		if err != nil {
			return nil, fmt.Errorf("ollama tool %s: %w", d.Name, err)
		}
		var tool ollama.Tool
		if err := json.Unmarshal(data, &tool); err != nil {
			return nil, fmt.Errorf("ollama tool %s: %w", d.Name, err)
		}
		out = append(out, tool)
	}
	return out, nil
}
