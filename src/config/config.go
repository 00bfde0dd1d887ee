// Package config loads CLI settings from a YAML file, a .env file and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath  = "dkod.yaml"
	DefaultModel = "claude-sonnet-4-5-20250929"
)

// Environment variable names.
const (
	EnvServer       = "DKOD_SERVER"
	EnvToken        = "DKOD_TOKEN"
	EnvAgentID      = "DKOD_AGENT_ID"
	EnvCodebase     = "DKOD_CODEBASE"
	EnvModel        = "DKOD_MODEL"
	EnvProvider     = "DKOD_PROVIDER"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// Config holds everything the dkod CLI needs to open a session.
type Config struct {
	Server   string `yaml:"server"`
	Token    string `yaml:"token"`
	AgentID  string `yaml:"agent_id"`
	Codebase string `yaml:"codebase"`

	Agent AgentConfig `yaml:"agent"`
	Log   LogConfig   `yaml:"log"`
}

type AgentConfig struct {
	Provider     string `yaml:"provider"` // anthropic, openai, gemini, ollama
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	MaxTurns     int    `yaml:"max_turns"`
	MaxTokens    int64  `yaml:"max_tokens"`
	SystemPrompt string `yaml:"system_prompt"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{Provider: "anthropic", Model: DefaultModel},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path (missing files are skipped, an empty path means
// DefaultPath), loads .env into the process environment without overriding
// variables already set, then applies the DKOD_* variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Server, EnvServer)
	setFromEnv(&c.Token, EnvToken)
	setFromEnv(&c.AgentID, EnvAgentID)
	setFromEnv(&c.Codebase, EnvCodebase)
	setFromEnv(&c.Agent.Provider, EnvProvider)
	setFromEnv(&c.Agent.Model, EnvModel)
	setFromEnv(&c.Agent.APIKey, EnvAnthropicKey)
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate reports the settings required to reach a server.
func (c *Config) Validate() error {
	var missing []string
	if c.Server == "" {
		missing = append(missing, "server ("+EnvServer+")")
	}
	if c.Token == "" {
		missing = append(missing, "token ("+EnvToken+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
