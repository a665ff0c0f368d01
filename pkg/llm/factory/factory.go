package factory

import (
	"fmt"
	"strings"

	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/llm/anthropiclm"
	"ai-plugin-engine/pkg/llm/ollama"
	"ai-plugin-engine/pkg/llm/openailm"
)

type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model)
	case "openai":
		return openailm.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "anthropic":
		return anthropiclm.NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
