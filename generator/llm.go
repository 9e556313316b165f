package generator

import (
	"context"
	"fmt"
)

// PerplexityBaseURL is the OpenAI-compatible Perplexity endpoint.
const PerplexityBaseURL = "https://api.perplexity.ai"

// LLMClient abstracts the text-generation service.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings configures a concrete client.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewLLM picks a client for settings.Provider.
func NewLLM(settings LLMSettings) (LLMClient, error) {
	switch settings.Provider {
	case "mock":
		return MockLLM{}, nil
	case "perplexity", "":
		if settings.BaseURL == "" {
			settings.BaseURL = PerplexityBaseURL
		}
		return NewOpenAILLM(settings)
	case "openai":
		return NewOpenAILLM(settings)
	case "deepseek":
		// DeepSeek speaks the OpenAI protocol but has no default endpoint here.
		if settings.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return NewOpenAILLM(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", settings.Provider)
	}
}
