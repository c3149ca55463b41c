package llm

import (
	"fmt"
	"os"
)

// ProviderSpec describes how to reach one generation backend.
type ProviderSpec struct {
	// Type is "openai" (any OpenAI-compatible API) or "ollama".
	Type    string
	Model   string
	BaseURL string
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
	// RPM caps requests per minute when positive.
	RPM int
}

// NewProvider creates a new LLM provider from the given spec.
func NewProvider(spec ProviderSpec) (Provider, error) {
	var p Provider

	switch spec.Type {
	case "openai":
		keyEnv := spec.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		apiKey := os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", keyEnv)
		}
		p = NewOpenAIProvider(apiKey, spec.Model, spec.BaseURL)

	case "ollama":
		host := spec.BaseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		p = NewOllamaProvider(host, spec.Model)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", spec.Type)
	}

	if spec.RPM > 0 {
		p = NewRateLimitedProvider(p, spec.RPM)
	}
	return p, nil
}
