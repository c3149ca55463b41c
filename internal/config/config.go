package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: DIAGRAG_RERANK__URL sets rerank.url.
const EnvPrefix = "DIAGRAG_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DIAGRAG_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: DIAGRAG_TOP_K -> top_k, etc.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	for name, m := range c.Models {
		if !validProviders[m.Provider] {
			return fmt.Errorf("model %s: invalid provider %q: must be one of openai, ollama", name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("model %s: model is required", name)
		}
		if m.RPM < 0 {
			return fmt.Errorf("model %s: rpm must be non-negative", name)
		}
	}

	if c.DefaultModel == "" {
		return fmt.Errorf("default_model is required")
	}
	if _, ok := c.Models[c.DefaultModel]; !ok {
		return fmt.Errorf("default_model %q is not defined in models", c.DefaultModel)
	}
	if c.ReviewModel != "" {
		if _, ok := c.Models[c.ReviewModel]; !ok {
			return fmt.Errorf("review_model %q is not defined in models", c.ReviewModel)
		}
	}

	if !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("embedding_dimensions must be non-negative")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	if c.Rerank.TopK < 0 {
		return fmt.Errorf("rerank.top_k must be non-negative")
	}
	if c.SymptomWeight < 0 || c.DescriptionWeight < 0 || c.SymptomWeight+c.DescriptionWeight == 0 {
		return fmt.Errorf("symptom_weight and description_weight must be non-negative and not both zero")
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be between 1 and 10")
	}

	return nil
}

// APIKeyEnvVar returns the environment variable holding the API key for a
// model, falling back to the provider's conventional variable.
func APIKeyEnvVar(m ModelConfig) string {
	if m.APIKeyEnv != "" {
		return m.APIKeyEnv
	}
	if m.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return ""
}
