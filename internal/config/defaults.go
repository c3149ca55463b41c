package config

import (
	"path/filepath"

	"github.com/ziadkadry99/diagrag/internal/rerank"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".diagrag.yml"

// modelPresets are the models offered by the init wizard, keyed by the name
// used in default_model and review_model.
var modelPresets = map[string]ModelConfig{
	"deepseek": {
		Provider:  ProviderOpenAI,
		Model:     "deepseek-chat",
		BaseURL:   "https://api.deepseek.com/v1",
		APIKeyEnv: "DEEPSEEK_API_KEY",
	},
	"deepseek-r1": {
		Provider:  ProviderOpenAI,
		Model:     "deepseek-reasoner",
		BaseURL:   "https://api.deepseek.com/v1",
		APIKeyEnv: "DEEPSEEK_API_KEY",
	},
	"qwen": {
		Provider:  ProviderOpenAI,
		Model:     "Qwen/Qwen3-32B",
		BaseURL:   "https://api.siliconflow.cn/v1",
		APIKeyEnv: "SILICONFLOW_API_KEY",
	},
	"gpt-4o": {
		Provider:  ProviderOpenAI,
		Model:     "gpt-4o",
		APIKeyEnv: "OPENAI_API_KEY",
	},
	"llama3": {
		Provider: ProviderOllama,
		Model:    "llama3",
	},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultModel: "deepseek",
		ReviewModel:  "deepseek-r1",
		Models: map[string]ModelConfig{
			"deepseek":    modelPresets["deepseek"],
			"deepseek-r1": modelPresets["deepseek-r1"],
		},
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Rerank: RerankConfig{
			URL:       rerank.DefaultURL,
			Model:     rerank.DefaultModel,
			APIKeyEnv: "SILICONFLOW_API_KEY",
			TopK:      5,
		},
		DataDir:           ".diagrag",
		TopK:              5,
		SymptomWeight:     0.6,
		DescriptionWeight: 0.4,
		MaxRetries:        3,
	}
}

// IndexDir is where the vector index is persisted.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// DBPath is the SQLite database holding the disease graph and session audit.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "diagrag.db")
}
