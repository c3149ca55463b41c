package config

// ProviderType identifies a generation or embedding backend.
type ProviderType string

const (
	// ProviderOpenAI covers every OpenAI-compatible endpoint (OpenAI,
	// DeepSeek, SiliconFlow) selected by base_url.
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// ModelConfig describes one selectable generation model.
type ModelConfig struct {
	Provider  ProviderType `yaml:"provider" koanf:"provider"`
	Model     string       `yaml:"model" koanf:"model"`
	BaseURL   string       `yaml:"base_url,omitempty" koanf:"base_url"`
	APIKeyEnv string       `yaml:"api_key_env,omitempty" koanf:"api_key_env"`
	RPM       int          `yaml:"rpm,omitempty" koanf:"rpm"`
}

// RerankConfig configures the rerank endpoint. An empty URL disables
// reranking.
type RerankConfig struct {
	URL       string `yaml:"url" koanf:"url"`
	Model     string `yaml:"model" koanf:"model"`
	APIKeyEnv string `yaml:"api_key_env" koanf:"api_key_env"`
	TopK      int    `yaml:"top_k" koanf:"top_k"`
}

// Config is the top-level diagrag configuration, corresponding to .diagrag.yml.
type Config struct {
	DefaultModel        string                 `yaml:"default_model" koanf:"default_model"`
	ReviewModel         string                 `yaml:"review_model" koanf:"review_model"`
	Models              map[string]ModelConfig `yaml:"models" koanf:"models"`
	EmbeddingProvider   ProviderType           `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string                 `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingBaseURL    string                 `yaml:"embedding_base_url,omitempty" koanf:"embedding_base_url"`
	EmbeddingAPIKeyEnv  string                 `yaml:"embedding_api_key_env,omitempty" koanf:"embedding_api_key_env"`
	EmbeddingDimensions int                    `yaml:"embedding_dimensions,omitempty" koanf:"embedding_dimensions"`
	Rerank              RerankConfig           `yaml:"rerank" koanf:"rerank"`
	DataDir             string                 `yaml:"data_dir" koanf:"data_dir"`
	TopK                int                    `yaml:"top_k" koanf:"top_k"`
	SymptomWeight       float64                `yaml:"symptom_weight" koanf:"symptom_weight"`
	DescriptionWeight   float64                `yaml:"description_weight" koanf:"description_weight"`
	MaxRetries          int                    `yaml:"max_retries" koanf:"max_retries"`
	DiseaseListFile     string                 `yaml:"disease_list_file,omitempty" koanf:"disease_list_file"`
}
