package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/ziadkadry99/diagrag/internal/audit"
	"github.com/ziadkadry99/diagrag/internal/config"
	"github.com/ziadkadry99/diagrag/internal/db"
	"github.com/ziadkadry99/diagrag/internal/diagnosis"
	"github.com/ziadkadry99/diagrag/internal/embeddings"
	"github.com/ziadkadry99/diagrag/internal/graph"
	"github.com/ziadkadry99/diagrag/internal/llm"
	"github.com/ziadkadry99/diagrag/internal/rerank"
	"github.com/ziadkadry99/diagrag/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `diagrag init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
// Ingestion and querying must use the same embedder.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		keyEnv := cfg.EmbeddingAPIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		apiKey := os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is required for OpenAI embeddings", keyEnv)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel), cfg.EmbeddingBaseURL, cfg.EmbeddingDimensions), nil
	case config.ProviderOllama:
		dims := cfg.EmbeddingDimensions
		if dims == 0 {
			dims = 768
		}
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, dims, cfg.EmbeddingBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}

// createRegistryFromConfig builds one provider per configured model. Models
// whose provider cannot be created are skipped with a warning, except the
// default and review models.
func createRegistryFromConfig(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry(cfg.DefaultModel)

	names := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := cfg.Models[name]
		p, err := llm.NewProvider(llm.ProviderSpec{
			Type:      string(m.Provider),
			Model:     m.Model,
			BaseURL:   m.BaseURL,
			APIKeyEnv: config.APIKeyEnvVar(m),
			RPM:       m.RPM,
		})
		if err != nil {
			if name == cfg.DefaultModel || name == cfg.ReviewModel {
				return nil, fmt.Errorf("creating model %s: %w", name, err)
			}
			fmt.Fprintf(os.Stderr, "Warning: model %s unavailable: %v\n", name, err)
			continue
		}
		reg.Register(name, p, m.Model)
	}
	return reg, nil
}

// createRerankerFromConfig returns nil when reranking is disabled or its key
// is missing; retrieval then keeps vector order.
func createRerankerFromConfig(cfg *config.Config) diagnosis.Reranker {
	if cfg.Rerank.URL == "" {
		return nil
	}
	apiKey := ""
	if cfg.Rerank.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.Rerank.APIKeyEnv)
		if apiKey == "" {
			fmt.Fprintf(os.Stderr, "Warning: %s is not set, reranking disabled\n", cfg.Rerank.APIKeyEnv)
			return nil
		}
	}
	return rerank.NewClient(cfg.Rerank.URL, cfg.Rerank.Model, apiKey)
}

// openDatabase opens the SQLite database under the data directory.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// runtime bundles everything a diagnostic command needs.
type runtime struct {
	cfg       *config.Config
	db        *db.DB
	graph     *graph.Store
	sessions  *audit.Store
	index     *vectordb.ChromemIndex
	retriever *diagnosis.Retriever
	engine    *diagnosis.Engine
}

// newRuntime wires config, providers, stores and the engine. The caller must
// call close.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if err := index.Load(ctx, cfg.IndexDir()); err != nil {
		// Continue with an empty index; sessions then report no results.
		fmt.Fprintf(os.Stderr, "Warning: could not load vector index from %s: %v\n", cfg.IndexDir(), err)
		fmt.Fprintf(os.Stderr, "Run `diagrag ingest` first.\n")
	}

	models, err := createRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		db:       database,
		graph:    graph.NewStore(database),
		sessions: audit.NewStore(database),
		index:    index,
	}

	rt.retriever = &diagnosis.Retriever{
		Embedder:   embedder,
		Index:      index,
		Reranker:   createRerankerFromConfig(cfg),
		Graph:      rt.graph,
		Weights:    vectordb.Weights{Symptom: cfg.SymptomWeight, Description: cfg.DescriptionWeight},
		RerankTopK: cfg.Rerank.TopK,
	}

	var allowlist diagnosis.AllowlistSource
	if cfg.DiseaseListFile != "" {
		allowlist = diagnosis.FileAllowlist{Path: cfg.DiseaseListFile}
	}

	rt.engine = diagnosis.NewEngine(diagnosis.Options{
		Retriever:   rt.retriever,
		Models:      models,
		ReviewModel: cfg.ReviewModel,
		TopK:        cfg.TopK,
		MaxRetries:  cfg.MaxRetries,
		Allowlist:   allowlist,
		Recorder:    rt.sessions,
	})

	log.Printf("diagrag: %d diseases indexed, models: %v", index.Count(), models.Names())
	return rt, nil
}

func (rt *runtime) close() {
	if err := rt.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing database: %v\n", err)
	}
}
