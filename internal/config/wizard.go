package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// presetNames returns the wizard's model choices in a stable order.
func presetNames() []string {
	names := make([]string, 0, len(modelPresets))
	for n := range modelPresets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to diagrag! Let's configure the diagnostic pipeline.")
	fmt.Println()

	names := presetNames()

	// 1. Drafting model.
	draftPrompt := promptui.Select{
		Label: "Select the drafting model",
		Items: names,
	}
	_, draftModel, err := draftPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model selection: %w", err)
	}

	// 2. Review model.
	reviewPrompt := promptui.Select{
		Label: "Select the expert review model",
		Items: names,
	}
	_, reviewModel, err := reviewPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("review model selection: %w", err)
	}

	// 3. Embeddings.
	embedPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{string(ProviderOpenAI), string(ProviderOllama)},
	}
	_, embedProvider, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}

	// 4. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory for the index and database",
		Default: ".diagrag",
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 5. Retries.
	retriesPrompt := promptui.Prompt{
		Label:   "Maximum reviewed attempts",
		Default: "3",
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 1 || n > 10 {
				return fmt.Errorf("enter a number between 1 and 10")
			}
			return nil
		},
	}
	retriesStr, err := retriesPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("max retries: %w", err)
	}
	retries, _ := strconv.Atoi(strings.TrimSpace(retriesStr))

	// 6. Optional disease allowlist.
	listPrompt := promptui.Prompt{
		Label:   "Disease list file (leave blank for none)",
		Default: "",
	}
	listFile, err := listPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("disease list: %w", err)
	}

	cfg := buildConfig(draftModel, reviewModel, ProviderType(embedProvider), dataDir, retries, strings.TrimSpace(listFile))

	// Check for API keys.
	for _, name := range []string{draftModel, reviewModel} {
		if envVar := APIKeyEnvVar(cfg.Models[name]); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running diagrag diagnose.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// buildConfig assembles the wizard answers on top of the defaults.
func buildConfig(draftModel, reviewModel string, embed ProviderType, dataDir string, retries int, listFile string) *Config {
	cfg := DefaultConfig()
	cfg.Models = map[string]ModelConfig{
		draftModel:  modelPresets[draftModel],
		reviewModel: modelPresets[reviewModel],
	}
	cfg.DefaultModel = draftModel
	cfg.ReviewModel = reviewModel
	cfg.EmbeddingProvider = embed
	if embed == ProviderOllama {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if retries > 0 {
		cfg.MaxRetries = retries
	}
	cfg.DiseaseListFile = listFile
	return cfg
}
