package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

var searchCmd = &cobra.Command{
	Use:   "search [symptoms]",
	Short: "Search the disease index without drafting a diagnosis",
	Long:  `Embeds the query, runs the weighted hybrid search and reranks the hits, printing the candidate diseases.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", diagnosis.DefaultTopK, "maximum number of candidates")
	searchCmd.Flags().Bool("graph", false, "include knowledge graph facts for each candidate")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")

	limit, _ := cmd.Flags().GetInt("limit")
	withGraph, _ := cmd.Flags().GetBool("graph")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.index.Count() == 0 {
		fmt.Println("Vector index is empty. Run `diagrag ingest` first.")
		return nil
	}

	candidates, err := rt.retriever.Candidates(ctx, query, limit)
	if errors.Is(err, diagnosis.ErrNoCandidates) {
		fmt.Println("No results found.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	facts := map[string]string{}
	if withGraph {
		for _, c := range candidates {
			block, err := rt.graph.Lookup(ctx, c.Name)
			if err != nil {
				return fmt.Errorf("graph lookup for %s: %w", c.Name, err)
			}
			if block != "" {
				facts[c.Name] = block
			}
		}
	}

	if jsonOutput {
		return printCandidatesJSON(candidates, facts)
	}
	printCandidatesTable(candidates, facts)
	return nil
}

type candidateJSON struct {
	Rank int `json:"rank"`
	diagnosis.Candidate
	Graph string `json:"graph,omitempty"`
}

func printCandidatesJSON(candidates []diagnosis.Candidate, facts map[string]string) error {
	out := make([]candidateJSON, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, candidateJSON{Rank: i + 1, Candidate: c, Graph: facts[c.Name]})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printCandidatesTable(candidates []diagnosis.Candidate, facts map[string]string) {
	fmt.Printf("Found %d candidates:\n\n", len(candidates))
	for i, c := range candidates {
		score := fmt.Sprintf("%.1f%%", c.SimilarityScore*100)
		if c.RelevanceScore != nil {
			score += fmt.Sprintf(", relevance %.3f", *c.RelevanceScore)
		}
		fmt.Printf("  %d. %s [%s]\n", i+1, c.Name, score)
		if len(c.Symptoms) > 0 {
			fmt.Printf("     Symptoms: %s\n", strings.Join(c.Symptoms, ", "))
		}
		fmt.Printf("     %s\n", truncate(c.Description, 120))
		if block, ok := facts[c.Name]; ok {
			fmt.Printf("     %s\n", strings.ReplaceAll(block, "\n", "\n     "))
		}
		fmt.Println()
	}
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
