package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagrag/internal/graph"
	"github.com/ziadkadry99/diagrag/internal/knowledge"
	"github.com/ziadkadry99/diagrag/internal/progress"
	"github.com/ziadkadry99/diagrag/internal/vectordb"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Build the vector index and disease graph from a knowledge-base dump",
	Long: `Reads JSON-lines disease records from a file or directory, embeds each
disease's symptoms and description into the vector index and writes its
cause, departments and complications to the disease graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("pattern", knowledge.DefaultPattern, "glob for dump files when path is a directory")
	ingestCmd.Flags().Int("batch-size", knowledge.DefaultBatchSize, "records embedded per request")
	ingestCmd.Flags().Bool("quiet", false, "suppress progress output")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pattern, _ := cmd.Flags().GetString("pattern")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	quiet, _ := cmd.Flags().GetBool("quiet")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := knowledge.Discover(args[0], pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No files matching %s under %s.\n", pattern, args[0])
		return nil
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	// Re-ingesting adds to an existing index.
	if err := index.Load(ctx, cfg.IndexDir()); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "Starting a new index at %s\n", cfg.IndexDir())
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ingester := &knowledge.Ingester{
		Embedder:  embedder,
		Index:     index,
		Graph:     graph.NewStore(database),
		Reporter:  progress.NewReporter("Ingesting", quiet),
		BatchSize: batchSize,
	}

	stats, err := ingester.IngestFiles(ctx, files)
	if err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}

	if err := index.Persist(ctx, cfg.IndexDir()); err != nil {
		return fmt.Errorf("saving vector index: %w", err)
	}

	fmt.Printf("Ingested %d files in %s\n", stats.Files, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Records:  %d (skipped %d)\n", stats.Records, stats.Skipped)
	fmt.Printf("  Indexed:  %d (total %d)\n", stats.Indexed, index.Count())
	fmt.Printf("  Graphed:  %d\n", stats.Graphed)
	if len(stats.FailedID) > 0 {
		fmt.Printf("  Symptom embedding failed for %d records: %s\n", len(stats.FailedID), strings.Join(stats.FailedID, ", "))
	}
	return nil
}
