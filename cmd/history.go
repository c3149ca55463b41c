package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagrag/internal/audit"
	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List or show recorded diagnostic sessions",
	Long: `Without arguments, lists recent sessions newest first. With a session ID,
prints the full session including every attempt. --prune deletes sessions
older than the given age.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	historyCmd.Flags().String("outcome", "", "filter by outcome: accepted, exhausted, fatal")
	historyCmd.Flags().String("model", "", "filter by drafting model")
	historyCmd.Flags().Duration("since", 0, "only sessions started within this duration (e.g. 24h)")
	historyCmd.Flags().Duration("prune", 0, "delete sessions older than this duration (e.g. 720h)")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	limit, _ := cmd.Flags().GetInt("limit")
	outcome, _ := cmd.Flags().GetString("outcome")
	model, _ := cmd.Flags().GetString("model")
	since, _ := cmd.Flags().GetDuration("since")
	prune, _ := cmd.Flags().GetDuration("prune")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	store := audit.NewStore(database)

	if prune > 0 {
		n, err := store.DeleteBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			return fmt.Errorf("pruning sessions: %w", err)
		}
		fmt.Printf("Deleted %d session(s) older than %s.\n", n, prune)
		return nil
	}

	if len(args) == 1 {
		res, err := store.Get(ctx, args[0])
		if errors.Is(err, audit.ErrNotFound) {
			return fmt.Errorf("session %s not found", args[0])
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeIndentedJSON(res)
		}
		printSession(res)
		return nil
	}

	filter := audit.QueryFilter{
		Outcome: diagnosis.Outcome(outcome),
		Model:   model,
		Limit:   limit,
	}
	if since > 0 {
		t := time.Now().Add(-since)
		filter.Since = &t
	}

	sessions, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeIndentedJSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tMODEL\tOUTCOME\tREJECTIONS\tDURATION\tSYMPTOMS")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.Model, s.Outcome,
			s.Rejections, s.Duration().Round(time.Millisecond), truncate(s.Symptoms, 30))
	}
	return w.Flush()
}

func printSession(res *diagnosis.Result) {
	fmt.Printf("Session:  %s\n", res.SessionID)
	fmt.Printf("Started:  %s\n", res.StartedAt.Local().Format(time.RFC3339))
	fmt.Printf("Model:    %s\n", res.Model)
	fmt.Printf("Outcome:  %s (%d rejection(s))\n", res.Outcome, res.Rejections)
	fmt.Printf("Symptoms: %s\n", res.Query)

	if res.Bundle != nil {
		fmt.Printf("\nCandidates:\n")
		for i, c := range res.Bundle.VectorResults {
			fmt.Printf("  %d. %s (%.3f)\n", i+1, c.Name, c.SimilarityScore)
		}
	}

	for _, a := range res.Attempts {
		fmt.Printf("\n--- Attempt %d: %s ---\n", a.Index+1, a.Verdict)
		if a.Err != "" {
			fmt.Printf("Error: %s\n", a.Err)
		}
		if a.Draft != "" {
			fmt.Println(a.Draft)
		}
		if a.Feedback != nil {
			fmt.Printf("Feedback: %v\n%s\n", a.Feedback.RecommendedDiseases, a.Feedback.Reason)
		}
	}

	fmt.Printf("\n=== Final diagnosis ===\n%s\n", res.Diagnosis)
}

func writeIndentedJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
