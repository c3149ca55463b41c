package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [symptoms]",
	Short: "Run a diagnostic session for a symptom description",
	Long: `Retrieves candidate diseases, drafts a diagnosis and has it reviewed by
the expert model, retrying with the expert's feedback up to max_retries
times.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().String("model", "", "configured model to draft with (default: default_model)")
	diagnoseCmd.Flags().String("disease-list", "", "file restricting the diseases the diagnosis may name")
	diagnoseCmd.Flags().Bool("json", false, "output the full session as JSON")
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	symptoms := strings.TrimSpace(strings.Join(args, " "))
	if symptoms == "" {
		return fmt.Errorf("symptoms must not be empty")
	}

	model, _ := cmd.Flags().GetString("model")
	listFile, _ := cmd.Flags().GetString("disease-list")
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

	opts := diagnosis.SessionOptions{Model: model}
	if listFile != "" {
		names, err := diagnosis.FileAllowlist{Path: listFile}.Diseases()
		if err != nil {
			return err
		}
		opts.Allowlist = names
	}

	res := rt.engine.Run(ctx, symptoms, opts)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(res.Diagnosis)
	fmt.Fprintf(os.Stderr, "\nsession %s: %s, %d rejection(s), %s\n",
		res.SessionID, res.Outcome, res.Rejections, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	if res.Outcome == diagnosis.OutcomeFatal {
		cmd.SilenceUsage = true
		return fmt.Errorf("session %s failed", res.SessionID)
	}
	return nil
}
