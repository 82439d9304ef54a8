package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <file>",
	Short: "Estimate the LLM cost of indexing a file",
	Long: `Simulates an index build without calling the model. Reports the expected
number of calls and tokens per level and how many times the document's own
token count the build would consume.`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Documents == nil {
		return unavailable("estimation")
	}

	doc, err := readDocument(cmd.Context(), args[0], "", "")
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	est, err := svc.Documents.Estimate(cmd.Context(), doc)
	if err != nil {
		return fmt.Errorf("estimate failed: %w", err)
	}

	return render(cmd, est, func() {
		cmd.Println(styles.Title.Render("Estimate for " + doc.Title))
		cmd.Printf("  %s %d\n", styles.Label.Render("Document tokens:"), est.DocumentTokens)
		cmd.Printf("  %s %d\n", styles.Label.Render("Max group size: "), est.MaxGroupSize)
		cmd.Println()
		cmd.Printf("  %-6s %8s %8s %10s\n", "depth", "nodes", "calls", "tokens")
		for _, l := range est.Levels {
			cmd.Printf("  %-6d %8d %8d %10d\n", l.Depth, l.NodeCount, l.Calls, l.Tokens)
		}
		if est.ContextCalls > 0 {
			cmd.Printf("  %-6s %8s %8d %10d\n", "ctx", "", est.ContextCalls, est.ContextTokens)
		}
		cmd.Println()
		cmd.Printf("  %s %d calls, %d tokens (%s)\n", styles.Label.Render("Total:"),
			est.TotalCalls, est.EstimatedTokens, styles.Score.Render(fmt.Sprintf("%.2fx", est.CostMultiplier)))
	})
}
