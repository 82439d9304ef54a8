package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	callsLimit   int
	callsPrompts bool
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List recorded LLM calls",
	Long:  `Lists the audit log of LLM calls made while indexing, most recent first.`,
	Args:  cobra.NoArgs,
	RunE:  runCalls,
}

func init() {
	callsCmd.Flags().IntVarP(&callsLimit, "limit", "n", 20, "maximum records, 0 for all")
	callsCmd.Flags().BoolVar(&callsPrompts, "prompts", false, "include prompts and responses")
	rootCmd.AddCommand(callsCmd)
}

func runCalls(cmd *cobra.Command, _ []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Calls == nil {
		return fmt.Errorf("call log not configured")
	}
	records, err := svc.Calls.List(cmd.Context(), callsLimit)
	if err != nil {
		return fmt.Errorf("failed to list calls: %w", err)
	}
	if !callsPrompts {
		for i := range records {
			records[i].Prompt = ""
			records[i].Response = ""
		}
	}

	return render(cmd, records, func() {
		if len(records) == 0 {
			cmd.Println("No calls recorded.")
			return
		}
		for _, r := range records {
			status := styles.Success.Render(string(r.Status))
			if r.Status != domain.CallStatusOK {
				status = styles.Error.Render(string(r.Status))
			}
			cmd.Printf("%s %-16s %-8s %s attempts=%d tokens=%d %s\n",
				styles.Muted.Render(r.StartedAt.Local().Format("2006-01-02 15:04:05")),
				r.Operation, status, r.Model, r.Attempts, r.Usage.TotalTokens, r.Duration.Round(1e6))
			if r.Error != "" {
				cmd.Println("    " + styles.Muted.Render(r.Error))
			}
			if callsPrompts {
				cmd.Println(styles.Label.Render("  prompt:"))
				cmd.Println(r.Prompt)
				cmd.Println(styles.Label.Render("  response:"))
				cmd.Println(r.Response)
			}
		}
	})
}
