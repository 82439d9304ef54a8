package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Split a file into passages",
	Long: `Runs segmentation only, using the segmenter settings, and prints the
passages that would become the leaves of the tree.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)
}

// splitChunk is one passage in split output.
type splitChunk struct {
	Index   int    `json:"index" yaml:"index"`
	Tokens  int    `json:"tokens" yaml:"tokens"`
	Content string `json:"content" yaml:"content"`
}

func runSplit(cmd *cobra.Command, args []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Splitter == nil {
		return fmt.Errorf("segmenter not configured")
	}

	doc, err := readDocument(cmd.Context(), args[0], "", "")
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	leaves, err := svc.Splitter.Process(cmd.Context(), doc)
	if err != nil {
		return fmt.Errorf("split failed: %w", err)
	}

	chunks := make([]splitChunk, len(leaves))
	for i, n := range leaves {
		chunks[i] = splitChunk{Index: n.Index, Content: n.Content}
		if svc.Tokens != nil {
			chunks[i].Tokens = svc.Tokens.Count(n.Content)
		}
	}

	return render(cmd, chunks, func() {
		for _, c := range chunks {
			cmd.Println(styles.Title.Render(fmt.Sprintf("--- %d (%d tokens) ---", c.Index, c.Tokens)))
			cmd.Println(c.Content)
		}
		cmd.Println(styles.Muted.Render(fmt.Sprintf("%d passages", len(chunks))))
	})
}
