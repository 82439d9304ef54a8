package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	memoryImportance int
	memoryMeta       []string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Record and list agent memories",
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Record an observation",
	Long: `Embeds the text and stores it as a memory with the given importance,
from 0 (mundane) to 9 (poignant). Metadata pairs can be used as search filters.`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoryAdd,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories, newest first",
	Args:  cobra.NoArgs,
	RunE:  runMemoryList,
}

func init() {
	memoryAddCmd.Flags().IntVarP(&memoryImportance, "importance", "i", 0, "importance from 0 to 9")
	memoryAddCmd.Flags().StringArrayVar(&memoryMeta, "meta", nil, "metadata key=value, repeatable")
	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryListCmd)
	rootCmd.AddCommand(memoryCmd)
}

func runMemoryAdd(cmd *cobra.Command, args []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Memories == nil {
		return unavailable("memories")
	}

	meta := make(map[string]any, len(memoryMeta))
	for _, kv := range memoryMeta {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid metadata %q, want key=value", kv)
		}
		meta[k] = parseFilterValue(v)
	}

	m, err := svc.Memories.Add(cmd.Context(), args[0], memoryImportance, meta)
	if err != nil {
		return fmt.Errorf("failed to add memory: %w", err)
	}
	m.Embedding = nil

	return render(cmd, m, func() {
		cmd.Printf("%s %s (importance %d)\n", styles.Success.Render("added"), m.ID, m.Importance)
	})
}

func runMemoryList(cmd *cobra.Command, _ []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Memories == nil {
		return unavailable("memories")
	}
	memories, err := svc.Memories.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list memories: %w", err)
	}
	for i := range memories {
		memories[i].Embedding = nil
	}

	return render(cmd, memories, func() {
		if len(memories) == 0 {
			cmd.Println("No memories recorded.")
			return
		}
		for _, m := range memories {
			cmd.Printf("%s %s %s\n",
				styles.Muted.Render(m.Timestamp.Local().Format("2006-01-02 15:04")),
				styles.Score.Render(fmt.Sprintf("[%d]", m.Importance)),
				preview(m.Content, 100))
		}
	})
}
