package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/logger"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 300 * time.Millisecond

var (
	indexWatch bool
	indexTitle string
	indexID    string
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Build and store the summary tree of files",
	Long: `Splits each file into passages, summarises them level by level into a single
root, embeds every node and stores the tree. Markdown, HTML, WebVTT and SRT
transcripts and .docx files are converted to text first; any other file must be
UTF-8 text.

Files whose content is already indexed are skipped. Re-indexing a changed file
replaces its previous tree once the new one is built. With --watch, files are
re-indexed whenever they change until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect indexed documents",
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentTreeCmd = &cobra.Command{
	Use:   "tree <document-id>",
	Short: "Print a document's summary tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentTree,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "re-index files when they change")
	indexCmd.Flags().StringVar(&indexTitle, "title", "", "document title (default: file name)")
	indexCmd.Flags().StringVar(&indexID, "id", "", "document ID (default: absolute path; single file only)")
	rootCmd.AddCommand(indexCmd)

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentTreeCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

// readDocument loads and normalises a file. The absolute path is the default
// ID, so re-indexing the same file replaces its tree.
func readDocument(ctx context.Context, path, id, title string) (*domain.Document, error) {
	if app.Normalisers == nil {
		return nil, errors.New("normalisers not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = abs
	}

	doc, err := app.Normalisers.Normalise(ctx, &domain.RawDocument{
		ID:       id,
		Path:     path,
		Content:  data,
		Metadata: map[string]any{"path": abs},
	})
	if err != nil {
		return nil, err
	}
	if title != "" {
		doc.Title = title
	}
	return doc, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Documents == nil {
		return unavailable("indexing")
	}
	if indexID != "" && len(args) > 1 {
		return errors.New("--id needs exactly one file")
	}

	ctx := cmd.Context()
	for _, path := range args {
		if err := indexFile(ctx, cmd, path); err != nil {
			return err
		}
	}
	if !indexWatch {
		return nil
	}
	return watchFiles(ctx, args, func(path string) {
		if err := indexFile(ctx, cmd, path); err != nil {
			logger.Warnw("re-index failed", "file", path, "error", err)
		}
	})
}

func indexFile(ctx context.Context, cmd *cobra.Command, path string) error {
	doc, err := readDocument(ctx, path, indexID, indexTitle)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	res, err := app.Documents.Ingest(ctx, doc)
	if err != nil {
		return fmt.Errorf("index %s: %w", path, err)
	}

	return render(cmd, res, func() {
		switch {
		case res.Skipped:
			cmd.Printf("%s %s (unchanged, %d nodes)\n", styles.Muted.Render("skipped"), path, res.NodeCount)
		default:
			verb := "indexed"
			if res.Replaced {
				verb = "re-indexed"
			}
			cmd.Printf("%s %s: %d nodes, depth %d, levels %v, %d tokens\n",
				styles.Success.Render(verb), path, res.NodeCount, len(res.LevelCounts)-1,
				res.LevelCounts, res.Usage.TotalTokens)
		}
	})
}

// watchFiles calls onChange, debounced, each time a watched file is written.
// Parent directories are watched so editors that replace files on save are
// still seen.
func watchFiles(ctx context.Context, paths []string, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]string)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = p
		dir := filepath.Dir(abs)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	logger.Info("watching %d file(s), press Ctrl+C to stop", len(paths))

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			orig, ok := watched[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			if t, ok := timers[orig]; ok {
				t.Stop()
			}
			timers[orig] = time.AfterFunc(watchDebounce, func() { onChange(orig) })
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("watch error", "error", err)
		}
	}
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Documents == nil {
		return unavailable("documents")
	}
	docs, err := svc.Documents.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	return render(cmd, docs, func() {
		if len(docs) == 0 {
			cmd.Println("No documents indexed.")
			return
		}
		for _, d := range docs {
			cmd.Printf("%s  %s  %s\n", styles.Label.Render(d.Title), styles.Muted.Render(string(d.Type)), d.ID)
		}
	})
}

func runDocumentTree(cmd *cobra.Command, args []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Documents == nil {
		return unavailable("documents")
	}
	nodes, err := svc.Documents.Nodes(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get tree: %w", err)
	}

	return render(cmd, nodes, func() {
		byID := make(map[string]domain.Node, len(nodes))
		var root *domain.Node
		for i := range nodes {
			byID[nodes[i].ID] = nodes[i]
			if nodes[i].ParentID == nil {
				root = &nodes[i]
			}
		}
		if root == nil {
			cmd.Println("Tree has no root.")
			return
		}
		printNode(cmd, byID, *root, 0)
	})
}

func printNode(cmd *cobra.Command, byID map[string]domain.Node, n domain.Node, indent int) {
	label := fmt.Sprintf("[d%d #%d]", n.Depth, n.Index)
	cmd.Printf("%s%s %s\n", strings.Repeat("  ", indent), styles.Muted.Render(label), preview(n.Content, 80))
	for _, id := range n.ChildIDs {
		if child, ok := byID[id]; ok {
			printNode(cmd, byID, child, indent+1)
		}
	}
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Documents == nil {
		return unavailable("documents")
	}
	if err := svc.Documents.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}
