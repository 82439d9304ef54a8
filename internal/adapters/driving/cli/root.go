// Package cli implements the recall command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// annotationNoServices marks commands that run without the bootstrap.
const annotationNoServices = "recall/no-services"

// Services is everything the commands drive. A nil service reports
// Unavailable, or a generic message, when a command needs it.
type Services struct {
	Settings  driving.SettingsService
	Documents driving.DocumentService
	Search    driving.SearchService
	Memories  driving.MemoryService

	// Normalisers turn files into documents.
	Normalisers driven.NormaliserRegistry

	// Splitter runs segmentation alone, for `recall split`.
	Splitter driven.PostProcessorPipeline

	// Tokens counts tokens the way the index builder does.
	Tokens interface{ Count(string) int }

	Calls driven.CallLogStore

	// Unavailable explains why the AI-backed services are nil.
	Unavailable error

	// Close releases storage and provider connections.
	Close func()
}

// Options are the global flags handed to the bootstrap.
type Options struct {
	DataDir string
	Verbose bool
}

// Bootstrap builds the services for one invocation.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	version   = "dev"
	bootstrap Bootstrap
	app       *Services

	verbose      bool
	dataDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Hierarchical summary indexing and memory retrieval",
	Long: `recall splits documents into passages, summarises them into a tree with an
LLM, embeds every node and ranks nodes or agent memories against a query.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		switch outputFormat {
		case outputText, outputJSON, outputYAML:
		default:
			return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
		}
		if app != nil || bootstrap == nil || cmd.Annotations[annotationNoServices] == "true" {
			return nil
		}
		services, err := bootstrap(cmd.Context(), Options{DataDir: dataDir, Verbose: verbose})
		if err != nil {
			return err
		}
		app = services
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.recall)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputText, "output format: text, json or yaml")
}

// Execute runs the command line. It returns the process exit code.
func Execute(v string, boot Bootstrap) int {
	version = v
	bootstrap = boot

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		if app.Search != nil {
			app.Search.Wait()
		}
		if app.Close != nil {
			app.Close()
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.Error.Render("Error: "+err.Error()))
		if hint := providerHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, styles.Muted.Render(hint))
		}
		return 1
	}
	return 0
}

// providerHint explains a missing provider error with how to configure it.
func providerHint(err error) string {
	if app == nil || app.Unavailable == nil {
		return ""
	}
	if errors.Is(err, domain.ErrLLMUnavailable) || errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return app.Unavailable.Error()
	}
	return ""
}

// loadedServices returns the loaded services or an error naming what is missing.
func loadedServices() (*Services, error) {
	if app == nil {
		return nil, errors.New("services not configured")
	}
	return app, nil
}

// unavailable reports why an AI-backed service is missing.
func unavailable(what string) error {
	if app != nil && app.Unavailable != nil {
		return fmt.Errorf("%s unavailable: %w", what, app.Unavailable)
	}
	return fmt.Errorf("%s not configured", what)
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(cmd *cobra.Command, v any, text func()) error {
	return renderTo(cmd.OutOrStdout(), outputFormat, v, text)
}

func renderTo(w io.Writer, format string, v any, text func()) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text()
		return nil
	}
}
