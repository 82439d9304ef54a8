package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var settingsValidate bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings. Settings are stored in ~/.recall/config.toml
under dotted keys such as retrieval.metric or index.summary_tokens.

API keys fall back to OPENAI_API_KEY, ANTHROPIC_API_KEY and RERANK_API_KEY,
which may also be set in a .env file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:       "set-key <embedding|llm|rerank>",
	Short:     "Store an API key, read without echo",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"embedding", "llm", "rerank"},
	RunE:      runSettingsSetKey,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding <provider> [model]",
	Short: "Configure the embedding provider",
	Long:  `Configure the embedding provider: ollama or openai.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm <provider> [model]",
	Short: "Configure the LLM provider",
	Long:  `Configure the summarisation LLM provider: ollama, openai or anthropic.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSettingsLLM,
}

func init() {
	for _, c := range []*cobra.Command{settingsEmbeddingCmd, settingsLLMCmd} {
		c.Flags().BoolVar(&settingsValidate, "validate", true, "ping the provider after saving")
	}
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsServiceOrErr() (*Services, error) {
	svc, err := loadedServices()
	if err != nil {
		return nil, err
	}
	if svc.Settings == nil {
		return nil, errors.New("settings service not configured")
	}
	return svc, nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	svc, err := settingsServiceOrErr()
	if err != nil {
		return err
	}
	settings, err := svc.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	keys := svc.Settings.Keys()
	values := make(map[string]any, len(keys))
	for _, key := range keys {
		v, err := svc.Settings.Value(settings, key)
		if err != nil {
			return err
		}
		values[key] = v
	}

	return render(cmd, values, func() {
		section := ""
		for _, key := range keys {
			group, name, _ := strings.Cut(key, ".")
			if group != section {
				if section != "" {
					cmd.Println()
				}
				cmd.Println(styles.Title.Render("[" + group + "]"))
				section = group
			}
			v := values[key]
			if s, ok := v.(string); ok && s == "" {
				v = styles.Muted.Render("(not set)")
			}
			cmd.Printf("  %-22s %v\n", name, v)
		}
		cmd.Println()
		cmd.Printf("Embedding: %s   LLM: %s   Rerank: %s\n",
			status(settings.Embedding.IsConfigured()),
			status(settings.LLM.IsConfigured()),
			status(settings.Rerank.IsConfigured()))
	})
}

func status(ok bool) string {
	if ok {
		return styles.Success.Render("configured")
	}
	return styles.Warning.Render("not configured")
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	svc, err := settingsServiceOrErr()
	if err != nil {
		return err
	}
	if err := svc.Settings.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	svc, err := settingsServiceOrErr()
	if err != nil {
		return err
	}
	target := args[0]
	switch target {
	case "embedding", "llm", "rerank":
	default:
		return fmt.Errorf("unknown key target %q (want embedding, llm or rerank)", target)
	}

	cmd.Printf("Enter %s API key: ", target)
	key := readSecret(cmd.InOrStdin())
	cmd.Println()
	if key == "" {
		return errors.New("no key entered")
	}
	if err := svc.Settings.Set(target+".api_key", key); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	cmd.Printf("Stored %s API key\n", target)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, args []string) error {
	return configureProvider(cmd, args, "embedding")
}

func runSettingsLLM(cmd *cobra.Command, args []string) error {
	return configureProvider(cmd, args, "llm")
}

func configureProvider(cmd *cobra.Command, args []string, kind string) error {
	svc, err := settingsServiceOrErr()
	if err != nil {
		return err
	}
	provider := domain.AIProvider(args[0])
	model := ""
	if len(args) > 1 {
		model = args[1]
	}

	apiKey := ""
	if provider.RequiresAPIKey() && isTerminal(cmd.InOrStdin()) {
		cmd.Print("Enter API key (blank to use the environment): ")
		apiKey = readSecret(cmd.InOrStdin())
		cmd.Println()
	}

	set, check := svc.Settings.SetEmbeddingProvider, svc.Settings.ValidateEmbeddingConfig
	if kind == "llm" {
		set, check = svc.Settings.SetLLMProvider, svc.Settings.ValidateLLMConfig
	}
	if err := set(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", kind, err)
	}

	if settingsValidate {
		cmd.Print("Validating configuration... ")
		if err := check(); err != nil {
			cmd.Println(styles.Error.Render("FAILED"))
			return fmt.Errorf("%s configuration validation failed: %w", kind, err)
		}
		cmd.Println(styles.Success.Render("OK"))
	}
	cmd.Printf("%s provider configured: %s\n", kind, provider.Description())
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readSecret reads one line without echo when r is a terminal.
//
//nolint:errcheck // CLI helper, an unreadable line is an empty key.
func readSecret(r io.Reader) string {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	line, _ := bufio.NewReader(r).ReadString('\n')
	return strings.TrimSpace(line)
}
