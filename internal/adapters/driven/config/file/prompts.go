package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// template is a built-in prompt and the verbs an override must keep.
type template struct {
	text  string
	verbs []string
}

//nolint:lll // prompt text
var builtins = map[string]template{
	driven.PromptSummarise: {
		verbs: []string{"%[1]d", "%[2]s"},
		text: `Summarise the following passages in at most %[1]d tokens.
Keep names, numbers, decisions and the order of events. Do not add information that is not in the passages.
Return ONLY the summary.

Passages:
%[2]s

Summary:`,
	},
	driven.PromptSummariseWithContext: {
		verbs: []string{"%[1]d", "%[2]s", "%[3]s"},
		text: `You are reading a long document one passage at a time.
Here is a running summary of everything before the current passage:
%[2]s

Update the running summary so it also covers the current passage, in at most %[1]d tokens.
Return ONLY the updated summary.

Current passage:
%[3]s

Updated summary:`,
	},
}

// defaultPrompts exposes the built-in text by name.
var defaultPrompts = func() map[string]string {
	m := make(map[string]string, len(builtins))
	for name, t := range builtins {
		m[name] = t.text
	}
	return m
}()

const promptsReadme = "# recall prompts\n\n" +
	"These templates drive the summaries written while building an index.\n\n" +
	"- `summarise.txt` condenses a group of sibling passages into their parent.\n" +
	"- `summarise_with_context.txt` extends the running summary with the next passage.\n\n" +
	"Placeholders: `%[1]d` is the target length in tokens; `%[2]s` is the passages\n" +
	"or the running summary; `%[3]s` is the current passage (with_context only).\n\n" +
	"A file that drops a placeholder is ignored and the built-in prompt is used.\n" +
	"Budgets are measured on the rendered prompt, so a longer template leaves less\n" +
	"room for passages.\n"

// PromptStore serves templates from <dir>/<name>.txt. The directory is seeded
// with the built-ins on first use; existing files are never overwritten.
type PromptStore struct {
	dir string

	seed    sync.Once
	seedErr error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore uses ~/.recall/prompts when dir is empty.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("home directory: %w", err)
		}
		dir = filepath.Join(home, ".recall", "prompts")
	}
	return &PromptStore{dir: dir, cache: map[string]string{}}, nil
}

func (s *PromptStore) Dir() string { return s.dir }

// Load returns the override for name when it is readable and keeps every
// placeholder, and the built-in otherwise. Only unknown names fail.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := builtins[name]

	s.seed.Do(func() { s.seedErr = s.seedDir() })
	if s.seedErr != nil {
		if known {
			return builtin.text, nil
		}
		return "", fmt.Errorf("prompt %q: %w", name, s.seedErr)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	prompt, err := s.read(name, builtin)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

func (s *PromptStore) read(name string, builtin template) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		if builtin.text == "" {
			return "", fmt.Errorf("prompt %q: %w", name, err)
		}
		return builtin.text, nil
	}
	prompt := strings.TrimSpace(string(data))

	var missing []string
	for _, verb := range builtin.verbs {
		if !strings.Contains(prompt, verb) {
			missing = append(missing, verb)
		}
	}
	if len(missing) > 0 {
		logger.Warnw("prompt file is missing placeholders, using built-in",
			"prompt", name, "missing", strings.Join(missing, " "))
		return builtin.text, nil
	}
	return prompt, nil
}

// Reload forgets cached templates; the next Load rereads the files.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = map[string]string{}
	s.mu.Unlock()
}

func (s *PromptStore) seedDir() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	files := map[string]string{"README.md": promptsReadme}
	for name, t := range builtins {
		files[name+".txt"] = t.text
	}
	for file, body := range files {
		path := filepath.Join(s.dir, file)
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
	}
	return nil
}
