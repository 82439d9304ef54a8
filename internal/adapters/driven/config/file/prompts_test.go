package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".recall", "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptSummarise)
	require.NoError(t, err)

	for _, f := range []string{"summarise.txt", "summarise_with_context.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_DefaultsRender(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	summarise, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	out := fmt.Sprintf(summarise, 128, "alpha\n\nbeta")
	assert.Contains(t, out, "at most 128 tokens")
	assert.Contains(t, out, "alpha\n\nbeta")
	assert.NotContains(t, out, "%!")

	rolling, err := store.Load(driven.PromptSummariseWithContext)
	require.NoError(t, err)
	out = fmt.Sprintf(rolling, 64, "so far", "next part")
	assert.Contains(t, out, "so far")
	assert.Contains(t, out, "next part")
	assert.NotContains(t, out, "%!")
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()
	custom := "Shorten to %[1]d tokens:\n%[2]s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarise.txt"), []byte(custom+"\n\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, custom, prompt)
}

func TestPromptStore_Load_RejectsFileMissingPlaceholders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarise.txt"), []byte("Summarise: %[2]s"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptSummarise], prompt)
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, _ = store.Load(driven.PromptSummarise)
	require.NoError(t, os.Remove(filepath.Join(dir, "summarise.txt")))
	store.Reload()

	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptSummarise], prompt)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent_prompt")
	assert.Error(t, err)
}

func TestPromptStore_Load_InitFailureUsesDefaults(t *testing.T) {
	store, err := NewPromptStore("/dev/null/prompts")
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptSummarise], prompt)

	_, err = store.Load("nonexistent_prompt")
	assert.Error(t, err)
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)

	edited := "Edited %[1]d %[2]s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarise.txt"), []byte(edited), 0600))

	cached, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, edited, fresh)
}

func TestPromptStore_DoesNotOverwriteExistingFiles(t *testing.T) {
	dir := t.TempDir()
	custom := "Mine %[1]d %[2]s"
	path := filepath.Join(dir, "summarise.txt")
	require.NoError(t, os.WriteFile(path, []byte(custom), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	_, err = store.Load(driven.PromptSummariseWithContext)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptSummariseWithContext)
			assert.NoError(t, err)
			assert.Contains(t, prompt, "%[3]s")
		}()
	}
	wg.Wait()
}
