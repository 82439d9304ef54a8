package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
)

func seededCalls(t *testing.T) *memory.CallLogStore {
	t.Helper()
	store := memory.NewCallLogStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Record(ctx, &domain.CallRecord{
		ID: "c1", Operation: "summarise", Model: "llama3.2", Prompt: "the prompt", Response: "the summary",
		Status: domain.CallStatusOK, Attempts: 1, Usage: domain.TokenUsage{TotalTokens: 42},
		StartedAt: now.Add(-time.Minute), Duration: time.Second,
	}))
	require.NoError(t, store.Record(ctx, &domain.CallRecord{
		ID: "c2", Operation: "summarise", Model: "llama3.2", Prompt: "again",
		Status: domain.CallStatusError, Error: "rate limited", Attempts: 4,
		StartedAt: now, Duration: 2 * time.Second,
	}))
	return store
}

func TestCallsCmd(t *testing.T) {
	svc := testServices()
	svc.Calls = seededCalls(t)

	out, err := runCLI(t, svc, "calls")
	require.NoError(t, err)
	assert.Contains(t, out, "tokens=42")
	assert.Contains(t, out, "attempts=4")
	assert.Contains(t, out, "rate limited")
	assert.NotContains(t, out, "the prompt")
	assert.Less(t, strings.Index(out, "attempts=4"), strings.Index(out, "attempts=1"))
}

func TestCallsCmd_PromptsAndLimit(t *testing.T) {
	svc := testServices()
	svc.Calls = seededCalls(t)

	out, err := runCLI(t, svc, "calls", "--prompts", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "the prompt")
	assert.Contains(t, out, "the summary")

	out, err = runCLI(t, svc, "calls", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "attempts=4")
	assert.NotContains(t, out, "attempts=1")
}

func TestCallsCmd_Empty(t *testing.T) {
	svc := testServices()
	svc.Calls = memory.NewCallLogStore()

	out, err := runCLI(t, svc, "calls")
	require.NoError(t, err)
	assert.Contains(t, out, "No calls recorded.")
}
