package invoke

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// LoggingCallback writes a structured line per call through the logger package.
type LoggingCallback struct{}

// OnStart implements Callback.
func (LoggingCallback) OnStart(ctx context.Context, call *Call) context.Context {
	logger.Debugw("llm call started", "id", call.ID, "op", call.Operation, "model", call.Model)
	return ctx
}

// OnEnd implements Callback.
func (LoggingCallback) OnEnd(_ context.Context, call *Call, resp *driven.GenerateResponse, err error) {
	elapsed := time.Since(call.StartedAt).Round(time.Millisecond).String()
	if err != nil {
		logger.Warnw("llm call failed",
			"id", call.ID, "op", call.Operation, "attempts", call.Attempt, "elapsed", elapsed, "error", err.Error())
		return
	}
	logger.Debugw("llm call finished",
		"id", call.ID, "op", call.Operation, "attempts", call.Attempt, "elapsed", elapsed,
		"tokens", resp.Usage.TotalTokens, "finish", resp.FinishReason)
}

// AuditCallback persists every call to a CallLogStore. Store failures are
// logged and never fail the call.
type AuditCallback struct {
	store driven.CallLogStore
}

// NewAuditCallback creates an audit callback.
func NewAuditCallback(store driven.CallLogStore) *AuditCallback {
	return &AuditCallback{store: store}
}

// OnStart implements Callback.
func (a *AuditCallback) OnStart(ctx context.Context, _ *Call) context.Context {
	return ctx
}

// OnEnd implements Callback.
func (a *AuditCallback) OnEnd(ctx context.Context, call *Call, resp *driven.GenerateResponse, err error) {
	rec := &domain.CallRecord{
		ID:        call.ID,
		Operation: call.Operation,
		Model:     call.Model,
		Prompt:    promptText(call.Request),
		Status:    domain.CallStatusOK,
		Attempts:  call.Attempt,
		StartedAt: call.StartedAt.UTC(),
		Duration:  time.Since(call.StartedAt),
	}
	if err != nil {
		rec.Status = domain.CallStatusError
		rec.Error = err.Error()
	} else {
		rec.Response = resp.Content
		rec.Usage = resp.Usage
		rec.FinishReason = resp.FinishReason
	}

	// The call's own context may already be cancelled; the record is still wanted.
	if werr := a.store.Record(context.WithoutCancel(ctx), rec); werr != nil {
		logger.Warn("audit record %s: %v", call.ID, werr)
	}
}

func promptText(req driven.GenerateRequest) string {
	turns := req.Turns()
	if len(turns) == 1 {
		return turns[0].Content
	}
	var text string
	for _, m := range turns {
		text += m.Role + ": " + m.Content + "\n"
	}
	return text
}
