package invoke

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

const tracerName = "github.com/custodia-labs/recall/llm"

// Tracing opens one span per call. It implements Callback.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates a tracing callback from a provider.
func NewTracing(tp trace.TracerProvider) *Tracing {
	return &Tracing{tracer: tp.Tracer(tracerName)}
}

// OnStart implements Callback.
func (t *Tracing) OnStart(ctx context.Context, call *Call) context.Context {
	ctx, _ = t.tracer.Start(ctx, "llm."+call.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.call_id", call.ID),
			attribute.String("llm.model", call.Model),
			attribute.Int("llm.max_tokens", call.Request.MaxTokens),
		))
	return ctx
}

// OnEnd implements Callback.
func (t *Tracing) OnEnd(ctx context.Context, call *Call, resp *driven.GenerateResponse, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("llm.attempts", call.Attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("llm.completion_tokens", resp.Usage.CompletionTokens),
			attribute.String("llm.finish_reason", resp.FinishReason),
		)
	}
	span.End()
}
