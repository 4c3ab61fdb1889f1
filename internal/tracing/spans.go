package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanProcess       = "markspan.process"
	SpanParse         = "markspan.parse"
	SpanRender        = "markspan.render"
	SpanPrefixRewrite = "markspan.rewrite."
)

// Span attribute keys.
const (
	AttrRunID      = "markspan.run_id"
	AttrSourceSize = "markspan.source.bytes"
	AttrCacheKey   = "markspan.cache.key"
	AttrCached     = "markspan.cache.hit"
	AttrTokens     = "markspan.tokens"
	AttrContainers = "markspan.containers"
	AttrRule       = "rewrite.rule"
	AttrStrategy   = "rewrite.strategy"
	AttrRewritten  = "rewrite.rewritten"
	AttrSpans      = "rewrite.spans"
	AttrUnpaired   = "rewrite.unpaired"
	AttrHTMLSize   = "render.html.bytes"
	AttrErrorMsg   = "error.message"
)

// Event names.
const (
	EventUnpairedMarkers = "rewrite.unpaired_markers"
	EventCacheHit        = "cache.hit"
)

// Stage starts a child span for one pipeline stage. The returned end
// function closes the span, recording err when non-nil.
func Stage(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, func(err error)) {
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, span, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String(AttrErrorMsg, err.Error()))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
