// Package pipeline composes the host parser, the rewrite rules and the HTML
// renderer into a reusable document processor.
//
// A Builder is a value: every method returns a modified copy, so partially
// configured builders can be shared and extended independently. The built
// Pipeline holds no per-document state and may process documents from
// several goroutines at once.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/markspan/internal/cachemanager"
	"github.com/zjrosen/markspan/internal/host"
	"github.com/zjrosen/markspan/internal/log"
	"github.com/zjrosen/markspan/internal/render"
	"github.com/zjrosen/markspan/internal/rewrite"
	"github.com/zjrosen/markspan/internal/token"
	"github.com/zjrosen/markspan/internal/tracing"
)

// Parser produces a token stream from Markdown source.
type Parser interface {
	Parse(src []byte) []*token.Token
}

// ResultCache stores processed documents by content key.
type ResultCache = cachemanager.CacheManager[cachemanager.Key, *Result]

// Result is the outcome of processing one document. Results may be shared
// through the cache and must be treated as read-only.
type Result struct {
	// RunID identifies this Process call.
	RunID string `json:"run_id"`
	// Key is the content key the result is cached under.
	Key     cachemanager.Key `json:"key"`
	Tokens  []*token.Token   `json:"tokens"`
	HTML    string           `json:"html"`
	Reports []rewrite.Report `json:"reports"`
	Summary rewrite.Summary  `json:"summary"`
	// Cached is set when the result was served from the cache.
	Cached bool `json:"cached"`
}

// Builder configures a Pipeline.
type Builder struct {
	parser   Parser
	rules    []*rewrite.Rule
	renderer *render.Renderer
	cache    ResultCache
	ttl      time.Duration
	tracer   trace.Tracer
}

// New starts a builder around parser. A nil parser selects the goldmark
// host parser.
func New(parser Parser) Builder {
	return Builder{parser: parser}
}

// Use appends rewrite rules. Rules run in the order given, one pass each.
func (b Builder) Use(rules ...*rewrite.Rule) Builder {
	b.rules = append(slices.Clip(b.rules), rules...)
	return b
}

// Renderer sets the HTML renderer.
func (b Builder) Renderer(r *render.Renderer) Builder {
	b.renderer = r
	return b
}

// Cache enables result caching with the given entry lifetime.
func (b Builder) Cache(c ResultCache, ttl time.Duration) Builder {
	b.cache = c
	b.ttl = ttl
	return b
}

// Tracer sets the tracer used for stage spans.
func (b Builder) Tracer(t trace.Tracer) Builder {
	b.tracer = t
	return b
}

// Build returns the configured pipeline.
func (b Builder) Build() *Pipeline {
	p := &Pipeline{
		parser:   b.parser,
		rules:    slices.Clone(b.rules),
		renderer: b.renderer,
		cache:    b.cache,
		ttl:      b.ttl,
		tracer:   b.tracer,
	}
	if p.parser == nil {
		p.parser = host.New()
	}
	if p.renderer == nil {
		p.renderer = render.NewHTML()
	}
	if p.tracer == nil {
		p.tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if p.ttl <= 0 {
		p.ttl = cachemanager.DefaultExpiration
	}
	p.fingerprint = p.describe()
	p.reads = cachemanager.NewReadThroughCache[cachemanager.Key, *Result, []byte](b.cache, p.run, b.cache == nil)
	return p
}

// Pipeline processes documents.
type Pipeline struct {
	parser   Parser
	rules    []*rewrite.Rule
	renderer *render.Renderer
	cache    ResultCache
	ttl      time.Duration
	tracer   trace.Tracer

	fingerprint []byte
	reads       *cachemanager.ReadThroughCache[cachemanager.Key, *Result, []byte]
}

// Rules returns the names of the configured rules in pass order.
func (p *Pipeline) Rules() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name()
	}
	return names
}

// describe lists the settings that change the output for a given source.
func (p *Pipeline) describe() []byte {
	var b strings.Builder
	for _, r := range p.rules {
		b.WriteString(r.Name())
		b.WriteByte(':')
		b.WriteString(string(r.Strategy()))
		b.WriteByte(';')
	}
	b.WriteString("escape=")
	b.WriteString(strconv.Itoa(int(p.renderer.Escaping())))
	return []byte(b.String())
}

// Process parses src, runs every rule pass in order and renders the result.
func (p *Pipeline) Process(ctx context.Context, src []byte) (*Result, error) {
	runID := uuid.NewString()
	key := cachemanager.KeyOf(p.fingerprint, src)

	ctx, span := p.tracer.Start(ctx, tracing.SpanProcess, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, runID),
		attribute.String(tracing.AttrCacheKey, key.Short()),
		attribute.Int(tracing.AttrSourceSize, len(src)),
	))
	defer span.End()

	res, cached, err := p.reads.GetWithRefresh(ctx, key, src, p.ttl)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("processing document: %w", err)
	}

	span.SetAttributes(
		attribute.Bool(tracing.AttrCached, cached),
		attribute.Int(tracing.AttrTokens, len(res.Tokens)),
	)
	if cached {
		span.AddEvent(tracing.EventCacheHit)
		log.Debug(log.CatCache, "served cached result", "run", runID, "key", key.Short())
	}

	out := *res
	out.RunID = runID
	out.Key = key
	out.Cached = cached
	return &out, nil
}

// Forget drops the cached result stored under key.
func (p *Pipeline) Forget(ctx context.Context, key cachemanager.Key) {
	if p.cache == nil || key == "" {
		return
	}
	if err := p.cache.Delete(ctx, key); err != nil {
		log.ErrorErr(log.CatCache, "evicting result failed", err, "key", key.Short())
		return
	}
	log.Debug(log.CatCache, "evicted result", "key", key.Short())
}

func (p *Pipeline) run(ctx context.Context, src []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, _, end := tracing.Stage(ctx, p.tracer, tracing.SpanParse, attribute.Int(tracing.AttrSourceSize, len(src)))
	tokens := p.parser.Parse(src)
	end(nil)

	var reports []rewrite.Report
	for _, rule := range p.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reports = append(reports, p.pass(ctx, rule, tokens)...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, span, end := tracing.Stage(ctx, p.tracer, tracing.SpanRender)
	html := p.renderer.Render(tokens)
	span.SetAttributes(attribute.Int(tracing.AttrHTMLSize, len(html)))
	end(nil)

	summary := rewrite.Summarize(reports)
	log.Info(log.CatRender, "processed document",
		"tokens", len(tokens), "spans", summary.Spans, "skipped", summary.Unpaired+summary.NoMatch)

	return &Result{
		Tokens:  tokens,
		HTML:    html,
		Reports: reports,
		Summary: summary,
	}, nil
}

func (p *Pipeline) pass(ctx context.Context, rule *rewrite.Rule, tokens []*token.Token) []rewrite.Report {
	_, span, end := tracing.Stage(ctx, p.tracer, tracing.SpanPrefixRewrite+rule.Name(),
		attribute.String(tracing.AttrRule, rule.Name()),
		attribute.String(tracing.AttrStrategy, string(rule.Strategy())),
	)
	defer end(nil)

	reports := rule.Apply(tokens)
	for _, rep := range reports {
		if rep.Outcome != rewrite.OutcomeUnpaired {
			continue
		}
		log.Warn(log.CatRewrite, "unpaired delimiter markers left as text",
			"rule", rep.Rule, "container", rep.Container, "child", rep.Child)
		span.AddEvent(tracing.EventUnpairedMarkers, trace.WithAttributes(
			attribute.Int("container", rep.Container),
			attribute.Int("child", rep.Child),
		))
	}

	s := rewrite.Summarize(reports)
	span.SetAttributes(
		attribute.Int(tracing.AttrContainers, len(token.Containers(tokens))),
		attribute.Int(tracing.AttrRewritten, s.Rewritten),
		attribute.Int(tracing.AttrSpans, s.Spans),
		attribute.Int(tracing.AttrUnpaired, s.Unpaired),
	)
	return reports
}
