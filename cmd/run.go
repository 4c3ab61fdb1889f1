package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/markspan/internal/cachemanager"
	"github.com/zjrosen/markspan/internal/config"
	"github.com/zjrosen/markspan/internal/document"
	"github.com/zjrosen/markspan/internal/log"
	"github.com/zjrosen/markspan/internal/pipeline"
	"github.com/zjrosen/markspan/internal/render"
	"github.com/zjrosen/markspan/internal/rewrite"
	"github.com/zjrosen/markspan/internal/styles"
	"github.com/zjrosen/markspan/internal/token"
)

// outputs holds the encoded contents of both output files.
type outputs struct {
	html   []byte
	tokens []byte
}

// newPipeline builds the pipeline described by c.
func newPipeline(c config.Config, tracer trace.Tracer) (*pipeline.Pipeline, error) {
	strategy, err := rewrite.ParseStrategy(c.Rewrite.Strategy)
	if err != nil {
		return nil, err
	}

	var rules []*rewrite.Rule
	if c.Rewrite.Annotation {
		rules = append(rules, rewrite.Annotation(rewrite.WithStrategy(strategy)))
	}
	if c.Rewrite.Math {
		rules = append(rules, rewrite.MathSpan(rewrite.WithStrategy(strategy)))
	}

	opts := []render.Option{render.WithEscaping(render.EscapeCaptured)}
	if !c.Render.Escape {
		opts[0] = render.WithEscaping(render.RawCaptured)
	}
	if c.Render.XHTML {
		opts = append(opts, render.WithXHTML())
	}

	b := pipeline.New(nil).
		Use(rules...).
		Renderer(render.NewHTML(opts...)).
		Tracer(tracer)
	if c.Cache.Enabled {
		cache := cachemanager.NewInMemoryCacheManager[cachemanager.Key, *pipeline.Result](
			"documents", c.Cache.Expiration, 2*c.Cache.Expiration)
		b = b.Cache(cache, c.Cache.Expiration)
	}
	return b.Build(), nil
}

// processInput reads the document at path and runs it through p.
func processInput(ctx context.Context, p *pipeline.Pipeline, path string) (*pipeline.Result, error) {
	src, err := document.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	res, err := p.Process(ctx, src)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// encodeOutputs renders the bytes of both output files.
func encodeOutputs(res *pipeline.Result, oc config.OutputConfig) (outputs, error) {
	format, err := token.ParseFormat(oc.TokensFormat)
	if err != nil {
		return outputs{}, err
	}
	var buf bytes.Buffer
	if err := token.Encode(&buf, res.Tokens, format); err != nil {
		return outputs{}, fmt.Errorf("encoding tokens: %w", err)
	}
	return outputs{html: []byte(res.HTML), tokens: buf.Bytes()}, nil
}

// writeOutputs writes the HTML file, then the token stream file.
func writeOutputs(oc config.OutputConfig, out outputs) error {
	if err := document.Write(oc.HTML, out.html); err != nil {
		return fmt.Errorf("writing html: %w", err)
	}
	if err := document.Write(oc.Tokens, out.tokens); err != nil {
		return fmt.Errorf("writing tokens: %w", err)
	}
	log.Debug(log.CatIO, "wrote outputs", "html", oc.HTML, "tokens", oc.Tokens)
	return nil
}

// printSummary reports what a run produced and which text nodes were left
// alone because of unpaired markers.
func printSummary(w io.Writer, c config.Config, res *pipeline.Result) {
	line := fmt.Sprintf("%s -> %s, %s", c.Input, c.Output.HTML, c.Output.Tokens)
	_, _ = fmt.Fprintln(w, styles.SuccessStyle.Render("✓")+" "+styles.TitleStyle.Render(line))

	counts := []string{fmt.Sprintf("%d spans", res.Summary.Spans)}
	byRule := make(map[string][]rewrite.Report)
	var order []string
	for _, rep := range res.Reports {
		if _, ok := byRule[rep.Rule]; !ok {
			order = append(order, rep.Rule)
		}
		byRule[rep.Rule] = append(byRule[rep.Rule], rep)
	}
	for _, name := range order {
		counts = append(counts, fmt.Sprintf("%s %d", name, rewrite.Summarize(byRule[name]).Spans))
	}
	if res.Cached {
		counts = append(counts, "cached")
	}
	_, _ = fmt.Fprintln(w, "  "+styles.MutedStyle.Render(strings.Join(counts, " · ")))

	for _, rep := range rewrite.Skipped(res.Reports) {
		if rep.Outcome != rewrite.OutcomeUnpaired {
			continue
		}
		msg := fmt.Sprintf("%s: unpaired markers left as text (container %d, child %d)",
			rep.Rule, rep.Container, rep.Child)
		_, _ = fmt.Fprintln(w, "  "+styles.WarningStyle.Render("!")+" "+msg)
	}
}
