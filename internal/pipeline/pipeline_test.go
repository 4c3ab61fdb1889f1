package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/markspan/internal/cachemanager"
	"github.com/zjrosen/markspan/internal/host"
	"github.com/zjrosen/markspan/internal/render"
	"github.com/zjrosen/markspan/internal/rewrite"
	"github.com/zjrosen/markspan/internal/token"
	"github.com/zjrosen/markspan/internal/tracing"
)

func standard() Builder {
	return New(host.New()).Use(rewrite.Annotation(), rewrite.MathSpan())
}

func TestProcess_RendersBothSpanKinds(t *testing.T) {
	p := standard().Build()

	res, err := p.Process(context.Background(), []byte("a[@b@]c and $$x^2$$\n"))
	require.NoError(t, err)

	require.Equal(t,
		"<p>a<span class=\"at\">b</span>c and <span class=\"latex\">x^2</span></p>\n",
		res.HTML)
	require.Equal(t, 2, res.Summary.Spans)
	require.Equal(t, 2, res.Summary.Rewritten)
	require.NotEmpty(t, res.RunID)
	require.False(t, res.Cached)

	children := token.Containers(res.Tokens)[0].Children
	require.Equal(t, []token.Type{
		token.TypeText, token.TypeAnnotation, token.TypeText, token.TypeMathSpan, token.TypeText,
	}, []token.Type{children[0].Type, children[1].Type, children[2].Type, children[3].Type, children[4].Type})
	require.Equal(t, "", children[4].Content)
}

func TestProcess_LinkDefinitionLeavesNoEmptyParagraph(t *testing.T) {
	p := standard().Build()

	res, err := p.Process(context.Background(), []byte("[@a@]: /url\n\n[@a@]\n"))
	require.NoError(t, err)
	require.Equal(t, "<p><a href=\"/url\">@a@</a></p>\n", res.HTML)
}

func TestProcess_UnpairedMathIsLeftAlone(t *testing.T) {
	p := standard().Build()

	res, err := p.Process(context.Background(), []byte("$$a$$ and $$b\n"))
	require.NoError(t, err)

	require.Equal(t, "<p>$$a$$ and $$b</p>\n", res.HTML)
	require.Equal(t, 1, res.Summary.Unpaired)
	require.Equal(t, 0, res.Summary.Spans)
}

func TestProcess_CodeSpansAreNotRewritten(t *testing.T) {
	p := standard().Build()

	res, err := p.Process(context.Background(), []byte("`[@x@]` and [@y@]\n"))
	require.NoError(t, err)
	require.Equal(t, "<p><code>[@x@]</code> and <span class=\"at\">y</span></p>\n", res.HTML)
}

func TestProcess_EscapesCapturedContentByDefault(t *testing.T) {
	src := []byte("$$a<b$$\n")

	res, err := standard().Build().Process(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, "<p><span class=\"latex\">a&lt;b</span></p>\n", res.HTML)

	raw, err := standard().Renderer(render.NewHTML(render.WithEscaping(render.RawCaptured))).Build().Process(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, "<p><span class=\"latex\">a<b</span></p>\n", raw.HTML)
}

func TestProcess_StrategiesAgree(t *testing.T) {
	src := []byte("# T [@h@]\n\n- [@a@] $$x$$ [@b@]\n- plain\n\n> $$y$$$$z$$\n")

	expand, err := standard().Build().Process(context.Background(), src)
	require.NoError(t, err)

	splice, err := New(host.New()).
		Use(rewrite.Annotation(rewrite.WithStrategy(rewrite.StrategySplice)), rewrite.MathSpan(rewrite.WithStrategy(rewrite.StrategySplice))).
		Build().
		Process(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, expand.HTML, splice.HTML)
	require.Equal(t, expand.Summary, splice.Summary)
	require.Equal(t, 6, expand.Summary.Spans)
}

func TestBuilder_IsImmutable(t *testing.T) {
	base := New(host.New()).Use(rewrite.Annotation())
	withMath := base.Use(rewrite.MathSpan())
	withOther := base.Use(rewrite.NewRule("other", rewrite.AnnotationDelimiter))

	require.Equal(t, []string{"annotation"}, base.Build().Rules())
	require.Equal(t, []string{"annotation", "math_span"}, withMath.Build().Rules())
	require.Equal(t, []string{"annotation", "other"}, withOther.Build().Rules())

	src := []byte("[@a@] $$b$$\n")
	res, err := base.Build().Process(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, "<p><span class=\"at\">a</span> $$b$$</p>\n", res.HTML)
}

func TestBuild_Defaults(t *testing.T) {
	p := New(nil).Build()

	res, err := p.Process(context.Background(), []byte("[@a@]\n"))
	require.NoError(t, err)
	require.Equal(t, "<p>[@a@]</p>\n", res.HTML)
	require.Empty(t, res.Reports)
}

func TestProcess_Cache(t *testing.T) {
	cache := cachemanager.NewInMemoryCacheManager[cachemanager.Key, *Result]("results", time.Minute, time.Minute)
	p := standard().Cache(cache, time.Minute).Build()
	src := []byte("[@a@]\n")

	first, err := p.Process(context.Background(), src)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := p.Process(context.Background(), src)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.HTML, second.HTML)
	require.Equal(t, first.Key, second.Key)
	require.NotEqual(t, first.RunID, second.RunID)

	other, err := p.Process(context.Background(), []byte("[@b@]\n"))
	require.NoError(t, err)
	require.False(t, other.Cached)
	_, ok := cache.Get(context.Background(), first.Key)
	require.True(t, ok)
	_, ok = cache.Get(context.Background(), other.Key)
	require.True(t, ok)
}

func TestForget(t *testing.T) {
	cache := cachemanager.NewInMemoryCacheManager[cachemanager.Key, *Result]("results", time.Minute, time.Minute)
	p := standard().Cache(cache, time.Minute).Build()
	src := []byte("[@a@]\n")

	first, err := p.Process(context.Background(), src)
	require.NoError(t, err)

	p.Forget(context.Background(), first.Key)
	_, ok := cache.Get(context.Background(), first.Key)
	require.False(t, ok)

	again, err := p.Process(context.Background(), src)
	require.NoError(t, err)
	require.False(t, again.Cached)

	// without a cache there is nothing to evict
	standard().Build().Forget(context.Background(), first.Key)
}

func TestProcess_CacheKeyDependsOnRules(t *testing.T) {
	cache := cachemanager.NewInMemoryCacheManager[cachemanager.Key, *Result]("results", time.Minute, time.Minute)
	src := []byte("[@a@] $$b$$\n")

	withBoth, err := standard().Cache(cache, time.Minute).Build().Process(context.Background(), src)
	require.NoError(t, err)

	annotationOnly, err := New(host.New()).Use(rewrite.Annotation()).Cache(cache, time.Minute).Build().Process(context.Background(), src)
	require.NoError(t, err)

	require.False(t, annotationOnly.Cached)
	require.NotEqual(t, withBoth.Key, annotationOnly.Key)
	require.NotEqual(t, withBoth.HTML, annotationOnly.HTML)
}

func TestProcess_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := standard().Build().Process(ctx, []byte("[@a@]\n"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcess_Concurrent(t *testing.T) {
	p := standard().Build()

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.Process(context.Background(), []byte(fmt.Sprintf("[@n%d@] $$x%d$$\n", i, i)))
			if err == nil {
				results[i] = res.HTML
			}
		}(i)
	}
	wg.Wait()

	for i, html := range results {
		want := fmt.Sprintf("<p><span class=\"at\">n%d</span> <span class=\"latex\">x%d</span></p>\n", i, i)
		require.Equal(t, want, html)
	}
}

func TestProcess_StageSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	p := standard().Tracer(tp.Tracer("test")).Build()
	_, err := p.Process(context.Background(), []byte("$$a$$ $$b\n"))
	require.NoError(t, err)

	var names []string
	var mathEvents int
	var attrs map[attribute.Key]attribute.Value
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
		switch s.Name() {
		case "markspan.rewrite.math_span":
			mathEvents = len(s.Events())
		case "markspan.process":
			attrs = map[attribute.Key]attribute.Value{}
			for _, kv := range s.Attributes() {
				attrs[kv.Key] = kv.Value
			}
		}
	}
	require.Equal(t, []string{
		"markspan.parse",
		"markspan.rewrite.annotation",
		"markspan.rewrite.math_span",
		"markspan.render",
		"markspan.process",
	}, names)
	require.Equal(t, 1, mathEvents)
	require.False(t, attrs[tracing.AttrCached].AsBool())
	require.Equal(t, int64(3), attrs[tracing.AttrTokens].AsInt64())
}
