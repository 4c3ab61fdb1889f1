package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/markspan/internal/config"
	"github.com/zjrosen/markspan/internal/document"
	"github.com/zjrosen/markspan/internal/token"
)

// testConfig returns the default config with every path inside a temp dir
// and input.md holding src.
func testConfig(t *testing.T, src string) config.Config {
	t.Helper()
	dir := t.TempDir()
	c := config.Defaults()
	c.Input = filepath.Join(dir, "input.md")
	c.Output.HTML = filepath.Join(dir, "output.html")
	c.Output.Tokens = filepath.Join(dir, "output.json")
	c.Cache.Enabled = false
	require.NoError(t, os.WriteFile(c.Input, []byte(src), 0o644))
	return c
}

func buildOnce(t *testing.T, c config.Config) string {
	t.Helper()
	p, err := newPipeline(c, noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = build(context.Background(), c, p, &out)
	require.NoError(t, err)
	return out.String()
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	c, err := loadConfig(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, config.Defaults(), c)
}

func TestLoadConfig_LocalFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	require.NoError(t, os.MkdirAll(".markspan", 0o750))
	require.NoError(t, os.WriteFile(localConfigPath, []byte(`
rewrite:
  strategy: splice
watch:
  debounce: 250ms
`), 0o600))

	c, err := loadConfig(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "splice", c.Rewrite.Strategy)
	require.True(t, c.Rewrite.Annotation, "unset keys keep their defaults")
	require.Equal(t, 250*time.Millisecond, c.Watch.Debounce)
	require.Equal(t, "input.md", c.Input)
}

func TestLoadConfig_UserConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	userDir := filepath.Join(dir, ".config", "markspan")
	require.NoError(t, os.MkdirAll(userDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte("input: notes.md\n"), 0o600))

	c, err := loadConfig(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "notes.md", c.Input)
}

func TestLoadConfig_ExplicitPathMissing(t *testing.T) {
	_, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestNewPipeline_Rules(t *testing.T) {
	c := config.Defaults()
	p, err := newPipeline(c, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"annotation", "math_span"}, p.Rules())

	c.Rewrite.Annotation = false
	p, err = newPipeline(c, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"math_span"}, p.Rules())

	c.Rewrite.Strategy = "sideways"
	_, err = newPipeline(c, nil)
	require.Error(t, err)
}

func TestBuild_WritesBothOutputs(t *testing.T) {
	c := testConfig(t, "Hello [@ann@] and $$x$$\n")

	summary := buildOnce(t, c)
	require.Contains(t, summary, "2 spans")
	require.Contains(t, summary, "annotation 1")
	require.Contains(t, summary, "math_span 1")

	html, err := os.ReadFile(c.Output.HTML)
	require.NoError(t, err)
	require.Equal(t, `<p>Hello <span class="at">ann</span> and <span class="latex">x</span></p>`+"\n", string(html))

	f, err := os.Open(c.Output.Tokens)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	tokens, err := token.Decode(f)
	require.NoError(t, err)

	var types []token.Type
	for _, container := range token.Containers(tokens) {
		for _, child := range container.Children {
			types = append(types, child.Type)
		}
	}
	require.Equal(t, []token.Type{
		token.TypeText, token.TypeAnnotation, token.TypeText, token.TypeMathSpan, token.TypeText,
	}, types)
}

func TestBuild_YAMLTokens(t *testing.T) {
	c := testConfig(t, "[@a@]\n")
	c.Output.Tokens = filepath.Join(filepath.Dir(c.Input), "tokens.yaml")
	c.Output.TokensFormat = "yaml"

	buildOnce(t, c)

	data, err := os.ReadFile(c.Output.Tokens)
	require.NoError(t, err)
	require.Contains(t, string(data), "type: annotation")
}

func TestBuild_RawEscaping(t *testing.T) {
	c := testConfig(t, "[@x < y@]\n")

	buildOnce(t, c)
	html, err := os.ReadFile(c.Output.HTML)
	require.NoError(t, err)
	require.Contains(t, string(html), `<span class="at">x &lt; y</span>`)

	c.Render.Escape = false
	buildOnce(t, c)
	html, err = os.ReadFile(c.Output.HTML)
	require.NoError(t, err)
	require.Contains(t, string(html), `<span class="at">x < y</span>`)
}

func TestBuild_MissingInput(t *testing.T) {
	c := testConfig(t, "")
	require.NoError(t, os.Remove(c.Input))

	p, err := newPipeline(c, nil)
	require.NoError(t, err)
	_, err = build(context.Background(), c, p, &bytes.Buffer{})
	require.ErrorIs(t, err, document.ErrNotFound)

	_, statErr := os.Stat(c.Output.HTML)
	require.True(t, os.IsNotExist(statErr), "no output is written when the input is missing")
}

func TestBuild_ReportsUnpairedMarkers(t *testing.T) {
	c := testConfig(t, "$$a$$ and $$b\n")

	summary := buildOnce(t, c)
	require.Contains(t, summary, "0 spans")
	require.Contains(t, summary, "math_span: unpaired markers left as text (container 0, child 0)")

	html, err := os.ReadFile(c.Output.HTML)
	require.NoError(t, err)
	require.Equal(t, "<p>$$a$$ and $$b</p>\n", string(html))
}

func TestBuild_CachedSecondRun(t *testing.T) {
	c := testConfig(t, "[@a@]\n")
	c.Cache.Enabled = true

	p, err := newPipeline(c, nil)
	require.NoError(t, err)

	var first, second bytes.Buffer
	_, err = build(context.Background(), c, p, &first)
	require.NoError(t, err)
	_, err = build(context.Background(), c, p, &second)
	require.NoError(t, err)
	require.NotContains(t, first.String(), "cached")
	require.Contains(t, second.String(), "cached")
}
