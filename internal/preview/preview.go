// Package preview renders a rewritten token stream to styled terminal output.
package preview

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	"github.com/zjrosen/markspan/internal/render"
	"github.com/zjrosen/markspan/internal/token"
)

// AutoStyle picks a dark or light style from the terminal background.
const AutoStyle = "auto"

// noMarginStyle is a JSON style that removes document margins.
// It is layered over the selected style.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// Renderer wraps glamour with markspan-specific configuration.
type Renderer struct {
	renderer *glamour.TermRenderer
	markdown *render.Markdown
	width    int
}

// New creates a preview renderer. style is a glamour standard style name or
// AutoStyle; width is the word wrap column, 0 disables wrapping.
func New(style string, width int) (*Renderer, error) {
	styleOpt := glamour.WithStandardStyle(style)
	if style == "" || style == AutoStyle {
		styleOpt = glamour.WithAutoStyle()
	}

	r, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("creating terminal renderer: %w", err)
	}
	return &Renderer{
		renderer: r,
		markdown: render.NewMarkdown(render.SpanPreview),
		width:    width,
	}, nil
}

// Width returns the configured word wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Markdown returns the preview Markdown for tokens: annotations become bold
// "@name" and math spans become code spans.
func (r *Renderer) Markdown(tokens []*token.Token) string {
	return r.markdown.Render(tokens)
}

// Render transforms tokens to styled terminal output.
func (r *Renderer) Render(tokens []*token.Token) (string, error) {
	out, err := r.renderer.Render(r.Markdown(tokens))
	if err != nil {
		return "", fmt.Errorf("rendering preview: %w", err)
	}
	return out, nil
}
