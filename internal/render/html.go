// Package render turns a token stream into output markup.
//
// A Renderer owns a table from token type to RuleFunc. Tokens without a rule
// fall back to generic tag rendering driven by Tag and Nesting. Renderers
// are values: WithRule returns a new renderer and never changes the receiver.
package render

import (
	"maps"
	"strings"

	"github.com/yuin/goldmark/util"

	"github.com/zjrosen/markspan/internal/token"
)

// RuleFunc writes the markup for tokens[idx].
type RuleFunc func(w *strings.Builder, tokens []*token.Token, idx int, r *Renderer)

// Escaping decides whether captured span content is HTML-escaped before it
// is embedded in the output.
type Escaping int

const (
	// EscapeCaptured escapes captured content.
	EscapeCaptured Escaping = iota
	// RawCaptured embeds captured content verbatim. Captured markup reaches
	// the output unchanged.
	RawCaptured
)

// Renderer renders token streams to HTML.
type Renderer struct {
	rules    map[token.Type]RuleFunc
	escaping Escaping
	xhtml    bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithEscaping sets the escaping policy for captured span content.
func WithEscaping(e Escaping) Option {
	return func(r *Renderer) {
		r.escaping = e
	}
}

// WithXHTML closes void elements with " /".
func WithXHTML() Option {
	return func(r *Renderer) {
		r.xhtml = true
	}
}

// NewHTML returns a renderer with the default rules for every host token
// type plus the annotation and math span rules.
func NewHTML(opts ...Option) *Renderer {
	r := &Renderer{
		rules: map[token.Type]RuleFunc{
			token.TypeInline:     renderInlineContainer,
			token.TypeText:       renderText,
			token.TypeSoftbreak:  renderSoftbreak,
			token.TypeHardbreak:  renderHardbreak,
			token.TypeCodeInline: renderCodeInline,
			token.TypeCodeBlock:  renderCodeBlock,
			token.TypeFence:      renderFence,
			token.TypeImage:      renderImage,
			token.TypeHTMLBlock:  renderRaw,
			token.TypeHTMLInline: renderRaw,
			token.TypeAnnotation: SpanRule("at"),
			token.TypeMathSpan:   SpanRule("latex"),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithRule returns a copy of r with fn registered for t.
func (r *Renderer) WithRule(t token.Type, fn RuleFunc) *Renderer {
	c := *r
	c.rules = maps.Clone(r.rules)
	c.rules[t] = fn
	return &c
}

// Rule returns the rule registered for t.
func (r *Renderer) Rule(t token.Type) (RuleFunc, bool) {
	fn, ok := r.rules[t]
	return fn, ok
}

// Escaping returns the captured content escaping policy.
func (r *Renderer) Escaping() Escaping {
	return r.escaping
}

// Render renders a whole token stream.
func (r *Renderer) Render(tokens []*token.Token) string {
	var w strings.Builder
	r.RenderTo(&w, tokens)
	return w.String()
}

// RenderTo renders a token sequence into w.
func (r *Renderer) RenderTo(w *strings.Builder, tokens []*token.Token) {
	for i, t := range tokens {
		if fn, ok := r.rules[t.Type]; ok {
			fn(w, tokens, i, r)
			continue
		}
		r.RenderToken(w, tokens, i)
	}
}

// RenderToken writes the generic open/close/void tag for tokens[idx].
func (r *Renderer) RenderToken(w *strings.Builder, tokens []*token.Token, idx int) {
	t := tokens[idx]
	if t.Hidden {
		return
	}

	// a block tag after a hidden tight-list paragraph starts a new line
	if t.Block && t.Nesting != token.NestingClose && idx > 0 && tokens[idx-1].Hidden {
		w.WriteByte('\n')
	}

	if t.Nesting == token.NestingClose {
		w.WriteString("</")
	} else {
		w.WriteByte('<')
	}
	w.WriteString(t.Tag)
	writeAttrs(w, t)
	if t.Nesting == token.NestingSelf && r.xhtml {
		w.WriteString(" /")
	}

	needLf := false
	if t.Block {
		needLf = true
		if t.Nesting == token.NestingOpen && idx+1 < len(tokens) {
			next := tokens[idx+1]
			if next.Type == token.TypeInline || next.Hidden {
				needLf = false
			} else if next.Nesting == token.NestingClose && next.Tag == t.Tag {
				needLf = false
			}
		}
	}
	if needLf {
		w.WriteString(">\n")
	} else {
		w.WriteByte('>')
	}
}

// SpanRule renders a custom span as <span class="class">content</span>,
// escaping the content unless the renderer embeds captures raw.
func SpanRule(class string) RuleFunc {
	return func(w *strings.Builder, tokens []*token.Token, idx int, r *Renderer) {
		w.WriteString(`<span class="`)
		w.WriteString(class)
		w.WriteString(`">`)
		if r.escaping == RawCaptured {
			w.WriteString(tokens[idx].Content)
		} else {
			w.WriteString(Escape(tokens[idx].Content))
		}
		w.WriteString("</span>")
	}
}

// Escape escapes HTML special characters.
func Escape(s string) string {
	return string(util.EscapeHTML([]byte(s)))
}

func writeAttrs(w *strings.Builder, t *token.Token) {
	for _, a := range t.Attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		w.WriteString(Escape(a.Value))
		w.WriteByte('"')
	}
}

func renderInlineContainer(w *strings.Builder, tokens []*token.Token, idx int, r *Renderer) {
	r.RenderTo(w, tokens[idx].Children)
}

func renderText(w *strings.Builder, tokens []*token.Token, idx int, _ *Renderer) {
	w.WriteString(Escape(tokens[idx].Content))
}

func renderSoftbreak(w *strings.Builder, _ []*token.Token, _ int, _ *Renderer) {
	w.WriteByte('\n')
}

func renderHardbreak(w *strings.Builder, _ []*token.Token, _ int, r *Renderer) {
	if r.xhtml {
		w.WriteString("<br />\n")
		return
	}
	w.WriteString("<br>\n")
}

func renderCodeInline(w *strings.Builder, tokens []*token.Token, idx int, _ *Renderer) {
	t := tokens[idx]
	w.WriteString("<code")
	writeAttrs(w, t)
	w.WriteByte('>')
	w.WriteString(Escape(t.Content))
	w.WriteString("</code>")
}

func renderCodeBlock(w *strings.Builder, tokens []*token.Token, idx int, _ *Renderer) {
	t := tokens[idx]
	w.WriteString("<pre><code")
	writeAttrs(w, t)
	w.WriteByte('>')
	w.WriteString(Escape(t.Content))
	w.WriteString("</code></pre>\n")
}

func renderFence(w *strings.Builder, tokens []*token.Token, idx int, _ *Renderer) {
	t := tokens[idx]
	lang, _, _ := strings.Cut(strings.TrimSpace(t.Info), " ")
	w.WriteString("<pre><code")
	if lang != "" {
		w.WriteString(` class="language-`)
		w.WriteString(Escape(lang))
		w.WriteByte('"')
	}
	writeAttrs(w, t)
	w.WriteByte('>')
	w.WriteString(Escape(t.Content))
	w.WriteString("</code></pre>\n")
}

func renderImage(w *strings.Builder, tokens []*token.Token, idx int, r *Renderer) {
	t := tokens[idx]
	w.WriteString("<img")
	for _, a := range t.Attrs {
		if a.Name == "alt" {
			continue
		}
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		w.WriteString(Escape(a.Value))
		w.WriteByte('"')
	}
	w.WriteString(` alt="`)
	w.WriteString(Escape(PlainText(t.Children)))
	w.WriteByte('"')
	if r.xhtml {
		w.WriteString(" />")
		return
	}
	w.WriteByte('>')
}

func renderRaw(w *strings.Builder, tokens []*token.Token, idx int, _ *Renderer) {
	w.WriteString(tokens[idx].Content)
}

// PlainText flattens inline tokens to their visible text.
func PlainText(children []*token.Token) string {
	var b strings.Builder
	for _, c := range children {
		switch c.Type {
		case token.TypeText, token.TypeCodeInline, token.TypeAnnotation, token.TypeMathSpan:
			b.WriteString(c.Content)
		case token.TypeSoftbreak, token.TypeHardbreak:
			b.WriteByte('\n')
		case token.TypeImage:
			b.WriteString(PlainText(c.Children))
		}
	}
	return b.String()
}
