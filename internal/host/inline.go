package host

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/zjrosen/markspan/internal/token"
)

// inlineLowerer flattens the inline children of one goldmark block.
type inlineLowerer struct {
	source []byte
	out    []*token.Token
	level  int

	// raw source bytes of the pending text run, resolved on flush
	raw     []byte
	text    strings.Builder
	pending bool
}

func lowerInline(parent ast.Node, source []byte) []*token.Token {
	l := &inlineLowerer{source: source, out: []*token.Token{}}
	l.children(parent)
	l.flush()
	return l.out
}

func (l *inlineLowerer) appendRaw(b []byte) {
	l.raw = append(l.raw, b...)
	l.pending = true
}

func (l *inlineLowerer) appendResolved(s string) {
	l.resolveRaw()
	l.text.WriteString(s)
	l.pending = true
}

func (l *inlineLowerer) resolveRaw() {
	if len(l.raw) > 0 {
		l.text.WriteString(resolve(l.raw))
		l.raw = l.raw[:0]
	}
}

// flush emits the pending text run as a single text token.
func (l *inlineLowerer) flush() {
	if !l.pending {
		return
	}
	l.resolveRaw()
	t := token.NewText(l.text.String())
	t.Level = l.level
	l.out = append(l.out, t)
	l.text.Reset()
	l.pending = false
}

func (l *inlineLowerer) emit(t *token.Token) *token.Token {
	l.flush()
	if t.Nesting == token.NestingClose {
		l.level--
	}
	t.Level = l.level
	if t.Nesting == token.NestingOpen {
		l.level++
	}
	l.out = append(l.out, t)
	return t
}

func (l *inlineLowerer) children(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		l.node(c)
	}
}

func (l *inlineLowerer) node(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		if n.IsRaw() {
			l.appendResolved(string(n.Segment.Value(l.source)))
		} else {
			l.appendRaw(n.Segment.Value(l.source))
		}
		switch {
		case n.HardLineBreak():
			l.emit(token.New(token.TypeHardbreak, "br", token.NestingSelf))
		case n.SoftLineBreak():
			l.emit(token.New(token.TypeSoftbreak, "br", token.NestingSelf))
		}

	case *ast.String:
		l.appendResolved(string(n.Value))

	case *ast.CodeSpan:
		t := token.New(token.TypeCodeInline, "code", token.NestingSelf)
		t.Markup = "`"
		t.Content = codeSpanContent(n, l.source)
		l.emit(t)

	case *ast.Emphasis:
		typ, closeTyp, tag, markup := token.TypeEmOpen, token.TypeEmClose, "em", "*"
		if n.Level == 2 {
			typ, closeTyp, tag, markup = token.TypeStrongOpen, token.TypeStrongClose, "strong", "**"
		}
		l.emit(token.New(typ, tag, token.NestingOpen)).Markup = markup
		l.children(n)
		l.emit(token.New(closeTyp, tag, token.NestingClose)).Markup = markup

	case *east.Strikethrough:
		l.emit(token.New(token.TypeSOpen, "s", token.NestingOpen)).Markup = "~~"
		l.children(n)
		l.emit(token.New(token.TypeSClose, "s", token.NestingClose)).Markup = "~~"

	case *ast.Link:
		open := token.New(token.TypeLinkOpen, "a", token.NestingOpen)
		open.AttrSet("href", safeURL(n.Destination))
		if n.Title != nil {
			open.AttrSet("title", resolve(n.Title))
		}
		l.emit(open)
		l.children(n)
		l.emit(token.New(token.TypeLinkClose, "a", token.NestingClose))

	case *ast.AutoLink:
		url := n.URL(l.source)
		if n.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
			url = append([]byte("mailto:"), url...)
		}
		open := token.New(token.TypeLinkOpen, "a", token.NestingOpen)
		open.AttrSet("href", safeURL(url))
		open.Markup = "autolink"
		open.Info = "auto"
		l.emit(open)
		l.appendResolved(string(n.Label(l.source)))
		end := token.New(token.TypeLinkClose, "a", token.NestingClose)
		end.Markup = "autolink"
		end.Info = "auto"
		l.emit(end)

	case *ast.Image:
		t := token.New(token.TypeImage, "img", token.NestingSelf)
		t.AttrSet("src", safeURL(n.Destination))
		t.AttrSet("alt", "")
		if n.Title != nil {
			t.AttrSet("title", resolve(n.Title))
		}
		t.Children = lowerInline(n, l.source)
		t.Content = plain(t.Children)
		l.emit(t)

	case *ast.RawHTML:
		var b bytes.Buffer
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(l.source))
		}
		t := token.New(token.TypeHTMLInline, "", token.NestingSelf)
		t.Content = b.String()
		l.emit(t)

	default:
		l.children(n)
	}
}

// codeSpanContent joins the code span's raw segments, turning line endings
// into spaces.
func codeSpanContent(n *ast.CodeSpan, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var value []byte
		switch c := c.(type) {
		case *ast.Text:
			value = c.Segment.Value(source)
		case *ast.String:
			value = c.Value
		default:
			continue
		}
		if bytes.HasSuffix(value, []byte("\n")) {
			b.Write(value[:len(value)-1])
			b.WriteByte(' ')
			continue
		}
		b.Write(value)
	}
	return b.String()
}

func plain(children []*token.Token) string {
	var b strings.Builder
	for _, c := range children {
		switch c.Type {
		case token.TypeText, token.TypeCodeInline:
			b.WriteString(c.Content)
		case token.TypeSoftbreak, token.TypeHardbreak:
			b.WriteByte('\n')
		case token.TypeImage:
			b.WriteString(c.Content)
		}
	}
	return b.String()
}
