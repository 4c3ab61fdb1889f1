package render

import (
	"strconv"
	"strings"

	"github.com/zjrosen/markspan/internal/token"
)

// SpanStyle selects how custom spans are written back to Markdown.
type SpanStyle int

const (
	// SpanDelimited restores the original [@...@] and $$...$$ syntax.
	SpanDelimited SpanStyle = iota
	// SpanPreview writes spans as plain Markdown a terminal renderer can
	// style: annotations in bold with an @ prefix, math as inline code.
	SpanPreview
)

// Markdown serializes a token stream back to Markdown.
type Markdown struct {
	style SpanStyle
}

// NewMarkdown returns a Markdown serializer.
func NewMarkdown(style SpanStyle) *Markdown {
	return &Markdown{style: style}
}

// Render serializes the whole stream.
func (m *Markdown) Render(tokens []*token.Token) string {
	w := &mdWriter{style: m.style}
	for _, t := range tokens {
		w.token(t)
	}
	return w.b.String()
}

// Inline serializes the children of one inline container.
func (m *Markdown) Inline(children []*token.Token) string {
	return inlineMarkdown(children, m.style)
}

type mdFrame struct {
	prefix string
	first  string

	// firstPending is set until the first line of a list item is written.
	firstPending bool

	// list state
	list    bool
	ordered bool
	counter int
	delim   string
}

type mdWriter struct {
	b      strings.Builder
	style  SpanStyle
	frames []*mdFrame

	needBlank bool
	heading   string

	table     [][]string
	align     []string
	inTable   bool
	headerEnd int
}

func (w *mdWriter) token(t *token.Token) {
	switch t.Type {
	case token.TypeBlockquoteOpen:
		w.startBlock()
		w.frames = append(w.frames, &mdFrame{prefix: "> "})
	case token.TypeBlockquoteClose:
		w.pop()
		w.needBlank = true

	case token.TypeBulletListOpen, token.TypeOrderedListOpen:
		w.startBlock()
		f := &mdFrame{list: true, ordered: t.Type == token.TypeOrderedListOpen, counter: 1, delim: t.Markup}
		if s, ok := t.AttrGet("start"); ok {
			if n, err := strconv.Atoi(s); err == nil {
				f.counter = n
			}
		}
		if f.delim == "" {
			f.delim = "-"
			if f.ordered {
				f.delim = "."
			}
		}
		w.frames = append(w.frames, f)
	case token.TypeBulletListClose, token.TypeOrderedListClose:
		w.pop()
		w.needBlank = true

	case token.TypeListItemOpen:
		marker := "- "
		if list := w.top(); list != nil && list.list {
			if list.ordered {
				marker = strconv.Itoa(list.counter) + list.delim + " "
				list.counter++
			} else {
				marker = list.delim + " "
			}
		}
		w.startBlock()
		w.frames = append(w.frames, &mdFrame{
			prefix:       strings.Repeat(" ", len(marker)),
			first:        marker,
			firstPending: true,
		})
	case token.TypeListItemClose:
		if f := w.top(); f != nil && f.firstPending {
			// empty item
			w.line("")
		}
		w.pop()

	case token.TypeParagraphOpen:
		w.startBlock()
	case token.TypeParagraphClose:
		w.needBlank = !t.Hidden

	case token.TypeHeadingOpen:
		w.startBlock()
		level := 1
		if len(t.Tag) == 2 && t.Tag[0] == 'h' {
			level = int(t.Tag[1] - '0')
		}
		w.heading = strings.Repeat("#", level) + " "
	case token.TypeHeadingClose:
		w.heading = ""
		w.needBlank = true

	case token.TypeInline:
		text := inlineMarkdown(t.Children, w.style)
		if w.inTable {
			row := len(w.table) - 1
			w.table[row] = append(w.table[row], strings.ReplaceAll(text, "|", `\|`))
			return
		}
		w.lines(w.heading + text)

	case token.TypeCodeBlock:
		w.startBlock()
		for _, l := range splitLines(t.Content) {
			w.line("    " + l)
		}
		w.needBlank = true
	case token.TypeFence:
		w.startBlock()
		fence := t.Markup
		if fence == "" {
			fence = "```"
		}
		w.line(fence + t.Info)
		for _, l := range splitLines(t.Content) {
			w.line(l)
		}
		w.line(fence)
		w.needBlank = true
	case token.TypeHR:
		w.startBlock()
		w.line("---")
		w.needBlank = true
	case token.TypeHTMLBlock:
		w.startBlock()
		for _, l := range splitLines(t.Content) {
			w.line(l)
		}
		w.needBlank = true

	case token.TypeTableOpen:
		w.startBlock()
		w.inTable = true
		w.table = nil
		w.align = nil
	case token.TypeTrOpen:
		w.table = append(w.table, nil)
	case token.TypeThOpen:
		style, _ := t.AttrGet("style")
		w.align = append(w.align, strings.TrimPrefix(style, "text-align:"))
	case token.TypeTheadClose:
		w.headerEnd = len(w.table)
	case token.TypeTableClose:
		w.inTable = false
		w.flushTable()
		w.needBlank = true
	}
}

func (w *mdWriter) flushTable() {
	for i, row := range w.table {
		w.line("| " + strings.Join(row, " | ") + " |")
		if i+1 == w.headerEnd {
			seps := make([]string, len(row))
			for k := range seps {
				a := ""
				if k < len(w.align) {
					a = w.align[k]
				}
				switch a {
				case "left":
					seps[k] = ":---"
				case "right":
					seps[k] = "---:"
				case "center":
					seps[k] = ":---:"
				default:
					seps[k] = "---"
				}
			}
			w.line("| " + strings.Join(seps, " | ") + " |")
		}
	}
	w.table = nil
}

func (w *mdWriter) top() *mdFrame {
	if len(w.frames) == 0 {
		return nil
	}
	return w.frames[len(w.frames)-1]
}

func (w *mdWriter) pop() {
	if len(w.frames) > 0 {
		w.frames = w.frames[:len(w.frames)-1]
	}
}

// startBlock writes the blank separator line owed by the previous block.
func (w *mdWriter) startBlock() {
	if !w.needBlank {
		return
	}
	w.needBlank = false
	var p strings.Builder
	for _, f := range w.frames {
		if f.firstPending {
			break
		}
		p.WriteString(f.prefix)
	}
	w.b.WriteString(strings.TrimRight(p.String(), " "))
	w.b.WriteByte('\n')
}

func (w *mdWriter) lines(text string) {
	for _, l := range strings.Split(text, "\n") {
		w.line(l)
	}
}

func (w *mdWriter) line(s string) {
	for _, f := range w.frames {
		if f.firstPending {
			w.b.WriteString(f.first)
			f.firstPending = false
			continue
		}
		w.b.WriteString(f.prefix)
	}
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func inlineMarkdown(children []*token.Token, style SpanStyle) string {
	var (
		b     strings.Builder
		links []*token.Token
	)
	for _, c := range children {
		switch c.Type {
		case token.TypeText, token.TypeHTMLInline:
			b.WriteString(c.Content)
		case token.TypeSoftbreak:
			b.WriteByte('\n')
		case token.TypeHardbreak:
			b.WriteString("\\\n")
		case token.TypeCodeInline:
			b.WriteString(codeSpan(c.Content))
		case token.TypeEmOpen, token.TypeEmClose:
			b.WriteString(markupOr(c, "*"))
		case token.TypeStrongOpen, token.TypeStrongClose:
			b.WriteString(markupOr(c, "**"))
		case token.TypeSOpen, token.TypeSClose:
			b.WriteString(markupOr(c, "~~"))
		case token.TypeLinkOpen:
			links = append(links, c)
			if c.Markup == "autolink" {
				b.WriteByte('<')
			} else {
				b.WriteByte('[')
			}
		case token.TypeLinkClose:
			if len(links) == 0 {
				continue
			}
			open := links[len(links)-1]
			links = links[:len(links)-1]
			if open.Markup == "autolink" {
				b.WriteByte('>')
				continue
			}
			href, _ := open.AttrGet("href")
			b.WriteString("](")
			b.WriteString(href)
			if title, ok := open.AttrGet("title"); ok {
				b.WriteString(` "` + title + `"`)
			}
			b.WriteByte(')')
		case token.TypeImage:
			src, _ := c.AttrGet("src")
			b.WriteString("![")
			b.WriteString(inlineMarkdown(c.Children, style))
			b.WriteString("](")
			b.WriteString(src)
			if title, ok := c.AttrGet("title"); ok {
				b.WriteString(` "` + title + `"`)
			}
			b.WriteByte(')')
		case token.TypeAnnotation:
			if style == SpanPreview {
				b.WriteString("**@" + c.Content + "**")
			} else {
				b.WriteString("[@" + c.Content + "@]")
			}
		case token.TypeMathSpan:
			if style == SpanPreview {
				b.WriteString(codeSpan(c.Content))
			} else {
				b.WriteString("$$" + c.Content + "$$")
			}
		}
	}
	return b.String()
}

func markupOr(t *token.Token, def string) string {
	if t.Markup != "" {
		return t.Markup
	}
	return def
}

// codeSpan wraps s in a backtick fence longer than any backtick run inside.
func codeSpan(s string) string {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	fence := strings.Repeat("`", longest+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}
