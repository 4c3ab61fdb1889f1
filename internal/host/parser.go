// Package host adapts goldmark to the flat token stream.
//
// goldmark parses the document into its own AST; the lowering in this
// package walks that tree and emits paired open/close block tokens with one
// inline container per run of inline content. Consecutive goldmark text
// fragments are joined into a single text token.
package host

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/zjrosen/markspan/internal/log"
	"github.com/zjrosen/markspan/internal/token"
)

// Parser turns Markdown source into a token stream.
type Parser struct {
	md goldmark.Markdown
}

// New returns a parser for CommonMark with the strikethrough and table
// extensions.
func New() *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Table,
			),
		),
	}
}

// Parse parses src and lowers the result to a token stream.
func (p *Parser) Parse(src []byte) []*token.Token {
	doc := p.md.Parser().Parse(text.NewReader(src))

	l := &lowerer{source: src}
	_ = ast.Walk(doc, l.walkBlock)

	log.Debug(log.CatParse, "parsed document", "bytes", len(src), "tokens", len(l.tokens))
	return l.tokens
}

type lowerer struct {
	source []byte
	tokens []*token.Token
	level  int

	// tight marks, per enclosing list, whether its paragraphs are hidden.
	tight []bool
}

func (l *lowerer) open(t token.Type, tag string) *token.Token {
	tok := token.New(t, tag, token.NestingOpen)
	tok.Block = true
	tok.Level = l.level
	l.level++
	l.tokens = append(l.tokens, tok)
	return tok
}

func (l *lowerer) close(t token.Type, tag string) *token.Token {
	l.level--
	tok := token.New(t, tag, token.NestingClose)
	tok.Block = true
	tok.Level = l.level
	l.tokens = append(l.tokens, tok)
	return tok
}

func (l *lowerer) leaf(t token.Type, tag string) *token.Token {
	tok := token.New(t, tag, token.NestingSelf)
	tok.Block = true
	tok.Level = l.level
	l.tokens = append(l.tokens, tok)
	return tok
}

func (l *lowerer) inline(n ast.Node) {
	tok := token.New(token.TypeInline, "", token.NestingSelf)
	tok.Level = l.level
	tok.Content = strings.TrimRight(string(n.Lines().Value(l.source)), "\n")
	tok.Children = lowerInline(n, l.source)
	l.tokens = append(l.tokens, tok)
}

func (l *lowerer) walkBlock(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := n.(type) {
	case *ast.Document:

	case *ast.Paragraph, *ast.TextBlock:
		// a paragraph of link reference definitions keeps no lines
		if _, ok := n.(*ast.Paragraph); ok && n.Lines().Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		hidden := false
		if _, ok := n.(*ast.TextBlock); ok {
			hidden = len(l.tight) > 0 && l.tight[len(l.tight)-1]
		}
		var tok *token.Token
		if entering {
			tok = l.open(token.TypeParagraphOpen, "p")
		} else {
			tok = l.close(token.TypeParagraphClose, "p")
		}
		tok.Hidden = hidden
		if entering {
			l.inline(n)
			return ast.WalkSkipChildren, nil
		}

	case *ast.Heading:
		tag := "h" + strconv.Itoa(n.Level)
		if !entering {
			l.close(token.TypeHeadingClose, tag).Markup = strings.Repeat("#", n.Level)
			break
		}
		l.open(token.TypeHeadingOpen, tag).Markup = strings.Repeat("#", n.Level)
		l.inline(n)
		return ast.WalkSkipChildren, nil

	case *ast.Blockquote:
		if entering {
			l.open(token.TypeBlockquoteOpen, "blockquote").Markup = ">"
		} else {
			l.close(token.TypeBlockquoteClose, "blockquote").Markup = ">"
		}

	case *ast.List:
		l.lowerList(n, entering)

	case *ast.ListItem:
		marker := string(n.Parent().(*ast.List).Marker)
		if entering {
			l.open(token.TypeListItemOpen, "li").Markup = marker
		} else {
			l.close(token.TypeListItemClose, "li").Markup = marker
		}

	case *ast.CodeBlock:
		if entering {
			l.leaf(token.TypeCodeBlock, "code").Content = string(n.Lines().Value(l.source))
		}
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock:
		if entering {
			tok := l.leaf(token.TypeFence, "code")
			tok.Content = string(n.Lines().Value(l.source))
			if n.Info != nil {
				tok.Info = resolve(n.Info.Segment.Value(l.source))
			}
			tok.Markup = l.fenceMarker(n)
		}
		return ast.WalkSkipChildren, nil

	case *ast.ThematicBreak:
		if entering {
			l.leaf(token.TypeHR, "hr").Markup = "---"
		}
		return ast.WalkSkipChildren, nil

	case *ast.HTMLBlock:
		if entering {
			var b bytes.Buffer
			b.Write(n.Lines().Value(l.source))
			if n.HasClosure() {
				b.Write(n.ClosureLine.Value(l.source))
			}
			l.leaf(token.TypeHTMLBlock, "").Content = b.String()
		}
		return ast.WalkSkipChildren, nil

	case *east.Table:
		if entering {
			l.open(token.TypeTableOpen, "table")
		} else {
			if n.LastChild() != nil && n.LastChild() != n.FirstChild() {
				l.close(token.TypeTbodyClose, "tbody")
			}
			l.close(token.TypeTableClose, "table")
		}

	case *east.TableHeader:
		if entering {
			l.open(token.TypeTheadOpen, "thead")
			l.open(token.TypeTrOpen, "tr")
		} else {
			l.close(token.TypeTrClose, "tr")
			l.close(token.TypeTheadClose, "thead")
		}

	case *east.TableRow:
		if entering {
			if n.PreviousSibling() != nil && n.PreviousSibling().Kind() == east.KindTableHeader {
				l.open(token.TypeTbodyOpen, "tbody")
			}
			l.open(token.TypeTrOpen, "tr")
		} else {
			l.close(token.TypeTrClose, "tr")
		}

	case *east.TableCell:
		l.lowerCell(n, entering)
		if entering {
			return ast.WalkSkipChildren, nil
		}

	default:
		// unknown blocks contribute their children only
	}
	return ast.WalkContinue, nil
}

func (l *lowerer) lowerList(n *ast.List, entering bool) {
	if !entering {
		l.tight = l.tight[:len(l.tight)-1]
		if n.IsOrdered() {
			l.close(token.TypeOrderedListClose, "ol").Markup = string(n.Marker)
		} else {
			l.close(token.TypeBulletListClose, "ul").Markup = string(n.Marker)
		}
		return
	}

	l.tight = append(l.tight, n.IsTight)
	if !n.IsOrdered() {
		l.open(token.TypeBulletListOpen, "ul").Markup = string(n.Marker)
		return
	}
	tok := l.open(token.TypeOrderedListOpen, "ol")
	tok.Markup = string(n.Marker)
	if n.Start != 1 {
		tok.AttrSet("start", strconv.Itoa(n.Start))
	}
}

func (l *lowerer) lowerCell(n *east.TableCell, entering bool) {
	typ, closeTyp, tag := token.TypeTdOpen, token.TypeTdClose, "td"
	if _, ok := n.Parent().(*east.TableHeader); ok {
		typ, closeTyp, tag = token.TypeThOpen, token.TypeThClose, "th"
	}
	if !entering {
		l.close(closeTyp, tag)
		return
	}
	tok := l.open(typ, tag)
	if n.Alignment != east.AlignNone {
		tok.AttrSet("style", "text-align:"+n.Alignment.String())
	}
	l.inline(n)
}

// fenceMarker recovers the opening fence of a fenced code block from the
// source line that precedes its content.
func (l *lowerer) fenceMarker(n *ast.FencedCodeBlock) string {
	pos := -1
	switch {
	case n.Info != nil:
		pos = n.Info.Segment.Start
	case n.Lines().Len() > 0:
		// last byte of the fence line is the newline before the content
		pos = n.Lines().At(0).Start - 1
	}
	if pos <= 0 || pos > len(l.source) {
		return "```"
	}

	start := bytes.LastIndexByte(l.source[:pos], '\n') + 1
	line := bytes.TrimLeft(l.source[start:pos], " ")
	if len(line) == 0 || (line[0] != '`' && line[0] != '~') {
		return "```"
	}
	end := 0
	for end < len(line) && line[end] == line[0] {
		end++
	}
	return string(line[:end])
}

// safeURL escapes a link destination, dropping destinations with a
// dangerous scheme.
func safeURL(dest []byte) string {
	if html.IsDangerousURL(dest) {
		return ""
	}
	return string(util.URLEscape(dest, true))
}

// resolve applies backslash unescaping and entity resolution to raw text.
func resolve(raw []byte) string {
	v := util.UnescapePunctuations(raw)
	v = util.ResolveNumericReferences(v)
	v = util.ResolveEntityNames(v)
	return string(v)
}
