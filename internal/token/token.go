// Package token defines the flat Markdown token stream shared by the host
// parser, the inline rewrite rules and the renderers.
//
// Block structure is expressed with paired open/close tokens (Nesting +1/-1).
// Each run of inline content is owned by a single token of TypeInline, the
// inline container, whose Children hold the inline tokens in order.
package token

// Type identifies the kind of a token, e.g. "paragraph_open" or "text".
type Type string

// Block-level token types emitted by the host parser.
const (
	TypeParagraphOpen    Type = "paragraph_open"
	TypeParagraphClose   Type = "paragraph_close"
	TypeHeadingOpen      Type = "heading_open"
	TypeHeadingClose     Type = "heading_close"
	TypeBlockquoteOpen   Type = "blockquote_open"
	TypeBlockquoteClose  Type = "blockquote_close"
	TypeBulletListOpen   Type = "bullet_list_open"
	TypeBulletListClose  Type = "bullet_list_close"
	TypeOrderedListOpen  Type = "ordered_list_open"
	TypeOrderedListClose Type = "ordered_list_close"
	TypeListItemOpen     Type = "list_item_open"
	TypeListItemClose    Type = "list_item_close"
	TypeCodeBlock        Type = "code_block"
	TypeFence            Type = "fence"
	TypeHR               Type = "hr"
	TypeHTMLBlock        Type = "html_block"
	TypeTableOpen        Type = "table_open"
	TypeTableClose       Type = "table_close"
	TypeTheadOpen        Type = "thead_open"
	TypeTheadClose       Type = "thead_close"
	TypeTbodyOpen        Type = "tbody_open"
	TypeTbodyClose       Type = "tbody_close"
	TypeTrOpen           Type = "tr_open"
	TypeTrClose          Type = "tr_close"
	TypeThOpen           Type = "th_open"
	TypeThClose          Type = "th_close"
	TypeTdOpen           Type = "td_open"
	TypeTdClose          Type = "td_close"

	// TypeInline is the inline container.
	TypeInline Type = "inline"
)

// Inline token types.
const (
	TypeText        Type = "text"
	TypeSoftbreak   Type = "softbreak"
	TypeHardbreak   Type = "hardbreak"
	TypeCodeInline  Type = "code_inline"
	TypeEmOpen      Type = "em_open"
	TypeEmClose     Type = "em_close"
	TypeStrongOpen  Type = "strong_open"
	TypeStrongClose Type = "strong_close"
	TypeSOpen       Type = "s_open"
	TypeSClose      Type = "s_close"
	TypeLinkOpen    Type = "link_open"
	TypeLinkClose   Type = "link_close"
	TypeImage       Type = "image"
	TypeHTMLInline  Type = "html_inline"

	// Custom span types produced by the rewrite rules.
	TypeAnnotation Type = "annotation"
	TypeMathSpan   Type = "math_span"
)

// Nesting describes whether a token opens (+1), closes (-1) or is
// self-contained (0).
type Nesting int

const (
	NestingClose Nesting = -1
	NestingSelf  Nesting = 0
	NestingOpen  Nesting = 1
)

// Attr is a single HTML attribute carried by a token.
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Token is a node of the token stream.
type Token struct {
	Type    Type    `json:"type" yaml:"type"`
	Tag     string  `json:"tag" yaml:"tag"`
	Attrs   []Attr  `json:"attrs" yaml:"attrs,omitempty"`
	Nesting Nesting `json:"nesting" yaml:"nesting"`
	Level   int     `json:"level" yaml:"level"`

	// Content is the raw text for leaves and the source of the inline run
	// for inline containers.
	Content string `json:"content" yaml:"content"`

	// Markup is the source marker of the token, e.g. "**" or "```".
	Markup string `json:"markup" yaml:"markup"`

	// Info holds the fence info string.
	Info string `json:"info" yaml:"info"`

	Block  bool `json:"block" yaml:"block"`
	Hidden bool `json:"hidden" yaml:"hidden"`

	// Children is set for inline containers and images.
	Children []*Token `json:"children" yaml:"children,omitempty"`
}

// New creates a token of the given type.
func New(t Type, tag string, nesting Nesting) *Token {
	return &Token{Type: t, Tag: tag, Nesting: nesting}
}

// NewText creates a text leaf.
func NewText(content string) *Token {
	return &Token{Type: TypeText, Content: content}
}

// NewSpan creates a custom span leaf of type t. Span leaves carry an empty,
// non-nil child list.
func NewSpan(t Type, content string) *Token {
	return &Token{Type: t, Content: content, Children: []*Token{}}
}

// AttrGet returns the value of the named attribute.
func (t *Token) AttrGet(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrSet sets the named attribute, replacing an existing value.
func (t *Token) AttrSet(name, value string) {
	for i := range t.Attrs {
		if t.Attrs[i].Name == name {
			t.Attrs[i].Value = value
			return
		}
	}
	t.Attrs = append(t.Attrs, Attr{Name: name, Value: value})
}

// Clone returns a deep copy of t.
func (t *Token) Clone() *Token {
	c := *t
	if t.Attrs != nil {
		c.Attrs = append([]Attr(nil), t.Attrs...)
	}
	if t.Children != nil {
		c.Children = make([]*Token, len(t.Children))
		for i, child := range t.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Containers returns the inline containers of a stream in document order.
func Containers(tokens []*Token) []*Token {
	var out []*Token
	for _, t := range tokens {
		if t.Type == TypeInline {
			out = append(out, t)
		}
	}
	return out
}

// CloneAll deep-copies a token stream.
func CloneAll(tokens []*Token) []*Token {
	out := make([]*Token, len(tokens))
	for i, t := range tokens {
		out[i] = t.Clone()
	}
	return out
}
