package rewrite

import (
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/zjrosen/markspan/internal/token"
)

// Outcome tells why a text token was or was not rewritten.
type Outcome int

const (
	// OutcomeRewritten means the token was replaced by its expansion.
	OutcomeRewritten Outcome = iota
	// OutcomeNoMarkers means the opening or closing marker is absent.
	OutcomeNoMarkers
	// OutcomeUnpaired means the marker count is odd, so the whole token is
	// left alone, including well-formed spans before the stray marker.
	OutcomeUnpaired
	// OutcomeNoMatch means the markers are present but enclose no valid span.
	OutcomeNoMatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRewritten:
		return "rewritten"
	case OutcomeNoMarkers:
		return "skipped_no_markers"
	case OutcomeUnpaired:
		return "skipped_unpaired"
	case OutcomeNoMatch:
		return "skipped_no_match"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Delimiter declares the grammar of one custom span syntax.
type Delimiter struct {
	// Kind is the token type produced for a captured span.
	Kind token.Type

	Open  string
	Close string

	// Exclude lists characters that may not appear inside a span. The inner
	// run must also be non-empty.
	Exclude string

	// RequireEvenMarkers declines the whole text when the number of Open
	// markers is odd. Only meaningful when Open == Close.
	RequireEvenMarkers bool
}

// AnnotationDelimiter matches [@name@]. The '^' exclusion is kept as
// observed in existing documents.
var AnnotationDelimiter = Delimiter{
	Kind:    token.TypeAnnotation,
	Open:    "[@",
	Close:   "@]",
	Exclude: "[@^",
}

// MathSpanDelimiter matches $$x$$.
var MathSpanDelimiter = Delimiter{
	Kind:               token.TypeMathSpan,
	Open:               "$$",
	Close:              "$$",
	Exclude:            "$",
	RequireEvenMarkers: true,
}

// MatchSet is the split of one text: Segments[0] + span(Captures[0]) +
// Segments[1] + ... + Segments[len(Captures)].
type MatchSet struct {
	Segments []string
	Captures []string
}

// Matcher scans text tokens for one delimiter kind.
type Matcher struct {
	delim Delimiter
	def   *lexer.StatefulDefinition
	span  lexer.TokenType
}

// NewMatcher compiles a delimiter into a two-rule lexer: Span matches a
// complete delimited run, Text matches everything else one run at a time.
// Lexing is leftmost-first, so spans never overlap.
func NewMatcher(d Delimiter) *Matcher {
	inner := "[^" + regexp.QuoteMeta(d.Exclude) + "]+"
	if d.Exclude == "" {
		inner = ".+?"
	}
	open := regexp.QuoteMeta(d.Open)
	def := lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Span", Pattern: open + inner + regexp.QuoteMeta(d.Close)},
		{Name: "Text", Pattern: "[^" + regexp.QuoteMeta(d.Open[:1]) + "]+|" + regexp.QuoteMeta(d.Open[:1])},
	})
	return &Matcher{
		delim: d,
		def:   def,
		span:  def.Symbols()["Span"],
	}
}

// Delimiter returns the grammar the matcher was built from.
func (m *Matcher) Delimiter() Delimiter {
	return m.delim
}

// Guard checks the cheap preconditions without scanning. It returns
// OutcomeRewritten when the text is worth scanning.
func (m *Matcher) Guard(content string) Outcome {
	if !strings.Contains(content, m.delim.Open) || !strings.Contains(content, m.delim.Close) {
		return OutcomeNoMarkers
	}
	if m.delim.RequireEvenMarkers && strings.Count(content, m.delim.Open)%2 != 0 {
		return OutcomeUnpaired
	}
	return OutcomeRewritten
}

// Match splits content into literal segments and span captures. Anything
// other than OutcomeRewritten means the content must be left untouched and
// the returned MatchSet is empty.
func (m *Matcher) Match(content string) (MatchSet, Outcome) {
	if o := m.Guard(content); o != OutcomeRewritten {
		return MatchSet{}, o
	}

	lex, err := m.def.LexString("", content)
	if err != nil {
		return MatchSet{}, OutcomeNoMatch
	}

	var (
		set     MatchSet
		literal strings.Builder
	)
	for {
		tok, err := lex.Next()
		if err != nil {
			// Text covers every byte, so this only happens on a lexer bug.
			return MatchSet{}, OutcomeNoMatch
		}
		if tok.EOF() {
			break
		}
		if tok.Type != m.span {
			literal.WriteString(tok.Value)
			continue
		}
		inner := tok.Value[len(m.delim.Open) : len(tok.Value)-len(m.delim.Close)]
		set.Segments = append(set.Segments, literal.String())
		set.Captures = append(set.Captures, inner)
		literal.Reset()
	}
	if len(set.Captures) == 0 {
		return MatchSet{}, OutcomeNoMatch
	}
	set.Segments = append(set.Segments, literal.String())
	return set, OutcomeRewritten
}

// Wrap restores the delimiters around captured content.
func (m *Matcher) Wrap(capture string) string {
	return m.delim.Open + capture + m.delim.Close
}
