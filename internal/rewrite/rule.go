// Package rewrite turns custom delimiter syntax inside text tokens into
// dedicated span tokens.
//
// A Rule makes one pass over every inline container of a document. Each text
// child whose content holds well-formed spans is replaced, in place, by the
// alternating sequence text, span, text, ..., text. Captured content is never
// scanned again, by this rule or any other.
package rewrite

import (
	"fmt"
	"strings"

	"github.com/zjrosen/markspan/internal/token"
)

// Strategy selects how a rule rebuilds a container's children.
type Strategy string

const (
	// StrategyExpand maps the children into a fresh slice.
	StrategyExpand Strategy = "expand"
	// StrategySplice mutates the children slice in place, tracking shifted
	// positions with a Ledger.
	StrategySplice Strategy = "splice"
)

// ParseStrategy validates a strategy name. The empty string selects
// StrategyExpand.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyExpand:
		return StrategyExpand, nil
	case StrategySplice:
		return StrategySplice, nil
	}
	return "", fmt.Errorf("unknown rewrite strategy %q", s)
}

// Report describes what a rule did with one text child.
type Report struct {
	Rule string `json:"rule"`
	// Container is the index of the inline container among the document's
	// containers.
	Container int `json:"container"`
	// Child is the index of the text token in the container as it was
	// before the pass.
	Child    int     `json:"child"`
	Outcome  Outcome `json:"outcome"`
	Captures int     `json:"captures"`
}

// Rule rewrites one delimiter kind.
type Rule struct {
	name     string
	matcher  *Matcher
	strategy Strategy
}

// Option configures a Rule.
type Option func(*Rule)

// WithStrategy selects the rebuild strategy.
func WithStrategy(s Strategy) Option {
	return func(r *Rule) {
		r.strategy = s
	}
}

// NewRule builds a rule for a delimiter.
func NewRule(name string, d Delimiter, opts ...Option) *Rule {
	r := &Rule{
		name:     name,
		matcher:  NewMatcher(d),
		strategy: StrategyExpand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Annotation returns the [@...@] rule.
func Annotation(opts ...Option) *Rule {
	return NewRule("annotation", AnnotationDelimiter, opts...)
}

// MathSpan returns the $$...$$ rule.
func MathSpan(opts ...Option) *Rule {
	return NewRule("math_span", MathSpanDelimiter, opts...)
}

// Name returns the rule name used in reports.
func (r *Rule) Name() string { return r.name }

// Strategy returns the configured rebuild strategy.
func (r *Rule) Strategy() Strategy { return r.strategy }

// Apply runs one pass over every inline container in the stream. Reports
// are returned in document order.
func (r *Rule) Apply(tokens []*token.Token) []Report {
	var reports []Report
	for i, container := range token.Containers(tokens) {
		for _, rep := range r.ApplyContainer(container) {
			rep.Container = i
			reports = append(reports, rep)
		}
	}
	return reports
}

// ApplyContainer rewrites the children of a single inline container.
func (r *Rule) ApplyContainer(container *token.Token) []Report {
	if len(container.Children) == 0 {
		return nil
	}
	if r.strategy == StrategySplice {
		return r.splice(container)
	}
	children, reports := r.Expand(container.Children)
	container.Children = children
	return reports
}

// Expand returns a new child sequence in which every matched text token is
// replaced by its expansion. The input slice is not modified.
func (r *Rule) Expand(children []*token.Token) ([]*token.Token, []Report) {
	var reports []Report
	out := make([]*token.Token, 0, len(children))
	for i, child := range children {
		if child.Type != token.TypeText {
			out = append(out, child)
			continue
		}
		set, outcome := r.matcher.Match(child.Content)
		reports = append(reports, r.report(i, outcome, len(set.Captures)))
		if outcome != OutcomeRewritten {
			out = append(out, child)
			continue
		}
		out = append(out, r.expansion(set)...)
	}
	return out, reports
}

// splice rewrites container.Children in place. The scan walks a snapshot of
// the original children; the ledger maps each original index to where that
// token currently sits.
//
// For a match at current index c the 2N+1 replacement tokens are inserted
// directly after c, last one first, so every insertion lands at c+1 and is
// recorded as position c. The original is then removed at c. All entries
// for one match share position c, and c only grows along the scan.
func (r *Rule) splice(container *token.Token) []Report {
	var (
		reports []Report
		ledger  Ledger
	)
	original := append([]*token.Token(nil), container.Children...)

	for i, child := range original {
		if child.Type != token.TypeText {
			continue
		}
		set, outcome := r.matcher.Match(child.Content)
		reports = append(reports, r.report(i, outcome, len(set.Captures)))
		if outcome != OutcomeRewritten {
			continue
		}

		c := ledger.Translate(i)
		replacement := r.expansion(set)
		for k := len(replacement) - 1; k >= 0; k-- {
			container.Children = insertAt(container.Children, c+1, replacement[k])
			ledger.Record(c, +1)
		}
		container.Children = removeAt(container.Children, c)
		ledger.Record(c, -1)
	}
	return reports
}

// expansion builds text, span, text, ..., text from a match.
func (r *Rule) expansion(set MatchSet) []*token.Token {
	kind := r.matcher.Delimiter().Kind
	out := make([]*token.Token, 0, 2*len(set.Captures)+1)
	for k, capture := range set.Captures {
		out = append(out, token.NewText(set.Segments[k]), token.NewSpan(kind, capture))
	}
	return append(out, token.NewText(set.Segments[len(set.Captures)]))
}

func (r *Rule) report(child int, outcome Outcome, captures int) Report {
	return Report{Rule: r.name, Child: child, Outcome: outcome, Captures: captures}
}

func insertAt(s []*token.Token, i int, t *token.Token) []*token.Token {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = t
	return s
}

func removeAt(s []*token.Token, i int) []*token.Token {
	copy(s[i:], s[i+1:])
	s[len(s)-1] = nil
	return s[:len(s)-1]
}
