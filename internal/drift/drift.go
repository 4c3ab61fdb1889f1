// Package drift compares generated output with the copy already on disk and
// groups the differing lines into hunks.
package drift

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType classifies a line of a comparison.
type LineType int

const (
	LineContext LineType = iota
	LineAddition
	LineDeletion
)

// Line is one line of a comparison, without its trailing newline.
type Line struct {
	Type LineType
	Text string
}

// Hunk is a run of changed lines with surrounding context.
type Hunk struct {
	// Start is the index of the first line of the hunk in the comparison.
	Start int
	Lines []Line
}

// Compare diffs existing against want line by line. Every line of both
// inputs appears in the result exactly once.
func Compare(existing, want string) []Line {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(existing, want)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	for _, d := range diffs {
		typ := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = LineAddition
		case diffmatchpatch.DiffDelete:
			typ = LineDeletion
		}
		for _, text := range splitLines(d.Text) {
			lines = append(lines, Line{Type: typ, Text: text})
		}
	}
	return lines
}

// Changed reports whether any line was added or deleted.
func Changed(lines []Line) bool {
	for _, l := range lines {
		if l.Type != LineContext {
			return true
		}
	}
	return false
}

// Hunks groups changed lines, keeping up to context unchanged lines on each
// side. Hunks whose context would overlap are merged.
func Hunks(lines []Line, context int) []Hunk {
	var hunks []Hunk
	end := -1 // exclusive end of the current hunk
	for i, l := range lines {
		if l.Type == LineContext {
			continue
		}
		start := max(i-context, 0)
		stop := min(i+context+1, len(lines))
		if len(hunks) > 0 && start <= end {
			h := &hunks[len(hunks)-1]
			h.Lines = lines[h.Start:stop]
			end = stop
			continue
		}
		hunks = append(hunks, Hunk{Start: start, Lines: lines[start:stop]})
		end = stop
	}
	return hunks
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\n")
	}
	return parts
}
