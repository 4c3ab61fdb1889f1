package rewrite

// Summary counts report outcomes for one document.
type Summary struct {
	Examined  int `json:"examined"`
	Rewritten int `json:"rewritten"`
	Spans     int `json:"spans"`
	NoMarkers int `json:"no_markers"`
	Unpaired  int `json:"unpaired"`
	NoMatch   int `json:"no_match"`
}

// Summarize folds reports into a Summary.
func Summarize(reports []Report) Summary {
	var s Summary
	for _, r := range reports {
		s.Examined++
		switch r.Outcome {
		case OutcomeRewritten:
			s.Rewritten++
			s.Spans += r.Captures
		case OutcomeNoMarkers:
			s.NoMarkers++
		case OutcomeUnpaired:
			s.Unpaired++
		case OutcomeNoMatch:
			s.NoMatch++
		}
	}
	return s
}

// Skipped returns the reports that left a token alone for a reason other
// than the absence of markers. These are the ones worth surfacing to users.
func Skipped(reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if r.Outcome == OutcomeUnpaired || r.Outcome == OutcomeNoMatch {
			out = append(out, r)
		}
	}
	return out
}
