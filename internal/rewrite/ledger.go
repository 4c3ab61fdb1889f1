package rewrite

// Entry is a single recorded edit: every element whose current index is
// greater than Position moved by Delta (+1 for an insertion, -1 for a
// removal).
type Entry struct {
	Position int
	Delta    int
}

// Ledger translates indices of an original sibling sequence into indices of
// the same sequence after a run of in-place insertions and removals.
//
// Positions are recorded in the coordinates of the sequence at the moment of
// the edit. An insertion at index p is recorded as p-1 and a removal at
// index p as p, so that one rule covers both: an element shifts when the
// recorded position is strictly below its running index.
//
// A Ledger is valid only for one left-to-right pass over one sequence.
type Ledger struct {
	entries []Entry
}

// Record appends an edit.
func (l *Ledger) Record(position, delta int) {
	l.entries = append(l.entries, Entry{Position: position, Delta: delta})
}

// Translate maps an index of the original sequence to its current index.
// It walks the entries in append order and adds the delta of every entry
// whose position is strictly less than the running value.
func (l *Ledger) Translate(original int) int {
	current := original
	for _, e := range l.entries {
		if e.Position < current {
			current += e.Delta
		}
	}
	return current
}

// Entries returns a copy of the recorded edits.
func (l *Ledger) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of recorded edits.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Reset discards all recorded edits.
func (l *Ledger) Reset() {
	l.entries = l.entries[:0]
}
