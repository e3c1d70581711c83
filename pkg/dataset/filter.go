package dataset

import (
	"strconv"
	"strings"
)

// Filter carries the three independent predicates from the form. Zero
// values mean "no restriction", so an empty Filter returns the full table.
type Filter struct {
	// MinPopRaw is the untouched form string. Parsing happens here so the
	// handler does not have to know that a garbled number silently
	// disables the predicate instead of erroring the page.
	MinPopRaw string
	// Keyword restricts names to case-insensitive substring matches.
	Keyword string
	// Name restricts to case-folded exact name matches (the dropdown).
	Name string
}

// MinPop returns the parsed minimum population and whether the predicate
// is active. An empty or unparsable string deactivates it.
func (f Filter) MinPop() (int64, bool) {
	raw := strings.TrimSpace(f.MinPopRaw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Matches reports whether a single row passes all active predicates.
func (f Filter) Matches(l Location) bool {
	if min, ok := f.MinPop(); ok {
		// Rows without a parsed population can never satisfy a numeric
		// threshold, so they drop when the predicate is active.
		if !l.HasPopulation() || int64(l.Population) < min {
			return false
		}
	}
	if f.Keyword != "" {
		if l.Name == "" || !strings.Contains(strings.ToLower(l.Name), strings.ToLower(f.Keyword)) {
			return false
		}
	}
	if f.Name != "" {
		if !strings.EqualFold(l.Name, f.Name) {
			return false
		}
	}
	return true
}

// Apply returns the rows passing the filter, preserving dataset order.
func (t *Table) Apply(f Filter) []Location {
	if t == nil {
		return nil
	}
	out := make([]Location, 0, len(t.Rows))
	for _, l := range t.Rows {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}
