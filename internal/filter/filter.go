// Package filter holds the queue filter/sort configuration and its flat,
// shareable key-value form.
package filter

import "fmt"

// Tab is the top-level partition of the queue.
type Tab string

const (
	TabPending  Tab = "pending"
	TabReviewed Tab = "reviewed"
)

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	return t == TabPending || t == TabReviewed
}

// SortKey selects the server-side ordering of the queue.
type SortKey string

const (
	SortTimeDesc  SortKey = "time_desc"
	SortTimeAsc   SortKey = "time_asc"
	SortGroupName SortKey = "group_name"
	SortScoreDesc SortKey = "score_desc"
)

var sortCycle = []SortKey{SortTimeDesc, SortTimeAsc, SortGroupName, SortScoreDesc}

// Valid reports whether s is a known sort key.
func (s SortKey) Valid() bool {
	for _, k := range sortCycle {
		if s == k {
			return true
		}
	}
	return false
}

// Next returns the sort key after s, wrapping around.
func (s SortKey) Next() SortKey {
	for i, k := range sortCycle {
		if s == k {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return DefaultSort
}

// Label is the short human name shown in the status bar.
func (s SortKey) Label() string {
	switch s {
	case SortTimeAsc:
		return "oldest"
	case SortGroupName:
		return "group"
	case SortScoreDesc:
		return "score"
	default:
		return "newest"
	}
}

// Defaults. A key equal to its default is omitted from the shareable form.
const (
	DefaultTab      = TabPending
	DefaultScoreMin = 0
	DefaultScoreMax = 100
	DefaultSort     = SortTimeDesc
)

// Filter is an immutable queue filter. Scores are whole percentages in
// [0, 100]; the backend receives them as fractions.
type Filter struct {
	Tab        Tab
	ScoreMin   int
	ScoreMax   int
	Sort       SortKey
	ClientName string
}

// Default returns the filter used when nothing else is known.
func Default() Filter {
	return Filter{
		Tab:      DefaultTab,
		ScoreMin: DefaultScoreMin,
		ScoreMax: DefaultScoreMax,
		Sort:     DefaultSort,
	}
}

// Validate checks the filter's fields.
func (f Filter) Validate() error {
	var fields []string
	if !f.Tab.Valid() {
		fields = append(fields, KeyTab)
	}
	if !validScore(f.ScoreMin) {
		fields = append(fields, KeyScoreMin)
	}
	if !validScore(f.ScoreMax) {
		fields = append(fields, KeyScoreMax)
	}
	if validScore(f.ScoreMin) && validScore(f.ScoreMax) && f.ScoreMin > f.ScoreMax {
		fields = append(fields, KeyScoreMin+">"+KeyScoreMax)
	}
	if !f.Sort.Valid() {
		fields = append(fields, KeySort)
	}
	if len(fields) > 0 {
		return &InvalidFilterError{Fields: fields}
	}
	return nil
}

// WithTab returns a copy of f showing the given tab.
func (f Filter) WithTab(t Tab) Filter {
	f.Tab = t
	return f
}

// WithSort returns a copy of f with the given sort key.
func (f Filter) WithSort(s SortKey) Filter {
	f.Sort = s
	return f
}

// WithScoreRange returns a copy of f with the given score bounds.
func (f Filter) WithScoreRange(lo, hi int) Filter {
	f.ScoreMin, f.ScoreMax = lo, hi
	return f
}

// Describe renders the filter for the status bar.
func (f Filter) Describe() string {
	s := fmt.Sprintf("%s | %d-%d%% | %s", f.Tab, f.ScoreMin, f.ScoreMax, f.Sort.Label())
	if f.ClientName != "" {
		s += " | " + f.ClientName
	}
	return s
}

func validScore(v int) bool {
	return v >= 0 && v <= 100
}
