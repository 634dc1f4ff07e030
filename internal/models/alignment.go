package models

// MatchMethod records how a canonical column was located in a snapshot.
type MatchMethod string

const (
	MatchExact      MatchMethod = "exact"
	MatchNormalized MatchMethod = "normalized"
	MatchSynonym    MatchMethod = "synonym"
	MatchFuzzy      MatchMethod = "fuzzy"
	MatchPosition   MatchMethod = "position"
)

// AlignedColumn ties one canonical column to its index in both snapshots.
type AlignedColumn struct {
	Canonical      string      `json:"canonical"`
	BaselineIndex  int         `json:"baseline_index"`
	CurrentIndex   int         `json:"current_index"`
	BaselineName   string      `json:"baseline_name"`
	CurrentName    string      `json:"current_name"`
	BaselineMethod MatchMethod `json:"baseline_method"`
	CurrentMethod  MatchMethod `json:"current_method"`
	Confidence     float64     `json:"confidence"`
}

// UnmatchedColumn is a snapshot column that matched no canonical entry.
type UnmatchedColumn struct {
	Side  string `json:"side"`
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// ColumnAlignment is the partial, injective mapping between the columns of
// a baseline and a current snapshot, expressed through canonical names.
// Columns are listed in canonical order.
type ColumnAlignment struct {
	Columns          []AlignedColumn   `json:"columns"`
	Unmatched        []UnmatchedColumn `json:"unmatched"`
	MissingCanonical []string          `json:"missing_canonical"`
	CanonicalCount   int               `json:"canonical_count"`
}

// Mapping returns baseline index -> current index.
func (a *ColumnAlignment) Mapping() map[int]int {
	m := make(map[int]int, len(a.Columns))
	for _, c := range a.Columns {
		m[c.BaselineIndex] = c.CurrentIndex
	}
	return m
}

// MatchedFraction is the share of canonical columns aligned on both sides.
func (a *ColumnAlignment) MatchedFraction() float64 {
	if a.CanonicalCount == 0 {
		return 0
	}
	return float64(len(a.Columns)) / float64(a.CanonicalCount)
}
