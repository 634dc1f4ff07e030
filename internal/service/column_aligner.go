package service

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"docwatch/internal/models"
	"docwatch/internal/policy"
)

const (
	DefaultMinMatchFraction = 0.5
	DefaultFuzzyThreshold   = 0.8
)

// AlignerOptions tunes ColumnAligner. Zero values select the defaults.
type AlignerOptions struct {
	MinMatchFraction float64
	FuzzyThreshold   float64
}

// ColumnAligner maps the columns of two snapshots onto the canonical schema.
type ColumnAligner struct {
	policy           *policy.Policy
	minMatchFraction float64
	fuzzyThreshold   float64
	logger           *slog.Logger
}

// NewColumnAligner creates a new column aligner
func NewColumnAligner(p *policy.Policy, opts AlignerOptions, logger *slog.Logger) *ColumnAligner {
	if opts.MinMatchFraction <= 0 {
		opts.MinMatchFraction = DefaultMinMatchFraction
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ColumnAligner{
		policy:           p,
		minMatchFraction: opts.MinMatchFraction,
		fuzzyThreshold:   opts.FuzzyThreshold,
		logger:           logger.With("component", "aligner"),
	}
}

// sideMatch is where a canonical column landed in one snapshot.
type sideMatch struct {
	index      int
	method     models.MatchMethod
	confidence float64
}

// Align builds the canonical mapping between baseline and current columns.
// Matching runs in stages over all canonical columns at once: exact name,
// normalized name, known synonym, fuzzy similarity, and finally position
// when both snapshots have exactly as many columns as the canonical list.
//
// When too few canonical columns are aligned the alignment is still
// returned for diagnostics, together with a *StructuralMismatchError.
func (a *ColumnAligner) Align(baseline, current, canonical []string) (*models.ColumnAlignment, error) {
	if len(canonical) == 0 {
		return nil, &StructuralMismatchError{Reason: "no canonical columns"}
	}
	if len(baseline) == 0 || len(current) == 0 {
		return nil, &StructuralMismatchError{Total: len(canonical), Reason: "snapshot has no columns"}
	}

	baseMatches := a.matchSide(baseline, canonical)
	curMatches := a.matchSide(current, canonical)

	if len(baseline) == len(canonical) && len(current) == len(canonical) {
		a.matchByPosition(baseline, canonical, baseMatches)
		a.matchByPosition(current, canonical, curMatches)
	}

	alignment := &models.ColumnAlignment{CanonicalCount: len(canonical)}
	baseUsed := make(map[int]bool)
	curUsed := make(map[int]bool)

	for i, c := range canonical {
		bm, cm := baseMatches[i], curMatches[i]
		if bm.index < 0 || cm.index < 0 {
			alignment.MissingCanonical = append(alignment.MissingCanonical, c)
			continue
		}
		baseUsed[bm.index] = true
		curUsed[cm.index] = true
		alignment.Columns = append(alignment.Columns, models.AlignedColumn{
			Canonical:      c,
			BaselineIndex:  bm.index,
			CurrentIndex:   cm.index,
			BaselineName:   baseline[bm.index],
			CurrentName:    current[cm.index],
			BaselineMethod: bm.method,
			CurrentMethod:  cm.method,
			Confidence:     math.Min(bm.confidence, cm.confidence),
		})
	}

	for i, name := range baseline {
		if !baseUsed[i] {
			alignment.Unmatched = append(alignment.Unmatched, models.UnmatchedColumn{Side: "baseline", Index: i, Name: name})
		}
	}
	for i, name := range current {
		if !curUsed[i] {
			alignment.Unmatched = append(alignment.Unmatched, models.UnmatchedColumn{Side: "current", Index: i, Name: name})
		}
	}

	required := int(math.Ceil(a.minMatchFraction * float64(len(canonical))))
	if len(alignment.Columns) < required {
		return alignment, &StructuralMismatchError{
			Matched:  len(alignment.Columns),
			Required: required,
			Total:    len(canonical),
		}
	}

	if len(alignment.Unmatched) > 0 || len(alignment.MissingCanonical) > 0 {
		a.logger.Debug("partial column alignment",
			"aligned", len(alignment.Columns),
			"missing", alignment.MissingCanonical,
			"unmatched", len(alignment.Unmatched))
	}

	return alignment, nil
}

// matchSide locates every canonical column in one snapshot's header.
// The result is indexed by canonical position; index -1 means not found.
func (a *ColumnAligner) matchSide(columns, canonical []string) []sideMatch {
	matches := make([]sideMatch, len(canonical))
	for i := range matches {
		matches[i].index = -1
	}
	claimed := make([]bool, len(columns))

	normalized := make([]string, len(columns))
	for i, col := range columns {
		normalized[i] = NormalizeHeader(col)
	}

	claim := func(ci, col int, method models.MatchMethod, confidence float64) {
		matches[ci] = sideMatch{index: col, method: method, confidence: confidence}
		claimed[col] = true
	}

	// Stage 1: exact name
	for ci, c := range canonical {
		for col, name := range columns {
			if !claimed[col] && strings.TrimSpace(name) == c {
				claim(ci, col, models.MatchExact, 1.0)
				break
			}
		}
	}

	// Stage 2: normalized name
	for ci, c := range canonical {
		if matches[ci].index >= 0 {
			continue
		}
		key := NormalizeHeader(c)
		for col := range columns {
			if !claimed[col] && key != "" && normalized[col] == key {
				claim(ci, col, models.MatchNormalized, 0.95)
				break
			}
		}
	}

	// Stage 3: known renames
	for ci, c := range canonical {
		if matches[ci].index >= 0 || a.policy == nil {
			continue
		}
	synonyms:
		for _, syn := range a.policy.Synonyms(c) {
			key := NormalizeHeader(syn)
			for col := range columns {
				if !claimed[col] && key != "" && normalized[col] == key {
					claim(ci, col, models.MatchSynonym, 0.9)
					break synonyms
				}
			}
		}
	}

	// Stage 4: fuzzy, best pairs first
	type candidate struct {
		ci, col int
		score   float64
	}
	var candidates []candidate
	for ci, c := range canonical {
		if matches[ci].index >= 0 {
			continue
		}
		names := append([]string{c}, a.synonymsOf(c)...)
		for col := range columns {
			if claimed[col] || normalized[col] == "" {
				continue
			}
			best := 0.0
			for _, n := range names {
				best = math.Max(best, TextSimilarity(normalized[col], NormalizeHeader(n)))
			}
			if best >= a.fuzzyThreshold {
				candidates = append(candidates, candidate{ci: ci, col: col, score: best})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	for _, cand := range candidates {
		if matches[cand.ci].index >= 0 || claimed[cand.col] {
			continue
		}
		claim(cand.ci, cand.col, models.MatchFuzzy, cand.score)
	}

	return matches
}

// matchByPosition fills remaining gaps with the column at the same index.
func (a *ColumnAligner) matchByPosition(columns, canonical []string, matches []sideMatch) {
	claimed := make(map[int]bool)
	for _, m := range matches {
		if m.index >= 0 {
			claimed[m.index] = true
		}
	}
	for ci := range canonical {
		if matches[ci].index >= 0 || claimed[ci] {
			continue
		}
		positional := math.Max(0.3, 1.0-0.05*float64(ci))
		textual := TextSimilarity(NormalizeHeader(columns[ci]), NormalizeHeader(canonical[ci]))
		matches[ci] = sideMatch{
			index:      ci,
			method:     models.MatchPosition,
			confidence: positional*0.4 + textual*0.6,
		}
		claimed[ci] = true
	}
}

func (a *ColumnAligner) synonymsOf(column string) []string {
	if a.policy == nil {
		return nil
	}
	return a.policy.Synonyms(column)
}
