package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var parentheticalPattern = regexp.MustCompile(`[（(][^）)]*[）)]`)

// NormalizeHeader folds a column header into a comparable key: full-width
// characters are narrowed, parenthetical suffixes such as "（日更新）" are
// dropped, and whitespace, punctuation and case are removed.
func NormalizeHeader(name string) string {
	name = width.Fold.String(name)
	name = parentheticalPattern.ReplaceAllString(name, "")
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TextSimilarity blends edit-distance similarity with character overlap,
// weighted 0.7 / 0.3. Result is in [0,1].
func TextSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0.7*LevenshteinRatio(a, b) + 0.3*charOverlap(a, b)
}

// LevenshteinRatio calculates similarity ratio (0-1)
func LevenshteinRatio(s1, s2 string) float64 {
	r1 := []rune(strings.ToLower(s1))
	r2 := []rune(strings.ToLower(s2))
	maxLen := float64(max(len(r1), len(r2)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(r1, r2))/maxLen
}

func levenshtein(r1, r2 []rune) int {
	len1, len2 := len(r1), len(r2)

	row := make([]int, len2+1)
	for i := 0; i <= len2; i++ {
		row[i] = i
	}

	for i := 1; i <= len1; i++ {
		prev := i
		for j := 1; j <= len2; j++ {
			var val int
			if r1[i-1] == r2[j-1] {
				val = row[j-1]
			} else {
				val = min(row[j-1]+1, prev+1, row[j]+1)
			}
			row[j-1] = prev
			prev = val
		}
		row[len2] = prev
	}
	return row[len2]
}

// charOverlap is the Jaccard similarity of the two strings' character sets.
func charOverlap(a, b string) float64 {
	setA := make(map[rune]bool)
	for _, r := range strings.ToLower(a) {
		setA[r] = true
	}
	setB := make(map[rune]bool)
	for _, r := range strings.ToLower(b) {
		setB[r] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for r := range setA {
		if setB[r] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// columnLetter converts a 0-based column index to a spreadsheet letter
// (0 -> A, 25 -> Z, 26 -> AA).
func columnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var out []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}
