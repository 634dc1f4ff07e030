package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// FormatNormalizer decides whether two cell values differ only in
// representation. Equivalence is symmetric: both values must be recognized
// by the same format family and reduce to the same canonical form.
type FormatNormalizer struct {
	dateFormats       []string
	phonePattern      *regexp.Regexp
	currencyPattern   *regexp.Regexp
	numberPattern     *regexp.Regexp
	ratingPattern     *regexp.Regexp
	whitespacePattern *regexp.Regexp
	trueTokens        map[string]bool
	falseTokens       map[string]bool
}

// NewFormatNormalizer creates a new format normalizer
func NewFormatNormalizer() *FormatNormalizer {
	return &FormatNormalizer{
		dateFormats: []string{
			"2006-1-2",            // ISO: 2024-01-15
			"2006/1/2",            // Alt ISO
			"2006.1.2",            // Dotted
			"2006年1月2日",          // CJK
			"2006年1月2号",          // CJK, colloquial
			"01/02/2006",          // US: 01/15/2024
			"02-Jan-2006",         // Text: 15-Jan-2024
			"January 2, 2006",     // Full text
			time.RFC3339,          // With time
			"2006-01-02 15:04:05", // SQL datetime
			"2006/01/02 15:04:05",
		},
		phonePattern:      regexp.MustCompile(`[\s\-\(\)\+\.]`),
		currencyPattern:   regexp.MustCompile(`^[\$€£¥₹]\s*`),
		numberPattern:     regexp.MustCompile(`^[+-]?(\d{1,3}(,\d{3})+|\d+)(\.\d+)?$`),
		ratingPattern:     regexp.MustCompile(`^(\d{1,2}|[一二三四五六七八九十])\s*(星|颗星|分)?$`),
		whitespacePattern: regexp.MustCompile(`\s+`),
		trueTokens: map[string]bool{
			"是": true, "y": true, "yes": true, "true": true,
			"✓": true, "✔": true, "√": true,
		},
		falseTokens: map[string]bool{
			"否": true, "n": true, "no": true, "false": true,
			"✗": true, "✘": true, "×": true,
		},
	}
}

// AreEquivalent reports whether a and b carry the same value in different
// notation, e.g. "★★★★★" and "5", "是" and "yes", "50%" and "0.5",
// "2024/1/5" and "2024-01-05".
func (fn *FormatNormalizer) AreEquivalent(a, b string) bool {
	a, b = fn.fold(a), fn.fold(b)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}

	families := []func(string) (string, bool){
		fn.canonicalRating,
		fn.canonicalBool,
		fn.canonicalPercent,
		fn.canonicalDate,
		fn.canonicalPhone,
		fn.canonicalNumber,
	}
	for _, canon := range families {
		ca, okA := canon(a)
		if !okA {
			continue
		}
		if cb, okB := canon(b); okB && ca == cb {
			return true
		}
	}
	return false
}

// Format families reported by DetectFormat.
const (
	FormatEmpty   = "empty"
	FormatDate    = "date"
	FormatPercent = "percent"
	FormatNumber  = "number"
	FormatRating  = "rating"
	FormatBoolean = "boolean"
	FormatText    = "text"
)

// DetectFormat identifies the format family of a value.
func (fn *FormatNormalizer) DetectFormat(value string) string {
	value = fn.fold(value)
	if value == "" {
		return FormatEmpty
	}
	if _, ok := fn.canonicalDate(value); ok {
		return FormatDate
	}
	if strings.HasSuffix(value, "%") {
		if _, ok := fn.canonicalPercent(value); ok {
			return FormatPercent
		}
	}
	if _, ok := fn.canonicalNumber(value); ok {
		return FormatNumber
	}
	if _, ok := fn.canonicalRating(value); ok {
		return FormatRating
	}
	if _, ok := fn.canonicalBool(value); ok {
		return FormatBoolean
	}
	return FormatText
}

// ParseNumber reads a plain, currency or percentage number. Percentages
// keep their face value ("50%" -> 50). Thousands separators must group by
// three; exponents and non-finite values are not numbers.
func (fn *FormatNormalizer) ParseNumber(value string) (float64, bool) {
	value = fn.fold(value)
	value = strings.TrimSpace(strings.TrimSuffix(value, "%"))
	value = fn.currencyPattern.ReplaceAllString(value, "")
	if !fn.numberPattern.MatchString(value) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseDate reads a date in any supported layout.
func (fn *FormatNormalizer) ParseDate(value string) (time.Time, bool) {
	value = fn.fold(value)
	for _, format := range fn.dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StarCount reads a star rating or small integer rating.
func (fn *FormatNormalizer) StarCount(value string) (int, bool) {
	c, ok := fn.canonicalRating(fn.fold(value))
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(c)
	return n, err == nil
}

// fold narrows full-width characters, trims and collapses whitespace.
func (fn *FormatNormalizer) fold(value string) string {
	value = width.Fold.String(value)
	value = strings.TrimSpace(value)
	return fn.whitespacePattern.ReplaceAllString(value, " ")
}

// canonicalRating maps star runs and small integers to a star count.
func (fn *FormatNormalizer) canonicalRating(value string) (string, bool) {
	filled, empty := 0, 0
	for _, r := range value {
		switch r {
		case '★', '⭐', '✦':
			filled++
		case '☆':
			empty++
		case '\uFE0F', ' ':
		default:
			filled, empty = -1, -1
		}
		if filled < 0 {
			break
		}
	}
	if filled >= 0 && filled+empty > 0 {
		return strconv.Itoa(filled), true
	}

	m := fn.ratingPattern.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	if n, err := strconv.Atoi(m[1]); err == nil {
		if n > 10 {
			return "", false
		}
		return strconv.Itoa(n), true
	}
	r, _ := utf8.DecodeRuneInString(m[1])
	idx := strings.IndexRune("一二三四五六七八九十", r)
	if idx < 0 {
		return "", false
	}
	return strconv.Itoa(utf8.RuneCountInString("一二三四五六七八九十"[:idx]) + 1), true
}

// canonicalBool maps yes/no style tokens to "true" or "false".
func (fn *FormatNormalizer) canonicalBool(value string) (string, bool) {
	v := strings.ToLower(value)
	if fn.trueTokens[v] {
		return "true", true
	}
	if fn.falseTokens[v] {
		return "false", true
	}
	return "", false
}

// canonicalPercent maps "50%" and fractions in [0,1] to a fraction.
func (fn *FormatNormalizer) canonicalPercent(value string) (string, bool) {
	if strings.HasSuffix(value, "%") {
		f, ok := fn.ParseNumber(value)
		if !ok {
			return "", false
		}
		return formatFloat(f / 100), true
	}
	f, ok := fn.ParseNumber(value)
	if !ok || f < 0 || f > 1 {
		return "", false
	}
	return formatFloat(f), true
}

// canonicalDate tries to parse and normalize dates to ISO format
func (fn *FormatNormalizer) canonicalDate(value string) (string, bool) {
	t, ok := fn.ParseDate(value)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// canonicalPhone removes formatting from phone numbers
func (fn *FormatNormalizer) canonicalPhone(value string) (string, bool) {
	if !strings.ContainsAny(value, "0123456789") {
		return "", false
	}
	normalized := fn.phonePattern.ReplaceAllString(value, "")
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	// Must be 10-15 digits to be a phone
	if len(normalized) >= 10 && len(normalized) <= 15 {
		return normalized, true
	}
	return "", false
}

// canonicalNumber removes currency symbols and formatting
func (fn *FormatNormalizer) canonicalNumber(value string) (string, bool) {
	if strings.HasSuffix(value, "%") {
		return "", false
	}
	f, ok := fn.ParseNumber(value)
	if !ok {
		return "", false
	}
	return formatFloat(f), true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
