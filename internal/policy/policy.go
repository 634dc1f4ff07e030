// Package policy holds the column risk policy: the canonical column list,
// the tier of each column, known renames, importance weights and the
// keywords that mark a risky status change.
//
// A Policy is immutable once built and safe to share between goroutines.
package policy

import (
	"fmt"
	"os"
	"strings"

	"docwatch/internal/models"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk YAML form of a policy.
type Document struct {
	CanonicalColumns []string            `yaml:"canonical_columns" json:"canonical_columns"`
	Tiers            map[string][]string `yaml:"tiers" json:"tiers"`
	Synonyms         map[string][]string `yaml:"synonyms" json:"synonyms"`
	Weights          map[string]float64  `yaml:"weights" json:"weights"`
	HighRiskKeywords []string            `yaml:"high_risk_keywords" json:"high_risk_keywords"`
	DefaultTier      string              `yaml:"default_tier" json:"default_tier"`
}

// Policy is the read-only column risk policy.
type Policy struct {
	canonical   []string
	tiers       map[string]models.Tier
	synonyms    map[string][]string
	weights     map[string]float64
	keywords    []string
	defaultTier models.Tier
}

// New validates a Document and freezes it into a Policy.
func New(doc Document) (*Policy, error) {
	if len(doc.CanonicalColumns) == 0 {
		return nil, fmt.Errorf("policy has no canonical columns")
	}

	p := &Policy{
		tiers:       make(map[string]models.Tier),
		synonyms:    make(map[string][]string),
		weights:     make(map[string]float64),
		defaultTier: models.TierL3,
	}

	seen := make(map[string]bool)
	for _, c := range doc.CanonicalColumns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("policy has an empty canonical column name")
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate canonical column %q", c)
		}
		seen[c] = true
		p.canonical = append(p.canonical, c)
	}

	for tierName, cols := range doc.Tiers {
		tier, err := models.ParseTier(tierName)
		if err != nil {
			return nil, fmt.Errorf("policy tiers: %w", err)
		}
		for _, c := range cols {
			c = strings.TrimSpace(c)
			if prev, ok := p.tiers[c]; ok && prev != tier {
				return nil, fmt.Errorf("column %q assigned to both %s and %s", c, prev, tier)
			}
			p.tiers[c] = tier
		}
	}

	if doc.DefaultTier != "" {
		tier, err := models.ParseTier(doc.DefaultTier)
		if err != nil {
			return nil, fmt.Errorf("policy default_tier: %w", err)
		}
		p.defaultTier = tier
	}

	for c, syns := range doc.Synonyms {
		if !seen[c] {
			return nil, fmt.Errorf("synonyms given for unknown column %q", c)
		}
		p.synonyms[c] = append([]string(nil), syns...)
	}

	for c, w := range doc.Weights {
		if w <= 0 {
			return nil, fmt.Errorf("weight for %q must be positive, got %v", c, w)
		}
		p.weights[c] = w
	}

	for _, k := range doc.HighRiskKeywords {
		if k = strings.TrimSpace(k); k != "" {
			p.keywords = append(p.keywords, strings.ToLower(k))
		}
	}

	return p, nil
}

// Load reads a YAML policy file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML policy document.
func Parse(data []byte) (*Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return New(doc)
}

// LoadOrDefault loads path when set, otherwise returns the built-in policy.
func LoadOrDefault(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// CanonicalColumns returns a copy of the canonical column list.
func (p *Policy) CanonicalColumns() []string {
	return append([]string(nil), p.canonical...)
}

// TierOf returns the tier of a canonical column. Columns the policy does
// not classify fall into the default tier.
func (p *Policy) TierOf(column string) models.Tier {
	if t, ok := p.tiers[column]; ok {
		return t
	}
	return p.defaultTier
}

// Synonyms returns the known alternative names of a canonical column.
func (p *Policy) Synonyms(column string) []string {
	return append([]string(nil), p.synonyms[column]...)
}

// Weight returns the importance weight of a column, 1.0 when unset.
func (p *Policy) Weight(column string) float64 {
	if w, ok := p.weights[column]; ok {
		return w
	}
	return 1.0
}

// HighRiskKeywords returns the lower-cased keyword list.
func (p *Policy) HighRiskKeywords() []string {
	return append([]string(nil), p.keywords...)
}

// Document converts the policy back into its serializable form.
func (p *Policy) Document() Document {
	doc := Document{
		CanonicalColumns: p.CanonicalColumns(),
		Tiers:            make(map[string][]string),
		Synonyms:         make(map[string][]string),
		Weights:          make(map[string]float64),
		HighRiskKeywords: p.HighRiskKeywords(),
		DefaultTier:      string(p.defaultTier),
	}
	for _, c := range p.canonical {
		if t, ok := p.tiers[c]; ok {
			doc.Tiers[string(t)] = append(doc.Tiers[string(t)], c)
		}
	}
	for c, s := range p.synonyms {
		doc.Synonyms[c] = append([]string(nil), s...)
	}
	for c, w := range p.weights {
		doc.Weights[c] = w
	}
	return doc
}
