package policy

import (
	"os"
	"path/filepath"
	"testing"

	"docwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default()

	cols := p.CanonicalColumns()
	require.Len(t, cols, 19)
	assert.Equal(t, "序号", cols[0])
	assert.Equal(t, "进度分析总结", cols[18])

	tests := []struct {
		column string
		want   models.Tier
	}{
		{"重要程度", models.TierL1},
		{"完成进度", models.TierL1},
		{"负责人", models.TierL2},
		{"邓总指导登记", models.TierL2},
		{"序号", models.TierL3},
		{"不存在的列", models.TierL3},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, p.TierOf(tt.column))
		})
	}

	assert.InDelta(t, 1.4, p.Weight("重要程度"), 1e-9)
	assert.InDelta(t, 1.0, p.Weight("序号"), 1e-9)
	assert.Contains(t, p.Synonyms("负责人"), "责任人")
	assert.Contains(t, p.HighRiskKeywords(), "停产")
}

func TestPolicyIsImmutable(t *testing.T) {
	p := Default()

	cols := p.CanonicalColumns()
	cols[0] = "changed"
	assert.Equal(t, "序号", p.CanonicalColumns()[0])

	syns := p.Synonyms("负责人")
	syns[0] = "changed"
	assert.NotEqual(t, "changed", p.Synonyms("负责人")[0])
}

func TestParse(t *testing.T) {
	data := []byte(`
canonical_columns: [名称, 状态, 备注]
tiers:
  L1: [名称]
  L2: [状态]
synonyms:
  状态: [status]
weights:
  状态: 1.2
high_risk_keywords: [停产]
`)
	p, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"名称", "状态", "备注"}, p.CanonicalColumns())
	assert.Equal(t, models.TierL1, p.TierOf("名称"))
	assert.Equal(t, models.TierL2, p.TierOf("状态"))
	assert.Equal(t, models.TierL3, p.TierOf("备注"))
	assert.InDelta(t, 1.2, p.Weight("状态"), 1e-9)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no columns", `tiers: {L1: [a]}`},
		{"duplicate column", `canonical_columns: [a, a]`},
		{"bad tier", "canonical_columns: [a]\ntiers: {L9: [a]}"},
		{"conflicting tier", "canonical_columns: [a]\ntiers: {L1: [a], L2: [a]}"},
		{"unknown synonym target", "canonical_columns: [a]\nsynonyms: {b: [c]}"},
		{"non-positive weight", "canonical_columns: [a]\nweights: {a: 0}"},
		{"invalid yaml", "canonical_columns: [a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	doc := Default().Document()
	p, err := New(doc)
	require.NoError(t, err)
	assert.Equal(t, Default().CanonicalColumns(), p.CanonicalColumns())
	assert.Equal(t, models.TierL1, p.TierOf("重要程度"))

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("canonical_columns: [x]\n"), 0o644))
	loaded, err := LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, loaded.CanonicalColumns())

	def, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Len(t, def.CanonicalColumns(), 19)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
